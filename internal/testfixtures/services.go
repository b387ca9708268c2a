package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/attendance-tracker/internal/application"
)

// ServiceFactory assists tests with constructing application services
// using a shared deterministic clock and identifier sequences.
type ServiceFactory struct {
	Clock     *Clock
	IDs       *IDGenerator
	ScanCodes *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults: the
// reference clock, "id-N" identifiers, and "scan-N" scan codes.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:     NewClock(time.Time{}),
		IDs:       NewIDGenerator("id"),
		ScanCodes: NewIDGenerator("scan"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDs == nil {
		factory.IDs = NewIDGenerator("id")
	}
	if factory.ScanCodes == nil {
		factory.ScanCodes = NewIDGenerator("scan")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDs = generator
	}
}

// WithScanCodeGenerator overrides the scan code generator used by the
// factory.
func WithScanCodeGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.ScanCodes = generator
	}
}

// NewBatchService builds a batch service, filling any unset clock or
// generator dependencies with the factory defaults.
func (f *ServiceFactory) NewBatchService(deps application.BatchServiceDeps) *application.BatchService {
	if deps.IDs == nil {
		deps.IDs = f.IDs.NextFunc()
	}
	if deps.ScanCodes == nil {
		deps.ScanCodes = f.ScanCodes.NextFunc()
	}
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	return application.NewBatchService(deps)
}

// NewSessionService builds a session service, filling any unset clock or
// generator dependencies with the factory defaults.
func (f *ServiceFactory) NewSessionService(deps application.SessionServiceDeps) *application.SessionService {
	if deps.IDs == nil {
		deps.IDs = f.IDs.NextFunc()
	}
	if deps.ScanCodes == nil {
		deps.ScanCodes = f.ScanCodes.NextFunc()
	}
	if deps.Now == nil {
		deps.Now = f.Clock.NowFunc()
	}
	return application.NewSessionService(deps)
}

// CheckInServiceDeps captures dependencies for constructing a check-in
// service.
type CheckInServiceDeps struct {
	Sessions application.SessionStore
	CheckIns application.CheckInStore
	Orgs     application.OrgDirectory
	Verifier application.GeofenceVerifier
	Grace    time.Duration
	IDs      func() string
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewCheckInService builds a check-in service using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewCheckInService(deps CheckInServiceDeps) *application.CheckInService {
	idGen := deps.IDs
	if idGen == nil {
		idGen = f.IDs.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewCheckInService(
		deps.Sessions,
		deps.CheckIns,
		deps.Orgs,
		deps.Verifier,
		deps.Grace,
		idGen,
		now,
		deps.Logger,
	)
}

// CompletionSweepDeps captures dependencies for constructing a
// completion sweep.
type CompletionSweepDeps struct {
	Sessions application.SessionStore
	Orgs     application.OrgDirectory
	Cache    *application.IndicatorCache
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

// NewCompletionSweep builds a completion sweep using the supplied
// dependencies combined with the factory defaults.
func (f *ServiceFactory) NewCompletionSweep(deps CompletionSweepDeps) *application.CompletionSweep {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewCompletionSweep(
		deps.Sessions,
		deps.Orgs,
		deps.Cache,
		deps.Location,
		now,
		deps.Logger,
	)
}
