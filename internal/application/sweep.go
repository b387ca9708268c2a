package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/example/attendance-tracker/internal/session"
)

// CompletionSweep marks sessions completed once their live window has
// fully elapsed. It runs from a scheduler and from the manual sweep
// endpoint, so overlapping runs are collapsed to one.
type CompletionSweep struct {
	sessions SessionStore
	orgs     OrgDirectory
	cache    *IndicatorCache
	now      func() time.Time
	location *time.Location
	logger   *slog.Logger
	running  atomic.Bool
}

// NewCompletionSweep wires a sweep over the session store.
func NewCompletionSweep(sessions SessionStore, orgs OrgDirectory, cache *IndicatorCache, location *time.Location, now func() time.Time, logger *slog.Logger) *CompletionSweep {
	if now == nil {
		now = time.Now
	}
	if location == nil {
		location = time.UTC
	}
	return &CompletionSweep{
		sessions: sessions,
		orgs:     orgs,
		cache:    cache,
		now:      now,
		location: location,
		logger:   defaultLogger(logger),
	}
}

// Run sweeps every open session across organizations and completes the
// ones classifying Past. It returns how many sessions it completed. A
// run that starts while another is in flight returns immediately with
// a zero count.
func (s *CompletionSweep) Run(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		serviceLogger(ctx, s.logger, "sweep", "run").
			InfoContext(ctx, "sweep already running, skipping")
		return 0, nil
	}
	defer s.running.Store(false)

	open, err := s.sessions.ListOpenSessions(ctx)
	if err != nil {
		return 0, mapSessionRepoError(err)
	}

	now := s.now()
	classifiers := make(map[string]*session.Classifier)
	var elapsed []string
	for _, sess := range open {
		classifier, ok := classifiers[sess.OrgID]
		if !ok {
			classifier = session.NewClassifier(s.orgTimezone(ctx, sess.OrgID))
			classifiers[sess.OrgID] = classifier
		}
		if classifier.Classify(sess, now).Status == session.StatusPast {
			elapsed = append(elapsed, sess.ID)
		}
	}
	if len(elapsed) == 0 {
		return 0, nil
	}

	if err := s.sessions.MarkCompleted(ctx, elapsed, now); err != nil {
		return 0, mapSessionRepoError(err)
	}
	s.cache.Invalidate()

	serviceLogger(ctx, s.logger, "sweep", "run").
		InfoContext(ctx, "sessions completed", "count", len(elapsed), "open", len(open))
	return len(elapsed), nil
}

func (s *CompletionSweep) orgTimezone(ctx context.Context, orgID string) *time.Location {
	if s.orgs != nil {
		if loc, err := s.orgs.OrgTimezone(ctx, orgID); err == nil && loc != nil {
			return loc
		}
	}
	return s.location
}
