package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/robfig/cron/v3"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/config"
	httptransport "github.com/example/attendance-tracker/internal/http"
	"github.com/example/attendance-tracker/internal/logging"
	"github.com/example/attendance-tracker/internal/persistence"
	"github.com/example/attendance-tracker/internal/persistence/bridge"
	"github.com/example/attendance-tracker/internal/persistence/memory"
	"github.com/example/attendance-tracker/internal/persistence/sqlite"
)

// Scan codes avoid ambiguous characters so the value under the QR code
// stays typeable when a camera scan fails.
const (
	scanCodeAlphabet = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"
	scanCodeLength   = 10
)

func main() {
	// A .env file is optional; deployments usually set the
	// environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	now := time.Now
	if cfg.Store == config.StoreMemory {
		if err := seedDemoData(context.Background(), store, now); err != nil {
			logger.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
		logger.Info("memory store seeded with demo tenancy",
			"org_id", demoOrgID, "admin_id", demoAdminID, "member_id", demoMemberID)
	}

	handler, sweep := buildApplication(cfg, store, uuid.NewString, newScanCodeGenerator(), now, logger)

	if !cfg.SweepDisabled {
		cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
		runner := cron.New(
			cron.WithLocation(cfg.Timezone),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger)),
		)
		if _, err := runner.AddFunc(cfg.SweepSchedule, func() {
			swept, err := sweep.Run(context.Background())
			if err != nil {
				logger.Error("completion sweep failed", "error", err)
				return
			}
			if swept > 0 {
				logger.Info("completion sweep finished", "sessions", swept)
			}
		}); err != nil {
			logger.Error("failed to schedule completion sweep", "error", err, "schedule", cfg.SweepSchedule)
			os.Exit(1)
		}
		runner.Start()
		defer func() { <-runner.Stop().Done() }()
		logger.Info("completion sweep scheduled", "schedule", cfg.SweepSchedule)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("attendance API listening", "addr", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// repositoryStore bundles every repository the wiring needs. Both
// backends satisfy the whole set with one type.
type repositoryStore interface {
	persistence.OrganizationRepository
	persistence.UserRepository
	persistence.BatchRepository
	persistence.SessionRepository
	persistence.CheckInRepository
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repositoryStore, func() error, error) {
	if cfg.Store == config.StoreMemory {
		logger.Info("using in-memory store")
		return memory.NewStore(), func() error { return nil }, nil
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return store, store.Close, nil
}

// buildApplication wires repositories, services, and handlers into the
// HTTP surface plus the sweep the cron runner drives.
func buildApplication(cfg config.Config, store repositoryStore, ids, scanCodes func() string, now func() time.Time, logger *slog.Logger) (http.Handler, *application.CompletionSweep) {
	batchStore := bridge.NewBatchStore(store)
	sessionStore := bridge.NewSessionStore(store)
	checkInStore := bridge.NewCheckInStore(store)
	users := bridge.NewUserDirectory(store)
	orgs := bridge.NewOrgDirectory(store)

	cache := application.NewIndicatorCache(time.Minute, 256, now)

	batchService := application.NewBatchService(application.BatchServiceDeps{
		Batches:   batchStore,
		Sessions:  sessionStore,
		Users:     users,
		Orgs:      orgs,
		Cache:     cache,
		IDs:       ids,
		ScanCodes: scanCodes,
		Now:       now,
		Location:  cfg.Timezone,
		Logger:    logger,
	})
	sessionService := application.NewSessionService(application.SessionServiceDeps{
		Sessions:  sessionStore,
		Users:     users,
		Orgs:      orgs,
		Cache:     cache,
		IDs:       ids,
		ScanCodes: scanCodes,
		Now:       now,
		Location:  cfg.Timezone,
		Logger:    logger,
	})
	checkInService := application.NewCheckInService(
		sessionStore, checkInStore, orgs,
		application.CoordinateGeofence{},
		cfg.LateGrace, ids, now, logger,
	)
	sweep := application.NewCompletionSweep(sessionStore, orgs, cache, cfg.Timezone, now, logger)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Batches:  httptransport.NewBatchHandler(batchService, logger),
		Sessions: httptransport.NewSessionHandler(sessionService, logger),
		CheckIns: httptransport.NewCheckInHandler(checkInService, logger),
		Feed:     httptransport.NewFeedHandler(sessionService, orgs, cfg.Timezone, logger),
		Sweep:    httptransport.NewSweepHandler(sweep, logger),
		Logger:   logger,
	})
	return router, sweep
}

// newScanCodeGenerator produces opaque short codes for session QR
// payloads. The uuid fallback only triggers when the random source is
// unreadable.
func newScanCodeGenerator() func() string {
	return func() string {
		code, err := gonanoid.Generate(scanCodeAlphabet, scanCodeLength)
		if err != nil {
			return uuid.NewString()
		}
		return code
	}
}

// Fixed identifiers for the memory-store demo tenancy, so requests can
// be issued against a fresh process without a lookup step.
const (
	demoOrgID      = "org-demo"
	demoAdminID    = "user-admo"
	demoOperatorID = "user-opra"
	demoMemberID   = "user-memb"
	demoMemberID2  = "user-mem2"
)

func seedDemoData(ctx context.Context, store repositoryStore, now func() time.Time) error {
	at := now().UTC()

	org := persistence.Organization{
		ID:        demoOrgID,
		Name:      "Demo Organization",
		Timezone:  "UTC",
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := store.CreateOrganization(ctx, org); err != nil {
		return fmt.Errorf("seed organization: %w", err)
	}

	users := []persistence.User{
		{ID: demoAdminID, OrgID: demoOrgID, Email: "admin@demo.example", FirstName: "Ada", LastName: "Admin", Role: string(application.RoleAdmin), CreatedAt: at, UpdatedAt: at},
		{ID: demoOperatorID, OrgID: demoOrgID, Email: "operator@demo.example", FirstName: "Omar", LastName: "Operator", Role: string(application.RoleOperator), CreatedAt: at, UpdatedAt: at},
		{ID: demoMemberID, OrgID: demoOrgID, Email: "member@demo.example", FirstName: "Mina", LastName: "Member", Role: string(application.RoleMember), CreatedAt: at, UpdatedAt: at},
		{ID: demoMemberID2, OrgID: demoOrgID, Email: "second@demo.example", FirstName: "Sam", LastName: "Second", Role: string(application.RoleMember), CreatedAt: at, UpdatedAt: at},
	}
	for _, user := range users {
		if err := store.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", user.ID, err)
		}
	}
	return nil
}
