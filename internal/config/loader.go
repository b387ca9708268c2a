package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/attendance-tracker/internal/logging"
)

// Store backends selectable through ATTENDANCE_STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config captures environment driven configuration values for the attendance service.
type Config struct {
	HTTPAddr      string
	Store         string
	DBPath        string
	Timezone      *time.Location
	LogLevel      slog.Level
	SweepSchedule string
	SweepDisabled bool
	LateGrace     time.Duration
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Missing required keys and values
// that fail to parse are aggregated so a single Load reports every problem.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:      ":8080",
		Store:         StoreSQLite,
		Timezone:      time.UTC,
		LogLevel:      slog.LevelInfo,
		SweepSchedule: "30 2 * * *",
		LateGrace:     15 * time.Minute,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if addr := strings.TrimSpace(os.Getenv("ATTENDANCE_HTTP_ADDR")); addr != "" {
		cfg.HTTPAddr = addr
	}

	storeKnown := true
	if value := strings.TrimSpace(os.Getenv("ATTENDANCE_STORE")); value != "" {
		switch strings.ToLower(value) {
		case StoreSQLite, StoreMemory:
			cfg.Store = strings.ToLower(value)
		default:
			invalid = append(invalid, "ATTENDANCE_STORE")
			storeKnown = false
		}
	}

	// The memory store has no file to point at, so the path is only
	// required for the SQLite backend.
	if path := strings.TrimSpace(os.Getenv("ATTENDANCE_DB_PATH")); path != "" {
		cfg.DBPath = path
	} else if storeKnown && cfg.Store == StoreSQLite {
		missing = append(missing, "ATTENDANCE_DB_PATH")
	}

	if name := strings.TrimSpace(os.Getenv("ATTENDANCE_TIMEZONE")); name != "" {
		location, err := time.LoadLocation(name)
		if err != nil {
			invalid = append(invalid, "ATTENDANCE_TIMEZONE")
		} else {
			cfg.Timezone = location
		}
	}

	if value := strings.TrimSpace(os.Getenv("ATTENDANCE_LOG_LEVEL")); value != "" {
		level, err := logging.ParseLevel(value)
		if err != nil {
			invalid = append(invalid, "ATTENDANCE_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if spec := strings.TrimSpace(os.Getenv("ATTENDANCE_SWEEP_SCHEDULE")); spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			invalid = append(invalid, "ATTENDANCE_SWEEP_SCHEDULE")
		} else {
			cfg.SweepSchedule = spec
		}
	}

	if value := strings.TrimSpace(os.Getenv("ATTENDANCE_SWEEP_DISABLED")); value != "" {
		disabled, err := strconv.ParseBool(value)
		if err != nil {
			invalid = append(invalid, "ATTENDANCE_SWEEP_DISABLED")
		} else {
			cfg.SweepDisabled = disabled
		}
	}

	if value := strings.TrimSpace(os.Getenv("ATTENDANCE_LATE_GRACE_MINUTES")); value != "" {
		minutes, err := strconv.Atoi(value)
		if err != nil || minutes <= 0 {
			invalid = append(invalid, "ATTENDANCE_LATE_GRACE_MINUTES")
		} else {
			cfg.LateGrace = time.Duration(minutes) * time.Minute
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
