package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/attendance-tracker/internal/config"
	"github.com/example/attendance-tracker/internal/logging"
	"github.com/example/attendance-tracker/internal/persistence/memory"
)

func testConfig() config.Config {
	return config.Config{
		HTTPAddr:  ":0",
		Store:     config.StoreMemory,
		Timezone:  time.UTC,
		LogLevel:  slog.LevelError,
		LateGrace: 15 * time.Minute,
	}
}

func testClock() func() time.Time {
	reference := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return reference }
}

func TestScanCodeGenerator(t *testing.T) {
	t.Parallel()

	generate := newScanCodeGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := generate()
		if len(code) != scanCodeLength {
			t.Fatalf("expected %d-character code, got %q", scanCodeLength, code)
		}
		for _, r := range code {
			if !strings.ContainsRune(scanCodeAlphabet, r) {
				t.Fatalf("code %q contains %q outside the alphabet", code, r)
			}
		}
		if seen[code] {
			t.Fatalf("generator repeated code %q within 50 draws", code)
		}
		seen[code] = true
	}
}

func TestSeedDemoData(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	if err := seedDemoData(context.Background(), store, testClock()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	org, err := store.GetOrganization(context.Background(), demoOrgID)
	if err != nil {
		t.Fatalf("expected demo organization, got %v", err)
	}
	if org.Timezone != "UTC" {
		t.Fatalf("expected UTC demo org, got %q", org.Timezone)
	}

	users, err := store.ListUsers(context.Background(), demoOrgID)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 4 {
		t.Fatalf("expected 4 demo users, got %d", len(users))
	}
}

func TestOpenStoreMemory(t *testing.T) {
	t.Parallel()

	store, closeStore, err := openStore(context.Background(), testConfig(), logging.New(io.Discard, slog.LevelError))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store == nil {
		t.Fatal("expected a store")
	}
	if err := closeStore(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// TestBuildApplication drives the assembled handler end to end against
// the memory store: seed tenancy, create a weekly batch as the demo
// admin, and read the materialized sessions back on a selected date.
func TestBuildApplication(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	now := testClock()
	if err := seedDemoData(context.Background(), store, now); err != nil {
		t.Fatalf("seed: %v", err)
	}

	counter := 0
	ids := func() string { counter++; return fmt.Sprintf("id-%04d", counter) }
	scanCodes := newScanCodeGenerator()
	logger := logging.New(io.Discard, slog.LevelError)

	handler, sweep := buildApplication(testConfig(), store, ids, scanCodes, now, logger)
	if sweep == nil {
		t.Fatal("expected a completion sweep")
	}

	t.Run("healthz is open", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("api requires identity headers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})

	asAdmin := func(req *http.Request) *http.Request {
		req.Header.Set("X-Org-ID", demoOrgID)
		req.Header.Set("X-User-ID", demoAdminID)
		req.Header.Set("X-User-Role", "admin")
		return req
	}

	t.Run("create batch then read its sessions", func(t *testing.T) {
		body := map[string]any{
			"title":       "Morning Stand",
			"frequency":   "WEEKLY",
			"startDate":   "2026-03-02",
			"endDate":     "2026-03-15",
			"weeklyDays":  []string{"MONDAY", "WEDNESDAY"},
			"startTime":   "09:00",
			"endTime":     "10:00",
			"sessionType": "REMOTE",
			"virtualLink": "https://meet.example.com/stand",
			"roster": []map[string]string{
				{"userId": demoMemberID},
				{"userId": demoMemberID2},
			},
		}
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		rec := httptest.NewRecorder()
		req := asAdmin(httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader(payload)))
		req.Header.Set("Content-Type", "application/json")
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var created struct {
			Batch struct {
				ID   string `json:"id"`
				Slug string `json:"slug"`
			} `json:"batch"`
			SessionCount int `json:"sessionCount"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("decode create response: %v", err)
		}
		if created.SessionCount != 4 {
			t.Fatalf("expected 4 sessions for two weekdays over two weeks, got %d", created.SessionCount)
		}
		if created.Batch.Slug != "morning-stand" {
			t.Fatalf("expected derived slug, got %q", created.Batch.Slug)
		}

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, asAdmin(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?date=2026-03-04&all=true", nil)))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var listed struct {
			Sessions []struct {
				StartDate string `json:"startDate"`
				Status    string `json:"status"`
			} `json:"sessions"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
			t.Fatalf("decode list response: %v", err)
		}
		if len(listed.Sessions) != 1 {
			t.Fatalf("expected 1 session on 2026-03-04, got %d", len(listed.Sessions))
		}
		if listed.Sessions[0].Status != "Upcoming" {
			t.Fatalf("expected Upcoming, got %q", listed.Sessions[0].Status)
		}
	})

	t.Run("member cannot create batches", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", strings.NewReader("{}"))
		req.Header.Set("X-Org-ID", demoOrgID)
		req.Header.Set("X-User-ID", demoMemberID)
		req.Header.Set("X-User-Role", "member")
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})
}
