package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2026, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(90 * time.Minute)
	if !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}

	clock.Set(start.Add(2 * time.Hour))
	if got := clock.Now(); !got.Equal(start.Add(2 * time.Hour)) {
		t.Fatalf("expected %v, got %v", start.Add(2*time.Hour), got)
	}
}

func TestClockNowFunc(t *testing.T) {
	clock := NewClock(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	nowFn := clock.NowFunc()

	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected %v from NowFunc, got %v", clock.Now(), got)
	}

	clock.Advance(time.Minute)
	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected updated time %v, got %v", clock.Now(), got)
	}
}

func TestClockSetSlot(t *testing.T) {
	clock := NewClock(time.Time{})

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	at, err := clock.SetSlot("2026-03-20", "09:10", tokyo)
	if err != nil {
		t.Fatalf("set slot: %v", err)
	}
	want := time.Date(2026, time.March, 20, 9, 10, 0, 0, tokyo)
	if !at.Equal(want) || !clock.Now().Equal(want) {
		t.Fatalf("expected %v, got %v (clock %v)", want, at, clock.Now())
	}
	if got := clock.Today(tokyo); got != "2026-03-20" {
		t.Fatalf("expected 2026-03-20, got %q", got)
	}

	if _, err := clock.SetSlot("2026-03-20", "9am", nil); err == nil {
		t.Fatal("expected an error for a malformed clock value")
	}
	if !clock.Now().Equal(want) {
		t.Fatalf("expected the clock untouched after a bad slot, got %v", clock.Now())
	}
}

func TestClockToday(t *testing.T) {
	clock := NewClock(time.Date(2026, time.March, 2, 23, 30, 0, 0, time.UTC))

	if got := clock.Today(nil); got != "2026-03-02" {
		t.Fatalf("expected 2026-03-02, got %q", got)
	}

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	if got := clock.Today(tokyo); got != "2026-03-03" {
		t.Fatalf("expected the date to roll over in Tokyo, got %q", got)
	}
}
