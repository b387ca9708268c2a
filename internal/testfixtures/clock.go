package testfixtures

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/attendance-tracker/internal/session"
)

// Clock is a controllable time source for tests. The zero value is not
// usable; construct one with NewClock.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock initialised to the supplied time. When start
// is the zero value, the shared ReferenceTime is used.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the current instant tracked by the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now as a function suitable for dependency injection.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set updates the clock to the provided time.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by the provided duration and returns
// the updated time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// SetSlot positions the clock at a stored session slot: a civil date in
// session.DateLayout plus a 24-hour HH:MM clock value, interpreted in
// the given location. A nil location means UTC. The parsed instant is
// returned so assertions can reuse it.
func (c *Clock) SetSlot(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	at, err := time.ParseInLocation(session.DateLayout+" 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse slot %s %s: %w", date, clock, err)
	}
	c.Set(at)
	return at, nil
}

// Today returns the clock's civil date in the given location, formatted
// the way session dates are stored. A nil location means UTC.
func (c *Clock) Today(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return c.Now().In(loc).Format(session.DateLayout)
}
