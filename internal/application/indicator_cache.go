package application

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/attendance-tracker/internal/session"
)

// IndicatorCache stores recently aggregated calendar indicator months so
// repeated calendar renders skip the classifier sweep while the
// organization's sessions remain unchanged. Every mutating service
// operation invalidates it. A nil cache disables caching.
type IndicatorCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]indicatorCacheEntry
}

type indicatorCacheEntry struct {
	indicators map[string]session.Indicator
	expiresAt  time.Time
}

// NewIndicatorCache builds a cache with the given entry lifetime and
// capacity. Non-positive arguments fall back to 30 seconds and 256
// entries.
func NewIndicatorCache(ttl time.Duration, maxEntries int, now func() time.Time) *IndicatorCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 256
	}
	if now == nil {
		now = time.Now
	}
	return &IndicatorCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]indicatorCacheEntry),
	}
}

func (c *IndicatorCache) get(key string) (map[string]session.Indicator, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return cloneIndicators(entry.indicators), true
}

func (c *IndicatorCache) store(key string, indicators map[string]session.Indicator) {
	if c == nil {
		return
	}
	cloned := cloneIndicators(indicators)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = indicatorCacheEntry{indicators: cloned, expiresAt: expiry}
}

// Invalidate drops every cached month.
func (c *IndicatorCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]indicatorCacheEntry)
	c.mu.Unlock()
}

func (c *IndicatorCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *IndicatorCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneIndicators(indicators map[string]session.Indicator) map[string]session.Indicator {
	if indicators == nil {
		return nil
	}
	out := make(map[string]session.Indicator, len(indicators))
	for date, indicator := range indicators {
		out[date] = indicator
	}
	return out
}

func indicatorCacheKey(params DayIndicatorsParams) string {
	mine := ""
	if params.Mine {
		mine = params.Principal.UserID
	}
	return fmt.Sprintf("%s|%s|%d-%02d", params.Principal.OrgID, mine,
		params.Year, int(params.Month))
}
