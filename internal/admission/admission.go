// Package admission holds the in-process gates that decide whether a run may start:
// a per-feed cooldown and a per-key sliding request window.
package admission

import (
	"sync"
	"time"
)

const (
	DefaultCooldown      = 5 * time.Minute
	DefaultWindowLimit   = 60
	DefaultWindowPeriod  = 60 * time.Second
	pruneEveryNthRequest = 256
)

// Clock returns the current time.
type Clock func() time.Time

// Cooldown enforces a minimum interval between manual runs of the same feed.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[string]time.Time
	now      Clock
}

// NewCooldown creates a Cooldown. A nil clock uses time.Now.
func NewCooldown(interval time.Duration, now Clock) *Cooldown {
	if interval <= 0 {
		interval = DefaultCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Cooldown{interval: interval, last: make(map[string]time.Time), now: now}
}

// CanProcessNow reports whether the cooldown for id has elapsed.
func (c *Cooldown) CanProcessNow(id string) bool {
	return c.Remaining(id) == 0
}

// SetLastProcessTime records that id ran now.
func (c *Cooldown) SetLastProcessTime(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[id] = c.now()
}

// Remaining returns how long id must still wait, or zero.
func (c *Cooldown) Remaining(id string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remainingLocked(id)
}

// TryAcquire checks and records in one step so two concurrent callers cannot
// both start the same feed. On refusal it returns the remaining wait.
func (c *Cooldown) TryAcquire(id string) (bool, time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remaining := c.remainingLocked(id); remaining > 0 {
		return false, remaining
	}
	c.last[id] = c.now()
	return true, 0
}

// Release forgets id's recorded run so it may start again immediately.
func (c *Cooldown) Release(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.last, id)
}

// Reset forgets every recorded run.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = make(map[string]time.Time)
}

func (c *Cooldown) remainingLocked(id string) time.Duration {
	last, ok := c.last[id]
	if !ok {
		return 0
	}
	remaining := c.interval - c.now().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SlidingWindow admits at most limit requests per key in any rolling period.
type SlidingWindow struct {
	mu       sync.Mutex
	limit    int
	period   time.Duration
	hits     map[string][]time.Time
	requests int
	now      Clock
}

// NewSlidingWindow creates a SlidingWindow. A nil clock uses time.Now.
func NewSlidingWindow(limit int, period time.Duration, now Clock) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultWindowLimit
	}
	if period <= 0 {
		period = DefaultWindowPeriod
	}
	if now == nil {
		now = time.Now
	}
	return &SlidingWindow{limit: limit, period: period, hits: make(map[string][]time.Time), now: now}
}

// Allow records a request for key and reports whether it fits in the window.
// Rejected requests are not recorded.
func (w *SlidingWindow) Allow(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.requests++
	if w.requests%pruneEveryNthRequest == 0 {
		w.pruneLocked(now)
	}

	hits := w.activeLocked(key, now)
	if len(hits) >= w.limit {
		w.hits[key] = hits
		return false
	}
	w.hits[key] = append(hits, now)
	return true
}

// RetryAfter returns when key's oldest hit leaves the window, or zero when key has room.
func (w *SlidingWindow) RetryAfter(key string) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	hits := w.activeLocked(key, now)
	if len(hits) < w.limit {
		return 0
	}
	return hits[0].Add(w.period).Sub(now)
}

// Reset clears every key.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hits = make(map[string][]time.Time)
}

func (w *SlidingWindow) activeLocked(key string, now time.Time) []time.Time {
	hits := w.hits[key]
	cutoff := now.Add(-w.period)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// pruneLocked drops keys with no hits left in the window.
func (w *SlidingWindow) pruneLocked(now time.Time) {
	for key := range w.hits {
		if len(w.activeLocked(key, now)) == 0 {
			delete(w.hits, key)
		}
	}
}
