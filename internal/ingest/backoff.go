package ingest

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 60 * time.Second
	DefaultMaxJitter   = 10 * time.Second
)

// Backoff computes retry delays: base * 2^(attempt-1) plus jitter in [0, maxJitter).
type Backoff struct {
	maxAttempts int
	baseDelay   time.Duration
	maxJitter   time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBackoff creates a Backoff. Zero values use the defaults; a nil rng is seeded randomly.
func NewBackoff(maxAttempts int, baseDelay, maxJitter time.Duration, rng *rand.Rand) *Backoff {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxJitter < 0 {
		maxJitter = 0
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Backoff{maxAttempts: maxAttempts, baseDelay: baseDelay, maxJitter: maxJitter, rng: rng}
}

// MaxAttempts is the total number of attempts an article gets.
func (b *Backoff) MaxAttempts() int { return b.maxAttempts }

// Next returns the delay before the attempt following the failed one.
// ok is false once attempt has reached the maximum.
func (b *Backoff) Next(attempt int) (delay time.Duration, ok bool) {
	if attempt < 1 || attempt >= b.maxAttempts {
		return 0, false
	}
	delay = b.baseDelay << (attempt - 1)
	if b.maxJitter > 0 {
		b.mu.Lock()
		delay += time.Duration(b.rng.Int64N(int64(b.maxJitter)))
		b.mu.Unlock()
	}
	return delay, true
}
