package limiters

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// LocalConfig holds the token bucket parameters of a [Local] limiter.
type LocalConfig struct {
	// Rate is the sustained number of requests per second per key.
	Rate  float64 `env:"RATE" envDefault:"0.5"`
	Burst int     `env:"BURST" envDefault:"5"`
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local keeps one token bucket per key in memory.
type Local struct {
	limit rate.Limit
	burst int
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]*localEntry
}

// NewLocal creates a Local limiter. A nil clock uses the real clock.
func NewLocal(cfg LocalConfig, clock clockwork.Clock) *Local {
	if cfg.Rate <= 0 {
		cfg.Rate = 0.5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Local{
		limit:   rate.Limit(cfg.Rate),
		burst:   cfg.Burst,
		clock:   clock,
		entries: make(map[string]*localEntry),
	}
}

// Allow takes one token from key's bucket.
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}
	now := l.clock.Now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1), nil
}

// Sweep drops buckets idle for longer than idle and returns how many were
// removed.
func (l *Local) Sweep(idle time.Duration) int {
	cutoff := l.clock.Now().Add(-idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every interval until ctx is done.
func (l *Local) Run(ctx context.Context, interval, idle time.Duration) {
	ticker := l.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.Sweep(idle)
		}
	}
}
