package limiters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultWindowMaxHits = 10
	defaultWindow        = time.Minute
	defaultWindowPrefix  = "tfl"
)

var (
	// ErrLimiterUnavailable wraps Redis failures.
	ErrLimiterUnavailable = errors.New("limiter backend unavailable")
)

// WindowConfig holds the thresholds of a [Window] limiter.
type WindowConfig struct {
	MaxHits int           `env:"MAX_HITS" envDefault:"10"`
	Window  time.Duration `env:"WINDOW" envDefault:"1m"`
	Prefix  string        `env:"PREFIX" envDefault:"tfl"`
}

// Window counts hits per key in fixed Redis windows.
type Window struct {
	redis   redis.UniversalClient
	maxHits int64
	window  time.Duration
	prefix  string
}

// NewWindow creates a Redis window limiter. Zero-value fields in cfg fall
// back to defaults (10 hits / 60s).
func NewWindow(redisClient redis.UniversalClient, cfg WindowConfig) *Window {
	max := cfg.MaxHits
	if max <= 0 {
		max = defaultWindowMaxHits
	}
	w := cfg.Window
	if w <= 0 {
		w = defaultWindow
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultWindowPrefix
	}
	return &Window{redis: redisClient, maxHits: int64(max), window: w, prefix: prefix}
}

func (l *Window) key(key string) string {
	return l.prefix + ":" + key
}

// Allow counts one hit for key and reports whether it fits the window.
func (l *Window) Allow(ctx context.Context, key string) (bool, error) {
	if l == nil {
		return true, nil
	}

	count, err := l.redis.Incr(ctx, l.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(key), l.window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}
	return count <= l.maxHits, nil
}

// Reset clears the counter of key.
func (l *Window) Reset(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}
