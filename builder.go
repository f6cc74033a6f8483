package twofactor

import (
	"crypto/rand"
	"errors"
	"io"

	internalaudit "github.com/MrEthical07/twofactor/internal/audit"
	"github.com/MrEthical07/twofactor/internal/flows"
	"github.com/MrEthical07/twofactor/store"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Store is implemented by backends that hold both profiles and verification
// rows, such as memstore, redisstore and pgstore.
type Store interface {
	store.ProfileStore
	store.VerificationStore
}

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config

	profiles store.ProfileStore
	sessions store.VerificationStore

	clock     clockwork.Clock
	random    io.Reader
	log       *zap.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. Later With* calls that touch
// config fields apply on top of it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithProfileStore sets the backend that holds 2FA profiles.
func (b *Builder) WithProfileStore(s store.ProfileStore) *Builder {
	b.profiles = s
	return b
}

// WithVerificationStore sets the backend that records verified sessions.
func (b *Builder) WithVerificationStore(s store.VerificationStore) *Builder {
	b.sessions = s
	return b
}

// WithStore uses s for both profiles and verification rows.
func (b *Builder) WithStore(s Store) *Builder {
	b.profiles = s
	b.sessions = s
	return b
}

// WithClock overrides the time source. Tests pass a clockwork.FakeClock.
func (b *Builder) WithClock(c clockwork.Clock) *Builder {
	b.clock = c
	return b
}

// WithRandom overrides the entropy source used for secrets, backup codes and
// sealing nonces.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

// WithLogger sets the engine logger. A nil logger is replaced by zap.NewNop.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	b.log = log
	return b
}

// WithAuditSink sets the sink events are dispatched to. Audit must also be
// enabled in the configuration.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled overrides Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms overrides Config.Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.profiles == nil {
		return nil, errors.New("profile store is required")
	}
	if b.sessions == nil {
		return nil, errors.New("verification store is required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	random := b.random
	if random == nil {
		random = rand.Reader
	}
	log := b.log
	if log == nil {
		log = zap.NewNop()
	}

	totp, err := newTOTPManager(cfg.TOTP, random)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(cfg.Metrics)
	dispatcher := internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev internalaudit.Event) {
			log.Warn("audit event dropped", zap.String("event", ev.EventType), zap.String("user_id", ev.UserID))
		},
	}, b.auditSink)

	b.built = true

	return &Engine{
		config:      cfg,
		profiles:    b.profiles,
		sessions:    b.sessions,
		clock:       clock,
		random:      random,
		randomIndex: flows.RandomIndexFrom(random),
		lockout: flows.Lockout{
			MaxAttempts: cfg.Lockout.MaxAttempts,
			Duration:    cfg.Lockout.Duration,
		},
		totp:    totp,
		audit:   dispatcher,
		metrics: metrics,
		log:     log,
	}, nil
}
