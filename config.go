package twofactor

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/twofactor/internal/secretbox"
	"github.com/MrEthical07/twofactor/otp"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every variable read by [LoadConfig].
const EnvPrefix = "TWOFACTOR_"

// Config holds every tunable of the engine. Obtain defaults from
// [DefaultConfig] or the environment through [LoadConfig].
type Config struct {
	TOTP        TOTPConfig        `envPrefix:"TOTP_"`
	Lockout     LockoutConfig     `envPrefix:"LOCKOUT_"`
	BackupCodes BackupCodesConfig `envPrefix:"BACKUP_CODES_"`
	Session     SessionConfig     `envPrefix:"SESSION_"`
	Audit       AuditConfig       `envPrefix:"AUDIT_"`
	Metrics     MetricsConfig     `envPrefix:"METRICS_"`
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig controls secret provisioning and code matching. Codes are
// always 6 digits over 30-second steps with HMAC-SHA1.
type TOTPConfig struct {
	Issuer string `env:"ISSUER" envDefault:"twofactor"`
	// Skew is the number of steps accepted on each side of the current one.
	Skew                    int  `env:"SKEW" envDefault:"1"`
	EnforceReplayProtection bool `env:"ENFORCE_REPLAY_PROTECTION" envDefault:"true"`
	// EncryptionKey is a base64 32-byte AES key. When set, secrets are
	// stored sealed.
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	RenderQRCode  bool   `env:"RENDER_QR_CODE" envDefault:"true"`
	QRCodeSize    int    `env:"QR_CODE_SIZE" envDefault:"256"`
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig sets the failed-attempt threshold of VerifyCode. Backup
// codes, regeneration and Disable do not count towards it.
type LockoutConfig struct {
	MaxAttempts uint32        `env:"MAX_ATTEMPTS" envDefault:"5"`
	Duration    time.Duration `env:"DURATION" envDefault:"15m"`
}

/*
====================================
BACKUP CODES CONFIG
====================================
*/

// BackupCodesConfig sets the size of an issued backup code set.
type BackupCodesConfig struct {
	Count  int `env:"COUNT" envDefault:"8"`
	Length int `env:"LENGTH" envDefault:"8"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls per-session verification rows.
type SessionConfig struct {
	// VerificationTTL bounds how long a verified session stays trusted.
	// Zero keeps rows until the session is revoked.
	VerificationTTL time.Duration `env:"VERIFICATION_TTL" envDefault:"24h"`
	RedisPrefix     string        `env:"REDIS_PREFIX" envDefault:"tfs"`
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED" envDefault:"false"`
	BufferSize int  `env:"BUFFER_SIZE" envDefault:"1024"`
	DropIfFull bool `env:"DROP_IF_FULL" envDefault:"true"`
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED" envDefault:"true"`
	EnableLatencyHistograms bool `env:"ENABLE_LATENCY_HISTOGRAMS" envDefault:"false"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		TOTP: TOTPConfig{
			Issuer:                  "twofactor",
			Skew:                    1,
			EnforceReplayProtection: true,
			RenderQRCode:            true,
			QRCodeSize:              256,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		BackupCodes: BackupCodesConfig{
			Count:  8,
			Length: 8,
		},
		Session: SessionConfig{
			VerificationTTL: 24 * time.Hour,
			RedisPrefix:     "tfs",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// Config has no reference fields; the copy is already deep.
func cloneConfig(cfg Config) Config {
	return cfg
}

// LoadConfig reads the configuration from TWOFACTOR_* environment variables.
// A .env file in the working directory is loaded first when present.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	return loadConfig(env.Options{Prefix: EnvPrefix})
}

func loadConfig(opts env.Options) (Config, error) {
	cfg := defaultConfig()
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be non-empty")
	}
	if strings.Contains(c.TOTP.Issuer, ":") {
		return errors.New("TOTP Issuer must not contain ':'")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > otp.MaxSkew {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	if c.TOTP.EncryptionKey != "" {
		if _, err := secretbox.ParseKey(c.TOTP.EncryptionKey); err != nil {
			return errors.New("TOTP EncryptionKey must be base64 of 32 bytes")
		}
	}
	if c.TOTP.RenderQRCode && c.TOTP.QRCodeSize <= 0 {
		return errors.New("TOTP QRCodeSize must be > 0 when RenderQRCode is true")
	}

	// Lockout
	if c.Lockout.MaxAttempts == 0 {
		return errors.New("Lockout MaxAttempts must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Backup codes
	if c.BackupCodes.Count <= 0 {
		return errors.New("BackupCodes Count must be > 0")
	}
	if c.BackupCodes.Length < 6 || c.BackupCodes.Length > 32 {
		return errors.New("BackupCodes Length must be between 6 and 32")
	}

	// Session
	if c.Session.VerificationTTL < 0 {
		return errors.New("Session VerificationTTL must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning flags a setting that is valid but weakens the deployment.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the ordered result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint returns advisory warnings. It never fails; run Validate for hard
// errors.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings

	if c.TOTP.Skew > 1 {
		ws = append(ws, LintWarning{"skew_wide", "TOTP Skew above 1 accepts codes up to a minute old"})
	}
	if c.TOTP.Skew > 0 && !c.TOTP.EnforceReplayProtection {
		ws = append(ws, LintWarning{"replay_protection_disabled", "a skew window without replay protection lets one code be used several times"})
	}
	if c.TOTP.EncryptionKey == "" {
		ws = append(ws, LintWarning{"secrets_unencrypted", "TOTP secrets are stored in plaintext"})
	}
	if c.Lockout.MaxAttempts > 10 {
		ws = append(ws, LintWarning{"lockout_lenient", "more than 10 attempts before lockout"})
	}
	if c.Lockout.Duration < time.Minute {
		ws = append(ws, LintWarning{"lockout_short", "lockout shorter than one minute"})
	}
	if c.Session.VerificationTTL == 0 {
		ws = append(ws, LintWarning{"session_ttl_unbounded", "verified sessions never expire"})
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		ws = append(ws, LintWarning{"audit_may_drop", "audit events are dropped when the buffer is full"})
	}

	return ws
}
