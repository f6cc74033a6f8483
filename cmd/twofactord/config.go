package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/twofactor/internal/limiters"
	"github.com/MrEthical07/twofactor/internal/logging"
	"github.com/MrEthical07/twofactor/store/pgstore"
	"github.com/MrEthical07/twofactor/store/redisstore"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
)

type serverConfig struct {
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":8080"`
	StoreBackend      string        `env:"STORE_BACKEND" envDefault:"memory"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	PruneInterval     time.Duration `env:"PRUNE_INTERVAL" envDefault:"10m"`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
	AuditLog          bool          `env:"AUDIT_LOG" envDefault:"true"`
	// SeedUsers registers users at startup as "id=account" pairs. Profiles
	// normally come from the surrounding user system.
	SeedUsers []string `env:"SEED_USERS" envSeparator:","`

	Log      logging.Config
	Redis    redisstore.Config
	Postgres pgstore.Config
	JWT      jwtConfig             `envPrefix:"JWT_"`
	Limit    limiters.LocalConfig  `envPrefix:"LIMIT_"`
	Window   limiters.WindowConfig `envPrefix:"LIMIT_WINDOW_"`
}

type jwtConfig struct {
	Method     string        `env:"METHOD" envDefault:"hs256"`
	Secret     string        `env:"SECRET"`
	PublicKey  string        `env:"PUBLIC_KEY_FILE,file"`
	PrivateKey string        `env:"PRIVATE_KEY_FILE,file"`
	KeyID      string        `env:"KEY_ID"`
	Issuer     string        `env:"ISSUER" envDefault:"twofactor"`
	Audience   string        `env:"AUDIENCE"`
	AccessTTL  time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	Leeway     time.Duration `env:"LEEWAY" envDefault:"30s"`
}

func loadServerConfig(opts env.Options) (serverConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return serverConfig{}, err
	}

	var cfg serverConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return serverConfig{}, err
	}
	if err := cfg.validate(); err != nil {
		return serverConfig{}, err
	}
	return cfg, nil
}

func (c serverConfig) validate() error {
	switch c.StoreBackend {
	case backendMemory, backendRedis, backendPostgres:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres; got %q", c.StoreBackend)
	}
	if c.StoreBackend == backendPostgres && c.Postgres.URL == "" {
		return errors.New("DATABASE_URL is required for the postgres backend")
	}
	if c.PruneInterval <= 0 {
		return errors.New("PRUNE_INTERVAL must be > 0")
	}
	for _, pair := range c.SeedUsers {
		if id, _, _ := strings.Cut(pair, "="); strings.TrimSpace(id) == "" {
			return fmt.Errorf("SEED_USERS entry %q has no user id", pair)
		}
	}
	return nil
}

// seedUsers splits SEED_USERS into id and account name. A bare id is its own
// account name.
func (c serverConfig) seedUsers() [][2]string {
	out := make([][2]string, 0, len(c.SeedUsers))
	for _, pair := range c.SeedUsers {
		id, account, ok := strings.Cut(pair, "=")
		id = strings.TrimSpace(id)
		if !ok {
			account = id
		}
		out = append(out, [2]string{id, strings.TrimSpace(account)})
	}
	return out
}
