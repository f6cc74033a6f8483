package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/twofactor/httpapi"
	"github.com/MrEthical07/twofactor/internal/limiters"
	"github.com/MrEthical07/twofactor/session"
	"github.com/MrEthical07/twofactor/store"
	"github.com/MrEthical07/twofactor/store/memstore"
	"github.com/MrEthical07/twofactor/store/pgstore"
	"github.com/MrEthical07/twofactor/store/redisstore"
	"go.uber.org/zap"
)

// backend bundles the stores behind the engine together with the matching
// limiter and health probe.
type backend struct {
	profiles store.ProfileStore
	sessions store.VerificationStore
	limiter  httpapi.Limiter
	// local is set when limiter sweeps idle buckets in-process.
	local *limiters.Local
	addUser func(ctx context.Context, userID, account string) error
	ping    func(ctx context.Context) error
	close   func()
}

// sessionPrefix namespaces verification rows in Redis.
func openBackend(ctx context.Context, cfg serverConfig, sessionPrefix string, log *zap.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case backendMemory:
		st := memstore.New()
		local := limiters.NewLocal(cfg.Limit, nil)
		log.Warn("using in-memory store; state is lost on restart")
		return &backend{
			profiles: st,
			sessions: st,
			limiter:  local,
			local:    local,
			addUser: func(_ context.Context, userID, account string) error {
				st.PutUser(userID, account)
				return nil
			},
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil

	case backendRedis:
		client, err := redisstore.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		profiles := redisstore.New(client, "")
		sessions := session.NewStore(client, sessionPrefix)
		return &backend{
			profiles: profiles,
			sessions: sessions,
			limiter:  limiters.NewWindow(client, cfg.Window),
			addUser:  profiles.PutUser,
			ping: func(ctx context.Context) error {
				_, err := sessions.Ping(ctx)
				return err
			},
			close: func() {
				if err := client.Close(); err != nil {
					log.Warn("redis close failed", zap.Error(err))
				}
			},
		}, nil

	case backendPostgres:
		pool, err := pgstore.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		st := pgstore.New(pool)
		local := limiters.NewLocal(cfg.Limit, nil)
		return &backend{
			profiles: st,
			sessions: st,
			limiter:  local,
			local:    local,
			addUser:  st.PutUser,
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil
	}
	return nil, errors.New("unknown store backend")
}
