// Command twofactord serves the two-factor engine over HTTP.
//
// Configuration comes from the environment (and an optional .env file):
// server settings such as HTTP_ADDR, STORE_BACKEND, REDIS_URL, DATABASE_URL,
// JWT_* and LOG_*, and engine settings under the TWOFACTOR_ prefix.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/twofactor"
	"github.com/MrEthical07/twofactor/internal/logging"
	"github.com/MrEthical07/twofactor/jwt"
	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "twofactord:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadServerConfig(env.Options{})
	if err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	engineCfg, err := twofactor.LoadConfig()
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	for _, w := range engineCfg.Lint() {
		log.Warn("config lint", zap.String("code", w.Code), zap.String("message", w.Message))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, engineCfg.Session.RedisPrefix, log)
	if err != nil {
		return fmt.Errorf("store backend: %w", err)
	}
	defer be.close()

	for _, u := range cfg.seedUsers() {
		if err := be.addUser(ctx, u[0], u[1]); err != nil {
			return fmt.Errorf("seed user %q: %w", u[0], err)
		}
	}

	builder := twofactor.New().
		WithConfig(engineCfg).
		WithLogger(log.Named("engine")).
		WithProfileStore(be.profiles).
		WithVerificationStore(be.sessions)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(twofactor.NewZapSink(log.Named("audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	tokens, err := newTokenManager(cfg.JWT)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: newRouter(routeDeps{
			engine:            engine,
			tokens:            tokens,
			limiter:           be.limiter,
			ping:              be.ping,
			trustProxyHeaders: cfg.TrustProxyHeaders,
			log:               log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr), zap.String("backend", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := engine.RunPruner(gctx, cfg.PruneInterval); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if be.local != nil {
		g.Go(func() error {
			be.local.Run(gctx, time.Minute, 10*time.Minute)
			return nil
		})
	}

	return g.Wait()
}

func newTokenManager(cfg jwtConfig) (*jwt.Manager, error) {
	jc := jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.Method),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        cfg.Leeway,
		KeyID:         cfg.KeyID,
		RequireIAT:    true,
	}
	switch jc.SigningMethod {
	case jwt.MethodHS256:
		if cfg.Secret == "" {
			return nil, errors.New("JWT_SECRET is required for hs256")
		}
		jc.PrivateKey = []byte(cfg.Secret)
	case jwt.MethodEd25519:
		jc.PublicKey = []byte(cfg.PublicKey)
		if cfg.PrivateKey != "" {
			jc.PrivateKey = []byte(cfg.PrivateKey)
		}
	}
	return jwt.NewManager(jc)
}
