package httpapi

import (
	"context"
	"net/http"

	"github.com/MrEthical07/twofactor"
	"github.com/MrEthical07/twofactor/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Limiter throttles code-accepting routes. internal/limiters.Local and
// internal/limiters.Window implement it.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Options wires the router. Engine and Parser are required.
type Options struct {
	Engine *twofactor.Engine
	Parser middleware.SubjectParser
	// Limiter is optional; nil disables throttling.
	Limiter Limiter
	Logger  *zap.Logger
	// TrustProxyHeaders takes the client IP from X-Forwarded-For or
	// X-Real-IP instead of the connection address.
	TrustProxyHeaders bool
}

type api struct {
	engine  *twofactor.Engine
	limiter Limiter
	log     *zap.Logger
}

// Router returns the 2FA routes, ready to mount (typically under /2fa).
func Router(opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &api{engine: opts.Engine, limiter: opts.Limiter, log: logger}

	r := chi.NewRouter()
	r.Use(RequestContext(opts.TrustProxyHeaders))
	r.Use(RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(noStore)
	r.Use(middleware.Authenticate(opts.Parser))

	r.Get("/status", a.status)
	r.Post("/setup", a.beginSetup)
	r.Post("/logout", a.logout)

	r.Group(func(r chi.Router) {
		r.Use(a.throttle)
		r.Post("/setup/complete", a.completeSetup)
		r.Post("/verify", a.verify)
		r.Post("/verify/backup", a.verifyBackup)
		r.Post("/backup-codes/regenerate", a.regenerate)
		r.Post("/disable", a.disable)
	})

	return r
}

// Responses carry secrets and backup codes.
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (a *api) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		ip := ClientIPFromRequest(r)
		ok, err := a.limiter.Allow(r.Context(), "2fa:"+ip)
		if err != nil {
			// The per-user lockout still applies, so a limiter outage lets
			// the request through.
			a.log.Warn("limiter unavailable", zap.Error(err), zap.String("client_ip", ip))
		} else if !ok {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
