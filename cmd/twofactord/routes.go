package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrEthical07/twofactor"
	"github.com/MrEthical07/twofactor/httpapi"
	"github.com/MrEthical07/twofactor/jwt"
	"github.com/MrEthical07/twofactor/metrics/export/prometheus"
	"github.com/MrEthical07/twofactor/middleware"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type routeDeps struct {
	engine            *twofactor.Engine
	tokens            *jwt.Manager
	limiter           httpapi.Limiter
	ping              func(ctx context.Context) error
	trustProxyHeaders bool
	log               *zap.Logger
}

func newRouter(d routeDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", healthz(d.ping))
	r.Handle("/metrics", prometheus.NewPrometheusExporter(d.engine).Handler())

	r.Mount("/2fa", httpapi.Router(httpapi.Options{
		Engine:            d.engine,
		Parser:            d.tokens,
		Limiter:           d.limiter,
		Logger:            d.log,
		TrustProxyHeaders: d.trustProxyHeaders,
	}))

	// /me stands in for the protected operations of the surrounding system.
	r.Group(func(r chi.Router) {
		r.Use(httpapi.RequestContext(d.trustProxyHeaders))
		r.Use(httpapi.RequestLogger(d.log))
		r.Use(middleware.Guard(d.engine, d.tokens))
		r.Get("/me", me)
	})

	return r
}

func me(w http.ResponseWriter, r *http.Request) {
	subj, _ := middleware.SubjectFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"userId":    subj.UserID,
		"sessionId": subj.SessionID,
	})
}

func healthz(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}
}
