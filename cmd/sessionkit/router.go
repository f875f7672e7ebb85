package main

import (
	"log/slog"
	"net/http"

	"github.com/aretw0/sessionkit/internal/config"
	sessionhttp "github.com/aretw0/sessionkit/pkg/adapters/http"
	"github.com/aretw0/sessionkit/pkg/attributes"
	"github.com/aretw0/sessionkit/pkg/ports"
	"github.com/aretw0/sessionkit/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newRouter mounts the session API and, when enabled, the metrics of reg.
func newRouter(cfg config.Config, manager session.Manager, batcher ports.Batcher, reg *prometheus.Registry, logger *slog.Logger) (http.Handler, error) {
	masker, err := attributes.NewMasker(cfg.Session.Mask)
	if err != nil {
		return nil, err
	}
	api := sessionhttp.NewServer(manager, batcher,
		sessionhttp.WithCookieName(cfg.Session.CookieName),
		sessionhttp.WithMasker(masker),
		sessionhttp.WithLogger(logger),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if cfg.HTTP.Metrics && reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	r.Mount("/", api.Routes())
	return r, nil
}
