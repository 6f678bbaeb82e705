// Package app wires the loading aggregator, the operation registry and the
// HTTP API into one service.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iliamunaev/taskload/internal/batch"
	"github.com/iliamunaev/taskload/internal/config"
	"github.com/iliamunaev/taskload/internal/metrics"
	"github.com/iliamunaev/taskload/internal/middleware"
	"github.com/iliamunaev/taskload/internal/registry"
	"github.com/iliamunaev/taskload/internal/service/loading"
	"github.com/iliamunaev/taskload/internal/service/observable"
	"github.com/iliamunaev/taskload/internal/service/pool"
	httptransport "github.com/iliamunaev/taskload/internal/transport/http"
)

// App is the assembled service.
type App struct {
	Aggregator *loading.Aggregator
	Registry   *registry.Registry
	// Handler serves the API, /metrics included.
	Handler http.Handler

	api  *httptransport.Handler
	subs []*observable.Subscription[bool]
}

// New assembles the service from cfg. Metrics are registered with reg.
func New(cfg config.Config, log zerolog.Logger, reg *prometheus.Registry) *App {
	m := metrics.New(reg)

	agg := loading.New(loading.WithUnderflowHook(func() {
		m.ObserveUnderflow()
		log.Warn().Str("component", "loading").Msg("end called with nothing in flight")
	}))

	transitions := agg.Subscribe(func(v bool) {
		log.Info().Str("component", "loading").Bool("loading", v).Msg("loading state")
	})

	ops := registry.New(agg, pool.New(cfg.MaxConcurrent), m, log, registry.Options{
		DefaultDelay: cfg.DefaultDelay,
		Retention:    cfg.Retention,
	})

	api := httptransport.New(httptransport.Config{
		Operations:     ops,
		Batch:          batch.New(agg),
		Loading:        agg,
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
		DefaultDelay:   cfg.DefaultDelay,
	})

	r := chi.NewRouter()
	r.Use(middleware.Logging(log))
	r.Use(chimw.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Mount("/", api.Routes())

	return &App{
		Aggregator: agg,
		Registry:   ops,
		Handler:    r,
		api:        api,
		subs:       []*observable.Subscription[bool]{transitions, m.WatchLoading(agg)},
	}
}

// Shutdown closes loading streams, cancels every operation and waits until
// nothing is in flight or ctx ends.
func (a *App) Shutdown(ctx context.Context) error {
	a.api.Close()
	err := a.Registry.Shutdown(ctx)
	for _, s := range a.subs {
		s.Unsubscribe()
	}
	if err != nil {
		return errors.Join(errors.New("app: operations still in flight"), err)
	}
	return nil
}
