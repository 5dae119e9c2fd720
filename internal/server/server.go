// Package server composes the proxy's single HTTP handler: CORS, the route
// set of the one selected frontend listener, and the ambient /health and /metrics
// endpoints, following the chi-plus-cors wiring the rest of the fleet uses.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaymcp/relaymcp/internal/config"
	"github.com/relaymcp/relaymcp/internal/session"
	"github.com/relaymcp/relaymcp/internal/state"
)

// Listener is the subset of frontend.Listener the server needs to mount.
type Listener interface {
	Routes() http.Handler
	Shutdown()
}

// New constructs the HTTP handler for the proxy. If metricsSameAddr is
// true, /metrics is served on this same handler; otherwise the caller runs
// a separate metrics listener (see cmd/relaymcp). listener is the single
// frontend listener selected by cfg.InputMode; the proxy serves exactly
// one downstream transport at a time, so there is only ever one to mount.
func New(cfg *config.Config, reg prometheus.Gatherer, table *session.Table, store state.Store, metricsSameAddr bool, listener Listener) http.Handler {
	r := chi.NewRouter()

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	r.Get("/health", healthHandler(cfg, table, store))

	if metricsSameAddr {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	if listener != nil {
		r.Mount("/", listener.Routes())
	}

	return r
}

func healthHandler(cfg *config.Config, table *session.Table, store state.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if store != nil {
			status = store.Load().Status
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     status,
			"inputMode":  string(cfg.InputMode),
			"outputMode": string(cfg.OutputMode),
			"sessions":   table.Len(),
		})
	}
}

// MetricsHandler builds the standalone /metrics handler used when
// --metrics-addr names a different listen address than --port.
func MetricsHandler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
