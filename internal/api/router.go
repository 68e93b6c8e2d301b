// Package api exposes the scheduling store and suggestion engine over HTTP
// and MCP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kalambet/cadence/internal/identity"
	"github.com/kalambet/cadence/internal/storage"
	"github.com/kalambet/cadence/internal/suggest"
)

// Deps holds the collaborators of the HTTP API.
type Deps struct {
	Store     *storage.Store
	Engine    *suggest.Engine
	Timezones *identity.Resolver
	Token     string
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// NewHandler returns the cadence HTTP API. /health and /metrics are open;
// everything else requires the bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth(deps))
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/import", handleImport(deps))
		r.Get("/jobs/{jobID}", handleGetJob(deps))

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/sessions", handleListSessions(deps))
			r.Post("/sessions", handleCreateSession(deps))
			r.Get("/sessions/{sessionID}", handleGetSession(deps))
			r.Patch("/sessions/{sessionID}", handleUpdateSession(deps))
			r.Delete("/sessions/{sessionID}", handleDeleteSession(deps))
			r.Post("/sessions/{sessionID}/complete", handleCompleteSession(deps))

			r.Get("/availability", handleGetAvailability(deps))
			r.Put("/availability", handlePutAvailability(deps))
			r.Get("/timezone", handleGetTimezone(deps))
			r.Put("/timezone", handlePutTimezone(deps))

			r.Get("/suggestions", handleSuggestions(deps))
			r.Get("/patterns", handlePatterns(deps))
			r.Post("/conflicts", handleConflicts(deps))
			r.Post("/conflicts/batch", handleConflictsBatch(deps))
		})
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Ping(); err != nil {
			httpError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
