package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/IntentMarket/internal/middleware"
)

// MountRoutes registers /health and all /api/v1 routes on r. adminToken
// supplies the bearer token guarding the manual ingest and sweep triggers.
func MountRoutes(r chi.Router, h *Handlers, adminToken func() string) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		// Agents
		r.Post("/agents", h.RegisterAgent)
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{key}", h.GetAgent)

		// Intents
		r.Post("/intents", h.CreateIntent)
		r.Get("/intents", h.ListIntents)
		r.Get("/intents/{id}", h.GetIntent)
		r.Patch("/intents/{id}/status", h.UpdateIntentStatus)
		r.Get("/intents/{id}/negotiation", h.NegotiationLog)

		// Matching (nested under intents)
		r.Group(func(r chi.Router) {
			if h.MatchLimit != nil {
				r.Use(h.MatchLimit)
			}
			r.Post("/intents/{id}/matches", h.FindMatches)
			r.Post("/intents/{id}/cross-matches", h.CrossMatch)
		})
		r.Get("/intents/{id}/matches", h.ListIntentMatches)

		// Matches (direct access)
		r.Get("/matches", h.ListMatches)
		r.Patch("/matches/{id}/status", h.UpdateMatchStatus)

		r.Get("/stats", h.GetStats)

		// Operator triggers
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminToken(adminToken))
			r.Post("/ingest/run", h.RunIngest)
			r.Post("/sweep/run", h.RunSweep)
		})
	})
}
