package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Event ingestion
		r.Post("/events/returns", h.IngestReturn)
		r.Post("/events/queries", h.IngestQuery)

		// Review queue
		r.Get("/reviews", h.ListReviews)
		r.Get("/reviews/stats", h.ReviewStats)
		r.Get("/reviews/{id}", h.GetReview)
		r.Post("/reviews/{id}/resolve", h.ResolveReview)

		// Audit trail
		r.Get("/audit", h.ListAudit)
		r.Get("/audit/replay", h.ReplayAudit)
	})
}
