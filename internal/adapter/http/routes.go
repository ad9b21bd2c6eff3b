package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Auth
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Get("/auth/me", h.Me)

		// Deliveries
		r.Get("/deliveries", h.ListDeliveries)
		r.Post("/deliveries", h.CreateDelivery)
		r.Get("/deliveries/{id}", h.GetDelivery)
		r.Patch("/deliveries/{id}/status", h.UpdateDeliveryStatus)
		r.Post("/deliveries/{id}/accept", h.AcceptDelivery)
		r.Post("/deliveries/{id}/reject", h.RejectDelivery)
		r.Post("/deliveries/{id}/pickup", h.PickupDelivery)
		r.Post("/deliveries/{id}/deliver", h.CompleteDelivery)

		// History
		r.Get("/history", h.ListHistory)
		r.Delete("/history", h.ClearHistory)
	})
}
