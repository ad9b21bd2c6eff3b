package http

import (
	"net/http"

	"github.com/swiftdrop/deliveryhub/internal/config"
	"github.com/swiftdrop/deliveryhub/internal/service"
)

// Handlers bundles the services the HTTP layer exposes.
type Handlers struct {
	auth       *service.AuthService
	deliveries *service.DeliveryService
	history    *service.HistoryService
	uploads    config.Uploads
}

// NewHandlers creates the handler set.
func NewHandlers(auth *service.AuthService, deliveries *service.DeliveryService,
	history *service.HistoryService, uploads config.Uploads) *Handlers {
	return &Handlers{
		auth:       auth,
		deliveries: deliveries,
		history:    history,
		uploads:    uploads,
	}
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
