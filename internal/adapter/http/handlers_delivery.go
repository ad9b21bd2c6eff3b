package http

import (
	"net/http"

	"github.com/swiftdrop/deliveryhub/internal/domain/agent"
	"github.com/swiftdrop/deliveryhub/internal/domain/delivery"
	"github.com/swiftdrop/deliveryhub/internal/middleware"
)

// requireAgent extracts the authenticated agent or writes a 401.
func requireAgent(w http.ResponseWriter, r *http.Request) (*agent.Agent, bool) {
	a := middleware.AgentFromContext(r.Context())
	if a == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return nil, false
	}
	return a, true
}

// ListDeliveries returns the agent's deliveries plus unassigned open offers.
// An optional ?status= query narrows the listing to one status.
func (h *Handlers) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	a, ok := requireAgent(w, r)
	if !ok {
		return
	}

	f := delivery.Filter{AgentID: a.ID}
	if status := r.URL.Query().Get("status"); status != "" {
		s := delivery.Status(status)
		if !delivery.ValidStatuses[s] {
			writeError(w, http.StatusBadRequest, "unknown status "+status)
			return
		}
		f.Status = s
	}

	out, err := h.deliveries.List(r.Context(), f)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if out == nil {
		out = []delivery.Delivery{}
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateDelivery registers a new delivery in PENDING state.
func (h *Handlers) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAgent(w, r); !ok {
		return
	}

	req, ok := readJSON[delivery.CreateRequest](w, r)
	if !ok {
		return
	}

	d, err := h.deliveries.Create(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "delivery not found")
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// GetDelivery returns a single delivery by ID.
func (h *Handlers) GetDelivery(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireAgent(w, r); !ok {
		return
	}

	d, err := h.deliveries.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "delivery not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// AcceptDelivery assigns a pending delivery to the authenticated agent.
func (h *Handlers) AcceptDelivery(w http.ResponseWriter, r *http.Request) {
	a, ok := requireAgent(w, r)
	if !ok {
		return
	}

	d, err := h.deliveries.Accept(r.Context(), urlParam(r, "id"), a.ID)
	if err != nil {
		writeDomainError(w, err, "delivery not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// RejectDelivery cancels a delivery and clears its assignee.
func (h *Handlers) RejectDelivery(w http.ResponseWriter, r *http.Request) {
	a, ok := requireAgent(w, r)
	if !ok {
		return
	}

	d, err := h.deliveries.Reject(r.Context(), urlParam(r, "id"), a.ID)
	if err != nil {
		writeDomainError(w, err, "delivery not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// PickupDelivery marks an assigned delivery as collected.
func (h *Handlers) PickupDelivery(w http.ResponseWriter, r *http.Request) {
	a, ok := requireAgent(w, r)
	if !ok {
		return
	}

	d, err := h.deliveries.MarkPickedUp(r.Context(), urlParam(r, "id"), a.ID)
	if err != nil {
		writeDomainError(w, err, "delivery not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CompleteDelivery marks a picked-up delivery as delivered and archives it.
func (h *Handlers) CompleteDelivery(w http.ResponseWriter, r *http.Request) {
	a, ok := requireAgent(w, r)
	if !ok {
		return
	}

	d, err := h.deliveries.MarkDelivered(r.Context(), urlParam(r, "id"), a.ID)
	if err != nil {
		writeDomainError(w, err, "delivery not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type updateStatusRequest struct {
	Status delivery.Status `json:"status"`
}

// UpdateDeliveryStatus moves a delivery to the requested status. The target
// is routed through the same lifecycle rules as the dedicated endpoints, so
// illegal jumps are rejected.
func (h *Handlers) UpdateDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := requireAgent(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[updateStatusRequest](w, r)
	if !ok {
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	d, err := h.deliveries.UpdateStatus(r.Context(), urlParam(r, "id"), req.Status, a.ID)
	if err != nil {
		writeDomainError(w, err, "delivery not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
