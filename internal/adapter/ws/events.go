package ws

// Event type constants for WebSocket messages.
const (
	EventDeliveryCreated  = "delivery.created"
	EventDeliveryStatus   = "delivery.status"
	EventDeliveryArchived = "delivery.archived"
)

// DeliveryStatusEvent is broadcast on every committed status transition.
type DeliveryStatusEvent struct {
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
	AgentID    string `json:"agent_id,omitempty"`
}

// DeliveryArchivedEvent is broadcast when a delivered order lands in history.
type DeliveryArchivedEvent struct {
	DeliveryID string  `json:"delivery_id"`
	RecordID   string  `json:"record_id"`
	Earnings   float64 `json:"earnings"`
}
