// Package delivery defines the Delivery domain entity and its status state machine.
package delivery

import (
	"fmt"
	"time"

	"github.com/swiftdrop/deliveryhub/internal/domain"
)

// Status represents the current lifecycle state of a delivery.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAssigned  Status = "ASSIGNED"
	StatusPickedUp  Status = "PICKED_UP"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// ValidStatuses is the set of all defined delivery statuses.
var ValidStatuses = map[Status]bool{
	StatusPending:   true,
	StatusAssigned:  true,
	StatusPickedUp:  true,
	StatusDelivered: true,
	StatusCancelled: true,
}

// Coordinates is a geographic point attached to an address.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Address is a named location with a street address and coordinates.
type Address struct {
	Name        string      `json:"name"`
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
}

// Delivery represents a delivery task tracked through its lifecycle.
type Delivery struct {
	ID                    string    `json:"id"`
	Platform              string    `json:"platform"`
	OrderNumber           string    `json:"order_number"`
	PickupAddress         Address   `json:"pickup_address"`
	DropAddress           Address   `json:"drop_address"`
	Items                 []string  `json:"items"`
	Amount                float64   `json:"amount"`
	Earnings              float64   `json:"earnings"`
	EstimatedDeliveryTime time.Time `json:"estimated_delivery_time"`
	Distance              float64   `json:"distance"` // km
	Status                Status    `json:"status"`
	AgentID               string    `json:"agent_id,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Terminal reports whether the status permits no further transition.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// transitions is the set of legal status moves.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusAssigned:  true,
		StatusCancelled: true,
	},
	StatusAssigned: {
		StatusPickedUp:  true,
		StatusCancelled: true,
	},
	StatusPickedUp: {
		StatusDelivered: true,
	},
}

// CanTransition reports whether a delivery may move from one status to another.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// CreateRequest holds the fields needed to create a new delivery.
type CreateRequest struct {
	Platform              string    `json:"platform"`
	OrderNumber           string    `json:"order_number"`
	PickupAddress         Address   `json:"pickup_address"`
	DropAddress           Address   `json:"drop_address"`
	Items                 []string  `json:"items"`
	Amount                float64   `json:"amount"`
	Earnings              float64   `json:"earnings"`
	EstimatedDeliveryTime time.Time `json:"estimated_delivery_time"`
	Distance              float64   `json:"distance"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Platform == "" {
		return fmt.Errorf("platform is required: %w", domain.ErrValidation)
	}
	if r.OrderNumber == "" {
		return fmt.Errorf("order_number is required: %w", domain.ErrValidation)
	}
	if r.PickupAddress.Address == "" {
		return fmt.Errorf("pickup_address.address is required: %w", domain.ErrValidation)
	}
	if r.DropAddress.Address == "" {
		return fmt.Errorf("drop_address.address is required: %w", domain.ErrValidation)
	}
	if r.Amount < 0 {
		return fmt.Errorf("amount must be non-negative: %w", domain.ErrValidation)
	}
	if r.Earnings < 0 {
		return fmt.Errorf("earnings must be non-negative: %w", domain.ErrValidation)
	}
	if r.Distance < 0 {
		return fmt.Errorf("distance must be non-negative: %w", domain.ErrValidation)
	}
	return nil
}

// Filter narrows a delivery listing.
type Filter struct {
	AgentID string // deliveries assigned to this agent, plus unassigned PENDING offers
	Status  Status // optional exact status match
}
