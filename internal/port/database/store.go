// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/swiftdrop/deliveryhub/internal/domain/agent"
	"github.com/swiftdrop/deliveryhub/internal/domain/delivery"
	"github.com/swiftdrop/deliveryhub/internal/domain/history"
)

// Store is the port interface for database operations.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, a *agent.Agent) error
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	GetAgentByEmail(ctx context.Context, email string) (*agent.Agent, error)
	CreateLoginLog(ctx context.Context, l *agent.LoginLog) error

	// Deliveries
	CreateDelivery(ctx context.Context, d *delivery.Delivery) error
	GetDelivery(ctx context.Context, id string) (*delivery.Delivery, error)
	ListDeliveries(ctx context.Context, f delivery.Filter) ([]delivery.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, id string, status delivery.Status, agentID *string) error

	// History
	UpsertHistoryRecord(ctx context.Context, r *history.Record) error
	ListHistory(ctx context.Context, f history.Filter) ([]history.Record, error)
	ClearHistory(ctx context.Context) error
}
