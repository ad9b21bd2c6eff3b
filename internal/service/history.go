package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/swiftdrop/deliveryhub/internal/domain/delivery"
	"github.com/swiftdrop/deliveryhub/internal/domain/history"
	"github.com/swiftdrop/deliveryhub/internal/port/database"
)

// HistoryService manages the archive of completed deliveries.
type HistoryService struct {
	store database.Store
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(store database.Store) *HistoryService {
	return &HistoryService{store: store}
}

// Archive snapshots a delivered order into the history archive. Archiving
// the same delivery twice keeps the original record.
func (s *HistoryService) Archive(ctx context.Context, d *delivery.Delivery) (*history.Record, error) {
	now := time.Now()
	r := &history.Record{
		ID:             uuid.NewString(),
		DeliveryID:     d.ID,
		AgentID:        d.AgentID,
		Platform:       d.Platform,
		OrderNumber:    d.OrderNumber,
		Customer:       d.DropAddress.Name,
		Amount:         d.Amount,
		Earnings:       d.Earnings,
		PickupLocation: d.PickupAddress.Name,
		Location:       d.DropAddress.Address,
		Status:         string(delivery.StatusDelivered),
		Date:           now.Format("2006-01-02"),
		Time:           now.Format("15:04"),
		ArchivedAt:     now.UTC(),
	}

	if err := s.store.UpsertHistoryRecord(ctx, r); err != nil {
		return nil, fmt.Errorf("archive delivery %s: %w", d.ID, err)
	}
	return r, nil
}

// List returns archived records matching the filter, newest first.
func (s *HistoryService) List(ctx context.Context, f history.Filter) ([]history.Record, error) {
	return s.store.ListHistory(ctx, f)
}

// Clear removes all archived records.
func (s *HistoryService) Clear(ctx context.Context) error {
	return s.store.ClearHistory(ctx)
}
