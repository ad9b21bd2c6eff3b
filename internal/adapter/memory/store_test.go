package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/swiftdrop/deliveryhub/internal/domain"
	"github.com/swiftdrop/deliveryhub/internal/domain/delivery"
	"github.com/swiftdrop/deliveryhub/internal/domain/history"
)

func TestDeliveryCRUD(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	d := &delivery.Delivery{
		ID:          "d1",
		Platform:    "Zomato",
		OrderNumber: "ORD-1",
		Status:      delivery.StatusPending,
	}
	if err := s.CreateDelivery(ctx, d); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDelivery(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Platform != "Zomato" {
		t.Errorf("expected platform Zomato, got %s", got.Platform)
	}

	if _, err := s.GetDelivery(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDeliveryStatusAgentSemantics(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	d := &delivery.Delivery{ID: "d1", Status: delivery.StatusPending}
	if err := s.CreateDelivery(ctx, d); err != nil {
		t.Fatal(err)
	}

	agentID := "a1"
	if err := s.UpdateDeliveryStatus(ctx, "d1", delivery.StatusAssigned, &agentID); err != nil {
		t.Fatal(err)
	}
	got, _ := s.GetDelivery(ctx, "d1")
	if got.AgentID != "a1" || got.Status != delivery.StatusAssigned {
		t.Errorf("expected assigned to a1, got %s/%s", got.Status, got.AgentID)
	}

	// nil pointer leaves the assignee alone
	if err := s.UpdateDeliveryStatus(ctx, "d1", delivery.StatusPickedUp, nil); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetDelivery(ctx, "d1")
	if got.AgentID != "a1" {
		t.Errorf("expected assignee unchanged, got %q", got.AgentID)
	}

	// empty string clears it
	clear := ""
	if err := s.UpdateDeliveryStatus(ctx, "d1", delivery.StatusCancelled, &clear); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetDelivery(ctx, "d1")
	if got.AgentID != "" {
		t.Errorf("expected assignee cleared, got %q", got.AgentID)
	}

	if err := s.UpdateDeliveryStatus(ctx, "missing", delivery.StatusAssigned, nil); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListDeliveriesVisibility(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	seed := []delivery.Delivery{
		{ID: "mine", Status: delivery.StatusAssigned, AgentID: "a1"},
		{ID: "open", Status: delivery.StatusPending},
		{ID: "theirs", Status: delivery.StatusAssigned, AgentID: "a2"},
	}
	for i := range seed {
		if err := s.CreateDelivery(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	out, err := s.ListDeliveries(ctx, delivery.Filter{AgentID: "a1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 deliveries (own + open offer), got %d", len(out))
	}
	for _, d := range out {
		if d.ID == "theirs" {
			t.Error("another agent's delivery should not be visible")
		}
	}
}

func TestUpsertHistoryFirstSnapshotWins(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	r1 := &history.Record{ID: "h1", DeliveryID: "d1", Earnings: 50, ArchivedAt: time.Now()}
	r2 := &history.Record{ID: "h2", DeliveryID: "d1", Earnings: 99, ArchivedAt: time.Now()}

	if err := s.UpsertHistoryRecord(ctx, r1); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertHistoryRecord(ctx, r2); err != nil {
		t.Fatal(err)
	}

	out, err := s.ListHistory(ctx, history.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].ID != "h1" || out[0].Earnings != 50 {
		t.Errorf("expected first snapshot kept, got %+v", out[0])
	}
}

func TestClearHistory(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_ = s.UpsertHistoryRecord(ctx, &history.Record{ID: "h1", DeliveryID: "d1"})
	if err := s.ClearHistory(ctx); err != nil {
		t.Fatal(err)
	}
	out, _ := s.ListHistory(ctx, history.Filter{})
	if len(out) != 0 {
		t.Errorf("expected empty history after clear, got %d records", len(out))
	}
}
