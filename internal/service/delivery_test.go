package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/swiftdrop/deliveryhub/internal/adapter/memory"
	"github.com/swiftdrop/deliveryhub/internal/domain"
	"github.com/swiftdrop/deliveryhub/internal/domain/delivery"
	"github.com/swiftdrop/deliveryhub/internal/domain/history"
	"github.com/swiftdrop/deliveryhub/internal/port/messagequeue"
)

// fakeQueue records published messages per subject.
type fakeQueue struct {
	mu   sync.Mutex
	msgs map[string]int
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{msgs: make(map[string]int)}
}

func (q *fakeQueue) Publish(_ context.Context, subject string, _ []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs[subject]++
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *fakeQueue) Close() error { return nil }

func (q *fakeQueue) count(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.msgs[subject]
}

// fakeCaster records broadcast event types.
type fakeCaster struct {
	mu     sync.Mutex
	events []string
}

func (c *fakeCaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, eventType)
}

// fakeCache is a map-backed cache for deterministic tests.
type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type deliveryFixture struct {
	svc     *DeliveryService
	histSvc *HistoryService
	store   *memory.Store
	queue   *fakeQueue
	caster  *fakeCaster
}

func newDeliveryFixture(t *testing.T) *deliveryFixture {
	t.Helper()
	store := memory.NewStore()
	histSvc := NewHistoryService(store)
	queue := newFakeQueue()
	caster := &fakeCaster{}
	svc := NewDeliveryService(store, nil, queue, caster, histSvc, nil, time.Second)
	return &deliveryFixture{svc: svc, histSvc: histSvc, store: store, queue: queue, caster: caster}
}

func validCreateRequest() *delivery.CreateRequest {
	return &delivery.CreateRequest{
		Platform:    "Zomato",
		OrderNumber: "ORD-001",
		PickupAddress: delivery.Address{
			Name:    "Pizza Palace",
			Address: "12 Main St",
		},
		DropAddress: delivery.Address{
			Name:    "Asha Rao",
			Address: "48 Lake View Rd",
		},
		Items:    []string{"Margherita", "Garlic Bread"},
		Amount:   450,
		Earnings: 55,
		Distance: 3.2,
	}
}

func TestCreateDelivery(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatal(err)
	}
	if d.ID == "" {
		t.Error("expected generated ID")
	}
	if d.Status != delivery.StatusPending {
		t.Errorf("expected PENDING, got %s", d.Status)
	}
	if f.queue.count(messagequeue.SubjectDeliveryCreated) != 1 {
		t.Error("expected created event on queue")
	}
}

func TestCreateDeliveryValidation(t *testing.T) {
	f := newDeliveryFixture(t)

	req := validCreateRequest()
	req.Platform = ""
	if _, err := f.svc.Create(context.Background(), req); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestCreateDeliveryNilItems(t *testing.T) {
	f := newDeliveryFixture(t)

	req := validCreateRequest()
	req.Items = nil
	d, err := f.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if d.Items == nil {
		t.Error("expected items to default to empty slice")
	}
}

func TestLifecycleEndToEnd(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	d, err := f.svc.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatal(err)
	}

	d, err = f.svc.Accept(ctx, d.ID, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != delivery.StatusAssigned || d.AgentID != "agent-1" {
		t.Fatalf("expected ASSIGNED/agent-1, got %s/%s", d.Status, d.AgentID)
	}

	d, err = f.svc.MarkPickedUp(ctx, d.ID, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != delivery.StatusPickedUp {
		t.Fatalf("expected PICKED_UP, got %s", d.Status)
	}

	d, err = f.svc.MarkDelivered(ctx, d.ID, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != delivery.StatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", d.Status)
	}

	records, err := f.histSvc.List(ctx, history.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 history record, got %d", len(records))
	}
	rec := records[0]
	if rec.DeliveryID != d.ID {
		t.Errorf("record delivery_id = %s, want %s", rec.DeliveryID, d.ID)
	}
	if rec.Customer != "Asha Rao" || rec.PickupLocation != "Pizza Palace" {
		t.Errorf("unexpected snapshot fields: %+v", rec)
	}
	if rec.OrderNumber != "ORD-001" || rec.Amount != 450 || rec.Earnings != 55 {
		t.Errorf("snapshot did not preserve order fields: %+v", rec)
	}
	if rec.AgentID != "agent-1" {
		t.Errorf("record agent_id = %s, want agent-1", rec.AgentID)
	}

	if f.queue.count(messagequeue.SubjectDeliveryDelivered) != 1 {
		t.Error("expected delivered event on queue")
	}
	if got := f.queue.count(messagequeue.SubjectDeliveryStatus); got != 3 {
		t.Errorf("expected 3 status events, got %d", got)
	}
}

func TestAcceptNonPendingFailsUnchanged(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	d, _ := f.svc.Create(ctx, validCreateRequest())
	if _, err := f.svc.Accept(ctx, d.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.MarkPickedUp(ctx, d.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Accept(ctx, d.ID, "agent-1")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	got, _ := f.svc.Get(ctx, d.ID)
	if got.Status != delivery.StatusPickedUp {
		t.Errorf("delivery should be unchanged, got status %s", got.Status)
	}
}

func TestRejectClearsAssigneeAndSkipsHistory(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	d, _ := f.svc.Create(ctx, validCreateRequest())
	if _, err := f.svc.Accept(ctx, d.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}

	d, err := f.svc.Reject(ctx, d.ID, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != delivery.StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", d.Status)
	}
	if d.AgentID != "" {
		t.Errorf("expected assignee cleared, got %q", d.AgentID)
	}

	records, _ := f.histSvc.List(ctx, history.Filter{})
	if len(records) != 0 {
		t.Errorf("cancelled delivery must not be archived, got %d records", len(records))
	}
}

func TestMarkDeliveredTwice(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	d, _ := f.svc.Create(ctx, validCreateRequest())
	_, _ = f.svc.Accept(ctx, d.ID, "agent-1")
	_, _ = f.svc.MarkPickedUp(ctx, d.ID, "agent-1")
	if _, err := f.svc.MarkDelivered(ctx, d.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.MarkDelivered(ctx, d.ID, "agent-1")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on second deliver, got %v", err)
	}

	records, _ := f.histSvc.List(ctx, history.Filter{})
	if len(records) != 1 {
		t.Errorf("expected exactly 1 history record, got %d", len(records))
	}
}

func TestOwnerGuard(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	d, _ := f.svc.Create(ctx, validCreateRequest())
	if _, err := f.svc.Accept(ctx, d.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.MarkPickedUp(ctx, d.ID, "agent-2"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for foreign pickup, got %v", err)
	}
	if _, err := f.svc.Reject(ctx, d.ID, "agent-2"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for foreign reject, got %v", err)
	}
	if _, err := f.svc.Accept(ctx, d.ID, "agent-2"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected ErrConflict for accept of assigned delivery, got %v", err)
	}
}

func TestUpdateStatusRoutesThroughLifecycle(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	d, _ := f.svc.Create(ctx, validCreateRequest())

	// Skipping ASSIGNED is rejected.
	if _, err := f.svc.UpdateStatus(ctx, d.ID, delivery.StatusDelivered, "agent-1"); !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected rejection for skipping states, got %v", err)
	}

	got, err := f.svc.UpdateStatus(ctx, d.ID, delivery.StatusAssigned, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != delivery.StatusAssigned || got.AgentID != "agent-1" {
		t.Errorf("expected ASSIGNED/agent-1, got %s/%s", got.Status, got.AgentID)
	}

	if _, err := f.svc.UpdateStatus(ctx, d.ID, delivery.StatusPending, "agent-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for move back to PENDING, got %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, d.ID, "FLYING", "agent-1"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for unknown status, got %v", err)
	}
}

func TestListCacheReadThrough(t *testing.T) {
	store := memory.NewStore()
	cache := newFakeCache()
	svc := NewDeliveryService(store, cache, nil, nil, NewHistoryService(store), nil, time.Minute)
	ctx := context.Background()

	d, err := svc.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatal(err)
	}

	out, err := svc.List(ctx, delivery.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(out))
	}
	if _, ok := cache.data[svc.listCacheKey("")]; !ok {
		t.Error("expected list cached after miss")
	}
	staleKey := svc.listCacheKey("")

	// A mutation bumps the generation so the cached list is never read again.
	if _, err := svc.Accept(ctx, d.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}
	if svc.listCacheKey("") == staleKey {
		t.Error("expected cache key to change after transition")
	}
	out, err = svc.List(ctx, delivery.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Status != delivery.StatusAssigned {
		t.Errorf("expected fresh ASSIGNED listing after transition, got %+v", out)
	}
}

func TestListCacheFreshAcrossAgents(t *testing.T) {
	store := memory.NewStore()
	cache := newFakeCache()
	svc := NewDeliveryService(store, cache, nil, nil, NewHistoryService(store), nil, time.Minute)
	ctx := context.Background()

	d, err := svc.Create(ctx, validCreateRequest())
	if err != nil {
		t.Fatal(err)
	}

	// Both agents warm their own cached listings with the open offer.
	for _, id := range []string{"agent-1", "agent-2"} {
		out, err := svc.List(ctx, delivery.Filter{AgentID: id})
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != 1 {
			t.Fatalf("expected %s to see the open offer, got %d", id, len(out))
		}
	}

	// agent-1 claims the offer; agent-2 must stop seeing it immediately.
	if _, err := svc.Accept(ctx, d.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}
	out, err := svc.List(ctx, delivery.Filter{AgentID: "agent-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("agent-2 still sees the claimed offer: %+v", out)
	}

	// A newly created offer is visible to agent-2 without waiting for TTL.
	req := validCreateRequest()
	req.OrderNumber = "ORD-002"
	if _, err := svc.Create(ctx, req); err != nil {
		t.Fatal(err)
	}
	out, err = svc.List(ctx, delivery.Filter{AgentID: "agent-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].OrderNumber != "ORD-002" {
		t.Fatalf("agent-2 should see the new offer immediately, got %+v", out)
	}
}

func TestListVisibility(t *testing.T) {
	f := newDeliveryFixture(t)
	ctx := context.Background()

	a, _ := f.svc.Create(ctx, validCreateRequest())
	req := validCreateRequest()
	req.OrderNumber = "ORD-002"
	b, _ := f.svc.Create(ctx, req)
	if _, err := f.svc.Accept(ctx, b.ID, "agent-2"); err != nil {
		t.Fatal(err)
	}

	out, err := f.svc.List(ctx, delivery.Filter{AgentID: "agent-1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != a.ID {
		t.Errorf("agent-1 should only see the open offer, got %d deliveries", len(out))
	}
}
