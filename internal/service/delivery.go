package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/swiftdrop/deliveryhub/internal/adapter/otel"
	"github.com/swiftdrop/deliveryhub/internal/adapter/ws"
	"github.com/swiftdrop/deliveryhub/internal/domain"
	"github.com/swiftdrop/deliveryhub/internal/domain/delivery"
	"github.com/swiftdrop/deliveryhub/internal/port/broadcast"
	"github.com/swiftdrop/deliveryhub/internal/port/cache"
	"github.com/swiftdrop/deliveryhub/internal/port/database"
	"github.com/swiftdrop/deliveryhub/internal/port/messagequeue"
)

// DeliveryService owns the delivery lifecycle. Every status change goes
// through the state machine; an illegal move leaves the delivery untouched.
type DeliveryService struct {
	store   database.Store
	cache   cache.Cache
	queue   messagequeue.Queue
	caster  broadcast.Broadcaster
	history *HistoryService
	metrics *otel.Metrics
	listTTL time.Duration
	group   singleflight.Group
	listGen atomic.Uint64
}

// NewDeliveryService creates a new DeliveryService. cache, queue, caster,
// and metrics may be nil; the service degrades to direct store access.
func NewDeliveryService(store database.Store, c cache.Cache, queue messagequeue.Queue,
	caster broadcast.Broadcaster, history *HistoryService, metrics *otel.Metrics, listTTL time.Duration) *DeliveryService {
	return &DeliveryService{
		store:   store,
		cache:   c,
		queue:   queue,
		caster:  caster,
		history: history,
		metrics: metrics,
		listTTL: listTTL,
	}
}

// statusEvent is the queue payload for a committed status transition.
type statusEvent struct {
	DeliveryID string `json:"delivery_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	AgentID    string `json:"agent_id,omitempty"`
}

// Create validates and stores a new delivery in PENDING state.
func (s *DeliveryService) Create(ctx context.Context, req *delivery.CreateRequest) (*delivery.Delivery, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	d := &delivery.Delivery{
		ID:                    uuid.NewString(),
		Platform:              req.Platform,
		OrderNumber:           req.OrderNumber,
		PickupAddress:         req.PickupAddress,
		DropAddress:           req.DropAddress,
		Items:                 req.Items,
		Amount:                req.Amount,
		Earnings:              req.Earnings,
		EstimatedDeliveryTime: req.EstimatedDeliveryTime,
		Distance:              req.Distance,
		Status:                delivery.StatusPending,
	}
	if d.Items == nil {
		d.Items = []string{}
	}

	if err := s.store.CreateDelivery(ctx, d); err != nil {
		return nil, err
	}

	s.invalidateLists()
	s.publish(ctx, messagequeue.SubjectDeliveryCreated, d)
	if s.caster != nil {
		s.caster.BroadcastEvent(ctx, ws.EventDeliveryCreated, d)
	}
	if s.metrics != nil {
		s.metrics.DeliveriesCreated.Add(ctx, 1)
	}
	return d, nil
}

// Get returns a delivery by ID.
func (s *DeliveryService) Get(ctx context.Context, id string) (*delivery.Delivery, error) {
	return s.store.GetDelivery(ctx, id)
}

// List returns deliveries matching the filter, newest first. Unfiltered
// per-agent listings are served from the cache with singleflight protecting
// the store on concurrent misses.
func (s *DeliveryService) List(ctx context.Context, f delivery.Filter) ([]delivery.Delivery, error) {
	if s.cache == nil || f.Status != "" {
		return s.store.ListDeliveries(ctx, f)
	}

	key := s.listCacheKey(f.AgentID)
	if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var out []delivery.Delivery
		if err := json.Unmarshal(data, &out); err == nil {
			return out, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		out, err := s.store.ListDeliveries(ctx, f)
		if err != nil {
			return nil, err
		}
		if data, err := json.Marshal(out); err == nil {
			_ = s.cache.Set(ctx, key, data, s.listTTL)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]delivery.Delivery), nil
}

// Accept assigns a pending delivery to the agent.
func (s *DeliveryService) Accept(ctx context.Context, id, agentID string) (*delivery.Delivery, error) {
	return s.transition(ctx, id, delivery.StatusAssigned, &agentID, func(d *delivery.Delivery) error {
		if d.AgentID != "" && d.AgentID != agentID {
			return fmt.Errorf("delivery %s is assigned to another agent: %w", id, domain.ErrConflict)
		}
		return nil
	})
}

// Reject cancels a pending or assigned delivery and clears the assignee.
func (s *DeliveryService) Reject(ctx context.Context, id, agentID string) (*delivery.Delivery, error) {
	cleared := ""
	return s.transition(ctx, id, delivery.StatusCancelled, &cleared, func(d *delivery.Delivery) error {
		if d.AgentID != "" && d.AgentID != agentID {
			return fmt.Errorf("delivery %s is assigned to another agent: %w", id, domain.ErrConflict)
		}
		return nil
	})
}

// MarkPickedUp records that the agent collected the order.
func (s *DeliveryService) MarkPickedUp(ctx context.Context, id, agentID string) (*delivery.Delivery, error) {
	return s.transition(ctx, id, delivery.StatusPickedUp, nil, s.ownerGuard(id, agentID))
}

// MarkDelivered completes a delivery and archives it into history. The
// archive write happens synchronously so the record is queryable as soon as
// the call returns.
func (s *DeliveryService) MarkDelivered(ctx context.Context, id, agentID string) (*delivery.Delivery, error) {
	d, err := s.transition(ctx, id, delivery.StatusDelivered, nil, s.ownerGuard(id, agentID))
	if err != nil {
		return nil, err
	}

	actx, span := otel.StartArchiveSpan(ctx, d.ID)
	rec, err := s.history.Archive(actx, d)
	span.End()
	if err != nil {
		// The delivery is already DELIVERED; surfacing the archive failure
		// would leave the caller unable to retry the transition.
		slog.Error("failed to archive delivered order", "delivery_id", d.ID, "error", err)
	} else {
		if s.caster != nil {
			s.caster.BroadcastEvent(ctx, ws.EventDeliveryArchived, ws.DeliveryArchivedEvent{
				DeliveryID: d.ID,
				RecordID:   rec.ID,
				Earnings:   d.Earnings,
			})
		}
		if s.metrics != nil {
			s.metrics.DeliveriesArchived.Add(ctx, 1)
			s.metrics.EarningsArchived.Record(ctx, d.Earnings)
			s.metrics.DeliveryDuration.Record(ctx, time.Since(d.CreatedAt).Seconds())
		}
	}

	s.publish(ctx, messagequeue.SubjectDeliveryDelivered, d)
	return d, nil
}

// UpdateStatus routes a raw target status through the same lifecycle
// operations the dedicated endpoints use.
func (s *DeliveryService) UpdateStatus(ctx context.Context, id string, to delivery.Status, agentID string) (*delivery.Delivery, error) {
	if !delivery.ValidStatuses[to] {
		return nil, fmt.Errorf("unknown status %q: %w", to, domain.ErrValidation)
	}

	switch to {
	case delivery.StatusAssigned:
		return s.Accept(ctx, id, agentID)
	case delivery.StatusCancelled:
		return s.Reject(ctx, id, agentID)
	case delivery.StatusPickedUp:
		return s.MarkPickedUp(ctx, id, agentID)
	case delivery.StatusDelivered:
		return s.MarkDelivered(ctx, id, agentID)
	default:
		return nil, fmt.Errorf("cannot transition delivery %s to %s: %w", id, to, domain.ErrInvalidTransition)
	}
}

// ownerGuard rejects lifecycle operations from agents that do not own the
// delivery.
func (s *DeliveryService) ownerGuard(id, agentID string) func(*delivery.Delivery) error {
	return func(d *delivery.Delivery) error {
		if d.AgentID != agentID {
			return fmt.Errorf("delivery %s is assigned to another agent: %w", id, domain.ErrConflict)
		}
		return nil
	}
}

// transition loads the delivery, checks the guard and the state machine,
// and persists the change. agentID follows the store semantics: nil keeps
// the assignee, empty string clears it, any other value sets it.
func (s *DeliveryService) transition(ctx context.Context, id string, to delivery.Status, agentID *string, guard func(*delivery.Delivery) error) (*delivery.Delivery, error) {
	d, err := s.store.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}

	if guard != nil {
		if err := guard(d); err != nil {
			return nil, err
		}
	}

	if !delivery.CanTransition(d.Status, to) {
		if s.metrics != nil {
			s.metrics.TransitionsRejected.Add(ctx, 1)
		}
		return nil, fmt.Errorf("cannot transition delivery %s from %s to %s: %w", id, d.Status, to, domain.ErrInvalidTransition)
	}

	tctx, span := otel.StartTransitionSpan(ctx, id, string(d.Status), string(to))
	defer span.End()

	if err := s.store.UpdateDeliveryStatus(tctx, id, to, agentID); err != nil {
		return nil, err
	}

	from := d.Status
	d.Status = to
	if agentID != nil {
		d.AgentID = *agentID
	}
	d.UpdatedAt = time.Now().UTC()

	s.invalidateLists()
	s.publish(ctx, messagequeue.SubjectDeliveryStatus, statusEvent{
		DeliveryID: d.ID,
		From:       string(from),
		To:         string(to),
		AgentID:    d.AgentID,
	})
	if s.caster != nil {
		s.caster.BroadcastEvent(ctx, ws.EventDeliveryStatus, ws.DeliveryStatusEvent{
			DeliveryID: d.ID,
			Status:     string(to),
			AgentID:    d.AgentID,
		})
	}
	if s.metrics != nil {
		s.metrics.StatusTransitions.Add(ctx, 1)
	}
	return d, nil
}

// publish marshals and publishes a queue message. Queue failures are logged
// and swallowed: the state change is already committed.
func (s *DeliveryService) publish(ctx context.Context, subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal queue payload", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("failed to publish queue message", "subject", subject, "error", err)
	}
}

// listCacheKey includes a generation counter so that bumping the counter
// orphans every cached list at once. An agent claiming an open offer must
// drop the cached listings of every other agent too, so per-key deletion
// cannot work; stale generations fall out via TTL and eviction.
func (s *DeliveryService) listCacheKey(agentID string) string {
	gen := s.listGen.Load()
	if agentID == "" {
		return fmt.Sprintf("deliveries:%d:all", gen)
	}
	return fmt.Sprintf("deliveries:%d:agent:%s", gen, agentID)
}

func (s *DeliveryService) invalidateLists() {
	s.listGen.Add(1)
}
