// Package memory provides an in-memory database.Store, used in tests and
// for running the server without PostgreSQL.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/swiftdrop/deliveryhub/internal/domain"
	"github.com/swiftdrop/deliveryhub/internal/domain/agent"
	"github.com/swiftdrop/deliveryhub/internal/domain/delivery"
	"github.com/swiftdrop/deliveryhub/internal/domain/history"
)

// Store keeps all data in maps guarded by a single RWMutex.
type Store struct {
	mu         sync.RWMutex
	agents     map[string]agent.Agent
	loginLogs  []agent.LoginLog
	deliveries map[string]delivery.Delivery
	records    map[string]history.Record // keyed by delivery ID
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		agents:     make(map[string]agent.Agent),
		deliveries: make(map[string]delivery.Delivery),
		records:    make(map[string]history.Record),
	}
}

// --- Agents ---

func (s *Store) CreateAgent(_ context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.agents {
		if existing.Email == a.Email {
			return fmt.Errorf("create agent: email %s already registered: %w", a.Email, domain.ErrConflict)
		}
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.agents[a.ID] = *a
	return nil
}

func (s *Store) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("get agent %s: %w", id, domain.ErrNotFound)
	}
	return &a, nil
}

func (s *Store) GetAgentByEmail(_ context.Context, email string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.agents {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("get agent by email %s: %w", email, domain.ErrNotFound)
}

func (s *Store) CreateLoginLog(_ context.Context, l *agent.LoginLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loginLogs = append(s.loginLogs, *l)
	return nil
}

// LoginLogs returns a copy of the recorded login log entries.
func (s *Store) LoginLogs() []agent.LoginLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]agent.LoginLog, len(s.loginLogs))
	copy(out, s.loginLogs)
	return out
}

// --- Deliveries ---

func (s *Store) CreateDelivery(_ context.Context, d *delivery.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	s.deliveries[d.ID] = *d
	return nil
}

func (s *Store) GetDelivery(_ context.Context, id string) (*delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.deliveries[id]
	if !ok {
		return nil, fmt.Errorf("get delivery %s: %w", id, domain.ErrNotFound)
	}
	return &d, nil
}

func (s *Store) ListDeliveries(_ context.Context, f delivery.Filter) ([]delivery.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []delivery.Delivery
	for _, d := range s.deliveries {
		if f.AgentID != "" {
			// Own deliveries plus unassigned offers still up for grabs.
			if d.AgentID != f.AgentID && !(d.AgentID == "" && d.Status == delivery.StatusPending) {
				continue
			}
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateDeliveryStatus mirrors the SQL store's assignee semantics: a nil
// agentID leaves the assignee unchanged, empty string clears it, any other
// value sets it.
func (s *Store) UpdateDeliveryStatus(_ context.Context, id string, status delivery.Status, agentID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deliveries[id]
	if !ok {
		return fmt.Errorf("update delivery status %s: %w", id, domain.ErrNotFound)
	}
	d.Status = status
	if agentID != nil {
		d.AgentID = *agentID
	}
	d.UpdatedAt = time.Now().UTC()
	s.deliveries[id] = d
	return nil
}

// --- History ---

func (s *Store) UpsertHistoryRecord(_ context.Context, r *history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// First snapshot wins.
	if _, exists := s.records[r.DeliveryID]; exists {
		return nil
	}
	s.records[r.DeliveryID] = *r
	return nil
}

func (s *Store) ListHistory(_ context.Context, f history.Filter) ([]history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var out []history.Record
	for _, r := range s.records {
		if f.Matches(r, now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ArchivedAt.After(out[j].ArchivedAt)
	})
	return out, nil
}

func (s *Store) ClearHistory(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]history.Record)
	return nil
}
