package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/swiftdrop/deliveryhub/internal/domain"
	"github.com/swiftdrop/deliveryhub/internal/domain/delivery"
	"github.com/swiftdrop/deliveryhub/internal/domain/history"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Deliveries ---

const deliveryColumns = `id, platform, order_number, pickup_address, drop_address, items,
	amount, earnings, estimated_delivery_time, distance, status, COALESCE(agent_id::text, ''), created_at, updated_at`

func (s *Store) CreateDelivery(ctx context.Context, d *delivery.Delivery) error {
	pickupJSON, err := json.Marshal(d.PickupAddress)
	if err != nil {
		return fmt.Errorf("marshal pickup_address: %w", err)
	}
	dropJSON, err := json.Marshal(d.DropAddress)
	if err != nil {
		return fmt.Errorf("marshal drop_address: %w", err)
	}
	itemsJSON, err := json.Marshal(d.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO deliveries (id, platform, order_number, pickup_address, drop_address, items,
		                        amount, earnings, estimated_delivery_time, distance, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.Platform, d.OrderNumber, pickupJSON, dropJSON, itemsJSON,
		d.Amount, d.Earnings, d.EstimatedDeliveryTime, d.Distance, string(d.Status), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create delivery: %w", err)
	}
	return nil
}

func (s *Store) GetDelivery(ctx context.Context, id string) (*delivery.Delivery, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)

	d, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get delivery %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get delivery %s: %w", id, err)
	}
	return &d, nil
}

func (s *Store) ListDeliveries(ctx context.Context, f delivery.Filter) ([]delivery.Delivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM deliveries`
	var args []any

	switch {
	case f.AgentID != "" && f.Status != "":
		query += ` WHERE (agent_id = $1 OR (agent_id IS NULL AND status = 'PENDING')) AND status = $2`
		args = append(args, f.AgentID, string(f.Status))
	case f.AgentID != "":
		query += ` WHERE agent_id = $1 OR (agent_id IS NULL AND status = 'PENDING')`
		args = append(args, f.AgentID)
	case f.Status != "":
		query += ` WHERE status = $1`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []delivery.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// UpdateDeliveryStatus persists a status change in a single statement.
// agentID semantics: nil leaves the assignee unchanged, empty string clears
// it, any other value sets it.
func (s *Store) UpdateDeliveryStatus(ctx context.Context, id string, status delivery.Status, agentID *string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = $2,
		    agent_id = CASE WHEN $3::text IS NULL THEN agent_id
		                    WHEN $3 = '' THEN NULL
		                    ELSE $3::uuid END,
		    updated_at = now()
		WHERE id = $1`,
		id, string(status), agentID,
	)
	if err != nil {
		return fmt.Errorf("update delivery status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update delivery status %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// --- History ---

const historyColumns = `id, delivery_id, COALESCE(agent_id::text, ''), platform, order_number, customer,
	amount, earnings, pickup_location, location, status, date, time, archived_at`

// UpsertHistoryRecord inserts a history record. A record already archived for
// the same delivery is kept untouched (first snapshot wins).
func (s *Store) UpsertHistoryRecord(ctx context.Context, r *history.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO history (id, delivery_id, agent_id, platform, order_number, customer,
		                     amount, earnings, pickup_location, location, status, date, time, archived_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (delivery_id) DO NOTHING`,
		r.ID, r.DeliveryID, r.AgentID, r.Platform, r.OrderNumber, r.Customer,
		r.Amount, r.Earnings, r.PickupLocation, r.Location, r.Status, r.Date, r.Time, r.ArchivedAt,
	)
	if err != nil {
		return fmt.Errorf("archive delivery %s: %w", r.DeliveryID, err)
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, f history.Filter) ([]history.Record, error) {
	query := `SELECT ` + historyColumns + ` FROM history`
	var args []any
	var where []string

	if f.Platform != "" {
		args = append(args, f.Platform)
		where = append(where, fmt.Sprintf("LOWER(platform) = LOWER($%d)", len(args)))
	}
	// ISO dates compare correctly as text.
	if start, bounded := history.WindowStart(f.Window, time.Now()); bounded {
		args = append(args, start.Format("2006-01-02"))
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += ` ORDER BY archived_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []history.Record
	for rows.Next() {
		var r history.Record
		if err := rows.Scan(&r.ID, &r.DeliveryID, &r.AgentID, &r.Platform, &r.OrderNumber, &r.Customer,
			&r.Amount, &r.Earnings, &r.PickupLocation, &r.Location, &r.Status, &r.Date, &r.Time, &r.ArchivedAt); err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *Store) ClearHistory(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// --- Scanners ---

type scannable interface {
	Scan(dest ...any) error
}

func scanDelivery(row scannable) (delivery.Delivery, error) {
	var d delivery.Delivery
	var pickupJSON, dropJSON, itemsJSON []byte
	var estimated *time.Time
	err := row.Scan(&d.ID, &d.Platform, &d.OrderNumber, &pickupJSON, &dropJSON, &itemsJSON,
		&d.Amount, &d.Earnings, &estimated, &d.Distance, &d.Status, &d.AgentID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return d, err
	}
	if estimated != nil {
		d.EstimatedDeliveryTime = *estimated
	}
	if err := json.Unmarshal(pickupJSON, &d.PickupAddress); err != nil {
		return d, fmt.Errorf("unmarshal pickup_address: %w", err)
	}
	if err := json.Unmarshal(dropJSON, &d.DropAddress); err != nil {
		return d, fmt.Errorf("unmarshal drop_address: %w", err)
	}
	if err := json.Unmarshal(itemsJSON, &d.Items); err != nil {
		return d, fmt.Errorf("unmarshal items: %w", err)
	}
	return d, nil
}
