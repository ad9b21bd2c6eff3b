package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/swiftdrop/deliveryhub/internal/domain"
	"github.com/swiftdrop/deliveryhub/internal/domain/agent"
)

const agentColumns = `id, email, name, phone, address, photo_path, password_hash, rating, created_at, updated_at`

func (s *Store) CreateAgent(ctx context.Context, a *agent.Agent) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (id, email, name, phone, address, photo_path, password_hash, rating, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.Email, a.Name, a.Phone, a.Address, a.PhotoPath, a.PasswordHash, a.Rating, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id)

	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get agent %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &a, nil
}

func (s *Store) GetAgentByEmail(ctx context.Context, email string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE email = $1`, email)

	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get agent by email %s: %w", email, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get agent by email: %w", err)
	}
	return &a, nil
}

func (s *Store) CreateLoginLog(ctx context.Context, l *agent.LoginLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO login_logs (id, agent_id, email, ip, user_agent, login_time)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		l.ID, l.AgentID, l.Email, l.IP, l.UserAgent, l.LoginTime,
	)
	if err != nil {
		return fmt.Errorf("create login log: %w", err)
	}
	return nil
}

func scanAgent(row scannable) (agent.Agent, error) {
	var a agent.Agent
	err := row.Scan(&a.ID, &a.Email, &a.Name, &a.Phone, &a.Address, &a.PhotoPath,
		&a.PasswordHash, &a.Rating, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
