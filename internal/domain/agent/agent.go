// Package agent defines the delivery agent domain model used for
// authentication and task ownership.
package agent

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/swiftdrop/deliveryhub/internal/domain"
)

// Agent represents a registered delivery agent.
type Agent struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	PhotoPath    string    `json:"photo,omitempty"`
	PasswordHash string    `json:"-"` // never serialized
	Rating       float64   `json:"rating"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateRequest is the input for registering a new agent.
type CreateRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required: %w", domain.ErrValidation)
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("invalid email format: %w", domain.ErrValidation)
	}
	if r.Name == "" {
		return fmt.Errorf("name is required: %w", domain.ErrValidation)
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", domain.ErrValidation)
	}
	return nil
}

// LoginRequest is the input for agent authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that the LoginRequest has all required fields.
func (r *LoginRequest) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("email is required: %w", domain.ErrValidation)
	}
	if r.Password == "" {
		return fmt.Errorf("password is required: %w", domain.ErrValidation)
	}
	return nil
}

// LoginResponse is returned after successful authentication.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // seconds until the access token expires
	Agent       Agent  `json:"agent"`
}

// TokenClaims contains the JWT payload fields.
type TokenClaims struct {
	AgentID  string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IssuedAt int64  `json:"iat"`
	Expiry   int64  `json:"exp"`
	Audience string `json:"aud"`
	Issuer   string `json:"iss"`
}

// LoginLog records a successful login for auditing.
type LoginLog struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Email     string    `json:"email"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	LoginTime time.Time `json:"login_time"`
}
