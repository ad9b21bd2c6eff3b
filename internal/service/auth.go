// Package service contains the business logic behind the HTTP handlers.
package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/swiftdrop/deliveryhub/internal/config"
	"github.com/swiftdrop/deliveryhub/internal/domain"
	"github.com/swiftdrop/deliveryhub/internal/domain/agent"
	"github.com/swiftdrop/deliveryhub/internal/port/database"
)

// ErrInvalidCredentials is returned when email or password do not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles agent registration, login, and JWT tokens.
type AuthService struct {
	store  database.Store
	cfg    *config.Auth
	secret []byte
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.Store, cfg *config.Auth) *AuthService {
	return &AuthService{
		store:  store,
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
	}
}

// Register creates a new agent with a bcrypt-hashed password. photoPath is
// the stored location of the uploaded profile photo, empty when none was sent.
func (s *AuthService) Register(ctx context.Context, req *agent.CreateRequest, photoPath string) (*agent.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	if _, err := s.store.GetAgentByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email %s already registered: %w", req.Email, domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	a := &agent.Agent{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Name:         req.Name,
		Phone:        req.Phone,
		Address:      req.Address,
		PhotoPath:    photoPath,
		PasswordHash: string(hash),
	}

	if err := s.store.CreateAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return a, nil
}

// Login authenticates an agent, records a login log entry, and returns an
// access token. ip and userAgent come from the request for auditing.
func (s *AuthService) Login(ctx context.Context, req agent.LoginRequest, ip, userAgent string) (*agent.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	a, err := s.store.GetAgentByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.signJWT(a)
	if err != nil {
		return nil, fmt.Errorf("sign jwt: %w", err)
	}

	log := &agent.LoginLog{
		ID:        uuid.NewString(),
		AgentID:   a.ID,
		Email:     a.Email,
		IP:        ip,
		UserAgent: userAgent,
		LoginTime: time.Now().UTC(),
	}
	if err := s.store.CreateLoginLog(ctx, log); err != nil {
		// Auditing must not block a valid login.
		slog.Warn("failed to write login log", "agent_id", a.ID, "error", err)
	}

	return &agent.LoginResponse{
		AccessToken: accessToken,
		ExpiresIn:   int(s.cfg.AccessTokenExpiry.Seconds()),
		Agent:       *a,
	}, nil
}

// GetAgent returns an agent by ID.
func (s *AuthService) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// ValidateAccessToken verifies a JWT and returns the claims.
func (s *AuthService) ValidateAccessToken(tokenStr string) (*agent.TokenClaims, error) {
	return s.verifyJWT(tokenStr)
}

// --- JWT implementation (HS256 with stdlib) ---

// jwtHeader is the fixed base64url-encoded header for HS256.
var jwtHeader = base64URLEncode([]byte(`{"alg":"HS256","typ":"JWT"}`))

func (s *AuthService) signJWT(a *agent.Agent) (string, error) {
	now := time.Now()
	claims := agent.TokenClaims{
		AgentID:  a.ID,
		Email:    a.Email,
		Name:     a.Name,
		IssuedAt: now.Unix(),
		Expiry:   now.Add(s.cfg.AccessTokenExpiry).Unix(),
		Audience: "deliveryhub",
		Issuer:   "deliveryhub-api",
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	payloadB64 := base64URLEncode(payload)
	signingInput := jwtHeader + "." + payloadB64

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(signingInput))
	sig := base64URLEncode(mac.Sum(nil))

	return signingInput + "." + sig, nil
}

func (s *AuthService) verifyJWT(tokenStr string) (*agent.TokenClaims, error) {
	parts := strings.SplitN(tokenStr, ".", 3)
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}

	signingInput := parts[0] + "." + parts[1]
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(signingInput))
	expectedSig := base64URLEncode(mac.Sum(nil))

	if !hmac.Equal([]byte(parts[2]), []byte(expectedSig)) {
		return nil, errors.New("invalid signature")
	}

	payload, err := base64URLDecode(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	var claims agent.TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	if time.Now().Unix() > claims.Expiry {
		return nil, errors.New("token expired")
	}

	if claims.Audience != "deliveryhub" {
		return nil, errors.New("invalid token audience")
	}
	if claims.Issuer != "deliveryhub-api" {
		return nil, errors.New("invalid token issuer")
	}

	return &claims, nil
}

// --- Helpers ---

func base64URLEncode(data []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(data), "=")
}

func base64URLDecode(s string) ([]byte, error) {
	// Add padding back
	switch len(s) % 4 {
	case 2:
		s += "=="
	case 3:
		s += "="
	}
	return base64.URLEncoding.DecodeString(s)
}
