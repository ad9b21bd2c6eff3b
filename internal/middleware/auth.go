// Package middleware provides HTTP middleware shared across routes.
package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/swiftdrop/deliveryhub/internal/domain/agent"
	"github.com/swiftdrop/deliveryhub/internal/service"
)

type authAgentCtxKey struct{}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":               true,
	"/api/v1/auth/login":    true,
	"/api/v1/auth/register": true,
}

// publicPrefixes are path prefixes exempt from authentication.
var publicPrefixes = []string{
	"/uploads/",
}

// Auth returns middleware that validates the JWT bearer token and injects
// the authenticated agent into the request context.
func Auth(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPaths[r.URL.Path] || hasPublicPrefix(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			// WebSocket clients cannot set headers, so /ws authenticates
			// via a ?token= query parameter.
			token := ""
			if r.URL.Path == "/ws" {
				token = r.URL.Query().Get("token")
				if token == "" {
					writeUnauthorized(w, "authorization required")
					return
				}
			} else {
				authHeader := r.Header.Get("Authorization")
				if authHeader == "" {
					writeUnauthorized(w, "authorization required")
					return
				}
				token = strings.TrimPrefix(authHeader, "Bearer ")
				if token == authHeader {
					writeUnauthorized(w, "invalid authorization header")
					return
				}
			}

			claims, err := authSvc.ValidateAccessToken(token)
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}

			a := &agent.Agent{
				ID:    claims.AgentID,
				Email: claims.Email,
				Name:  claims.Name,
			}
			ctx := context.WithValue(r.Context(), authAgentCtxKey{}, a)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUnauthorized sends a JSON 401; the encoder escapes the message.
func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		slog.Error("failed to write auth error response", "error", err)
	}
}

func hasPublicPrefix(path string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// AgentFromContext returns the authenticated agent from the request context.
func AgentFromContext(ctx context.Context) *agent.Agent {
	a, _ := ctx.Value(authAgentCtxKey{}).(*agent.Agent)
	return a
}

// WithAgent injects an agent into the context. Exported for handler tests.
func WithAgent(ctx context.Context, a *agent.Agent) context.Context {
	return context.WithValue(ctx, authAgentCtxKey{}, a)
}
