package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/swiftdrop/deliveryhub/internal/domain/agent"
	"github.com/swiftdrop/deliveryhub/internal/middleware"
	"github.com/swiftdrop/deliveryhub/internal/service"
)

// Register creates a new agent account. The endpoint accepts either a JSON
// body or multipart/form-data with an optional "photo" file field.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req agent.CreateRequest
	photoPath := ""

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.uploads.MaxSizeBytes); err != nil {
			writeError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		req = agent.CreateRequest{
			Email:    r.FormValue("email"),
			Name:     r.FormValue("name"),
			Password: r.FormValue("password"),
			Phone:    r.FormValue("phone"),
			Address:  r.FormValue("address"),
		}

		path, err := h.savePhoto(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to store photo")
			return
		}
		photoPath = path
	} else {
		var ok bool
		req, ok = readJSON[agent.CreateRequest](w, r)
		if !ok {
			return
		}
	}

	a, err := h.auth.Register(r.Context(), &req, photoPath)
	if err != nil {
		// Registration did not go through; drop the stored photo so a
		// rejected attempt leaves no orphaned upload behind.
		if photoPath != "" {
			_ = os.Remove(filepath.FromSlash(photoPath))
		}
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// savePhoto stores an uploaded profile photo under the uploads directory
// with a timestamped name. Returns "" when no photo was sent.
func (h *Handlers) savePhoto(r *http.Request) (string, error) {
	file, header, err := r.FormFile("photo")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	defer func() { _ = file.Close() }()

	if err := os.MkdirAll(h.uploads.Dir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), filepath.Base(header.Filename))
	dst := filepath.Join(h.uploads.Dir, name)

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, file); err != nil {
		_ = os.Remove(dst)
		return "", err
	}
	return filepath.ToSlash(dst), nil
}

// Login authenticates an agent and returns an access token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.LoginRequest](w, r)
	if !ok {
		return
	}

	ip := clientIP(r)
	resp, err := h.auth.Login(r.Context(), req, ip, r.UserAgent())
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Me returns the authenticated agent's profile.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	a := middleware.AgentFromContext(r.Context())
	if a == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	full, err := h.auth.GetAgent(r.Context(), a.ID)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, full)
}

// clientIP extracts the caller's IP, preferring X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
