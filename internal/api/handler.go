// Package api provides HTTP handlers for the portal pages.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/assist-portal/internal/domain"
	"github.com/ashureev/assist-portal/internal/gate"
	"github.com/ashureev/assist-portal/internal/identity"
	"github.com/ashureev/assist-portal/internal/store"
)

// Renderer renders a named view with a data bag.
type Renderer interface {
	Render(w io.Writer, view string, data map[string]any) error
}

// Content is the read side of the portal directory.
type Content interface {
	FindByEmail(ctx context.Context, email string) (*domain.UserRecord, error)
	Informations(ctx context.Context) ([]domain.Information, error)
	Company(ctx context.Context) (*domain.Company, error)
}

// SocketCloser closes live chat sockets opened under a session token.
type SocketCloser interface {
	CloseSession(token string)
}

// Handler provides common handler utilities.
type Handler struct {
	repo        store.Repository
	gate        *gate.Gate
	content     Content
	views       Renderer
	sockets     SocketCloser
	sessionOpts identity.Options
}

// NewHandler creates a new Handler with common dependencies. sockets may be nil.
func NewHandler(repo store.Repository, g *gate.Gate, content Content, views Renderer, sockets SocketCloser, sessionOpts identity.Options) *Handler {
	return &Handler{
		repo:        repo,
		gate:        g,
		content:     content,
		views:       views,
		sockets:     sockets,
		sessionOpts: sessionOpts,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// Text writes a plain-text response with the given status code.
func Text(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := io.WriteString(w, body); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

// render writes view only once it has rendered completely; a failure
// becomes a 500 with nothing of the page sent.
func (h *Handler) render(w http.ResponseWriter, view string, data map[string]any) {
	var buf bytes.Buffer
	if err := h.views.Render(&buf, view, data); err != nil {
		slog.Error("Failed to render view", "view", view, "error", err)
		Text(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("failed to write view", "view", view, "error", err)
	}
}

// fail reports a collaborator failure as a plain 500.
func fail(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	Text(w, http.StatusInternalServerError, "Internal Server Error")
}
