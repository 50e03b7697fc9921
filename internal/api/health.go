package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/assist-portal/internal/store"
	"github.com/go-chi/chi/v5"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo                store.Repository
	assistantConfigured bool
	timeout             time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, assistantConfigured bool) *HealthHandler {
	return &HealthHandler{repo: repo, assistantConfigured: assistantConfigured, timeout: 5 * time.Second}
}

// Health returns the health status of the portal and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "assistant": "configured"}
	if !h.assistantConfigured {
		checks["assistant"] = "unconfigured"
	}
	status := map[string]any{"status": "healthy", "checks": checks}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the detailed health route. The bare /health
// heartbeat is answered by middleware.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
