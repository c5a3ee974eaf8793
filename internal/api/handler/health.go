package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mcoot/blazers/internal/api/response"
	"github.com/mcoot/blazers/internal/services/session"
)

// Pinger checks a backing store
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionStats reports live connection counts
type SessionStats interface {
	Stats(ctx context.Context) (session.Stats, error)
}

// HealthHandler reports service health
type HealthHandler struct {
	storage  Pinger
	sessions SessionStats
	logger   *slog.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(storage Pinger, sessions SessionStats, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{storage: storage, sessions: sessions, logger: logger}
}

// Get handles GET /api/v1/health. A failing dependency turns the status
// to degraded and the response to 503.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	out := response.Health{Status: "ok", Storage: "ok"}

	if err := h.storage.Ping(r.Context()); err != nil {
		h.logger.Warn("storage health check failed", slog.String("error", err.Error()))
		out.Status = "degraded"
		out.Storage = "unavailable"
	}

	stats, err := h.sessions.Stats(r.Context())
	if err != nil {
		h.logger.Warn("session stats unavailable", slog.String("error", err.Error()))
		out.Status = "degraded"
	}
	out.Connections = stats.Connections
	out.Authenticated = stats.Authenticated

	status := http.StatusOK
	if out.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, out)
}
