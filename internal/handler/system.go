package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// healthPingTimeout bounds the database ping behind GET /health.
const healthPingTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// SystemHandler serves the health check and the JSON fallback for unknown
// API paths.
type SystemHandler struct {
	db     Pinger
	logger *slog.Logger
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(db Pinger, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		db:     db,
		logger: logger,
	}
}

// RegisterRoutes registers the system routes on the provided mux.
func (h *SystemHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("/api/", h.handleUnknownAPI)
}

func (h *SystemHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *SystemHandler) handleUnknownAPI(w http.ResponseWriter, r *http.Request) {
	NotFoundResponse(w, r, h.logger)
}
