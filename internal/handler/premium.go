// Package handler contains HTTP handlers for the Linksight API.
//
// This file implements the premium usage endpoints.
//
// Routes (all behind bearer auth):
//   - GET  /api/premium/limits       -> handleLimits
//   - GET  /api/premium/usage        -> handleUsage
//   - GET  /api/premium/cycle-usage  -> handleCycleUsage
//   - GET  /api/premium/check        -> handleCheck
//   - POST /api/premium/actions      -> handleCreateAction (rate limited)
//   - GET  /api/premium/actions      -> handleListActions
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/linksight/linksight/internal/auth"
	"github.com/linksight/linksight/internal/domain"
	"github.com/linksight/linksight/internal/service"
)

// maxActionBodyBytes caps the POST /api/premium/actions body.
const maxActionBodyBytes = 64 << 10

// PremiumHandler serves the premium usage API.
type PremiumHandler struct {
	premium service.PremiumService
	logger  *slog.Logger
}

// NewPremiumHandler creates a new PremiumHandler.
func NewPremiumHandler(premium service.PremiumService, logger *slog.Logger) *PremiumHandler {
	return &PremiumHandler{
		premium: premium,
		logger:  logger,
	}
}

// RegisterRoutes registers the premium routes on the provided mux.
// protect wraps every route; limit additionally wraps action recording.
func (h *PremiumHandler) RegisterRoutes(mux *http.ServeMux, protect, limit func(http.Handler) http.Handler) {
	mux.Handle("GET /api/premium/limits", protect(http.HandlerFunc(h.handleLimits)))
	mux.Handle("GET /api/premium/usage", protect(http.HandlerFunc(h.handleUsage)))
	mux.Handle("GET /api/premium/cycle-usage", protect(http.HandlerFunc(h.handleCycleUsage)))
	mux.Handle("GET /api/premium/check", protect(http.HandlerFunc(h.handleCheck)))
	mux.Handle("POST /api/premium/actions", protect(limit(http.HandlerFunc(h.handleCreateAction))))
	mux.Handle("GET /api/premium/actions", protect(http.HandlerFunc(h.handleListActions)))
}

// =============================================================================
// Request / Response Types
// =============================================================================

type limitsResponse struct {
	Role   string             `json:"role"`
	Limits *domain.RoleLimits `json:"limits"`
}

type createActionRequest struct {
	ActionType string         `json:"action_type"`
	PostID     string         `json:"post_id"`
	Metadata   map[string]any `json:"metadata"`
}

type actionsResponse struct {
	Actions []*domain.PremiumAction `json:"actions"`
}

// =============================================================================
// Handlers
// =============================================================================

func (h *PremiumHandler) handleLimits(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	limits, err := h.premium.GetLimits(r.Context(), user.Role)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, limitsResponse{
		Role:   user.Role.LimitKey(),
		Limits: limits,
	})
}

func (h *PremiumHandler) handleUsage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	usage, err := h.premium.GetMonthlyUsage(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, usage)
}

func (h *PremiumHandler) handleCycleUsage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	usage, err := h.premium.GetCycleUsage(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, usage)
}

func (h *PremiumHandler) handleCheck(w http.ResponseWriter, r *http.Request) {
	const op = "premium.check"

	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	q := r.URL.Query()
	if q.Get("action_type") == "" {
		ValidationErrorResponse(w, r, h.logger, domain.NewValidationError(op, "action_type", "action_type is required"))
		return
	}

	decision, err := h.premium.CheckAccess(r.Context(), user, domain.AccessRequest{
		ActionType: domain.ActionType(q.Get("action_type")),
		PostID:     q.Get("post_id"),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, decision)
}

func (h *PremiumHandler) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	const op = "premium.create_action"

	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var body createActionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxActionBodyBytes)).Decode(&body); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "request body must be a JSON object"))
		return
	}
	if body.ActionType == "" {
		ValidationErrorResponse(w, r, h.logger, domain.NewValidationError(op, "action_type", "action_type is required"))
		return
	}

	action, decision, err := h.premium.PerformAction(r.Context(), user, domain.AccessRequest{
		ActionType: domain.ActionType(body.ActionType),
		PostID:     body.PostID,
	}, body.Metadata)
	if err != nil {
		if domain.ErrorCode(err) == domain.ELIMIT && decision != nil {
			LimitReachedResponse(w, r, h.logger, err, decision)
			return
		}
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, action)
}

func (h *PremiumHandler) handleListActions(w http.ResponseWriter, r *http.Request) {
	const op = "premium.list_actions"

	user := auth.GetUserFromRequest(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	filter, err := parseActionFilter(op, r)
	if err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}
	filter.UserID = user.ID

	actions, err := h.premium.ListActions(r.Context(), filter)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, actionsResponse{Actions: actions})
}

// =============================================================================
// Helpers
// =============================================================================

// parseActionFilter reads the optional history filters from the query string.
func parseActionFilter(op string, r *http.Request) (domain.ActionFilter, error) {
	q := r.URL.Query()
	filter := domain.ActionFilter{
		ActionType: domain.ActionType(q.Get("action_type")),
	}

	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, domain.NewValidationError(op, "since", "since must be an RFC3339 timestamp")
		}
		since = since.UTC()
		filter.Since = &since
	}

	var err error
	if filter.Limit, err = queryInt(q.Get("limit")); err != nil {
		return filter, domain.NewValidationError(op, "limit", "limit must be a non-negative integer")
	}
	if filter.Offset, err = queryInt(q.Get("offset")); err != nil {
		return filter, domain.NewValidationError(op, "offset", "offset must be a non-negative integer")
	}

	return filter, nil
}

var errNegative = errors.New("negative value")

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegative
	}
	return n, nil
}
