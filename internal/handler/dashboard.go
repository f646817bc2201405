// Package handler provides HTTP handlers for the dashboard API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/dashboard"
	"github.com/capitalize-ai/conversation-dashboard/internal/middleware"
	"github.com/capitalize-ai/conversation-dashboard/internal/model"
	"github.com/capitalize-ai/conversation-dashboard/internal/view"
	"github.com/capitalize-ai/conversation-dashboard/pkg/logger"
)

// Dashboard is the part of *dashboard.ConversationSync the handlers drive.
type Dashboard interface {
	LoadNextConversationPage(ctx context.Context) (bool, error)
	ReloadConversations(ctx context.Context) error
	SelectConversation(ctx context.Context, id string) error
	LoadNextMessagePage(ctx context.Context, id string, initial bool) (bool, error)
	SetFilter(ctx context.Context, filter dashboard.Filter) error
	Snapshot(ctx context.Context) (dashboard.Snapshot, error)
}

// DashboardHandler handles the dashboard view and its user actions.
type DashboardHandler struct {
	sync   Dashboard
	logger *logger.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(sync Dashboard, log *logger.Logger) *DashboardHandler {
	return &DashboardHandler{
		sync:   sync,
		logger: log,
	}
}

// ActionResponse is returned by the mutating endpoints.
type ActionResponse struct {
	Loaded bool           `json:"loaded"`
	View   view.ViewModel `json:"view"`
}

// View handles GET /api/v1/view
// Accepts ?status=all|active|inactive, ?timeRange=1h|24h|7d|all and ?search=.
// Without any of them the current filter is kept.
func (h *DashboardHandler) View(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, ok, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ok {
		if err := h.sync.SetFilter(ctx, filter); err != nil {
			h.writeSyncError(w, r, "set filter", err)
			return
		}
	}

	snap, err := h.sync.Snapshot(ctx)
	if err != nil {
		h.writeSyncError(w, r, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, view.Build(snap))
}

// LoadMoreConversations handles POST /api/v1/conversations/load-more
func (h *DashboardHandler) LoadMoreConversations(w http.ResponseWriter, r *http.Request) {
	loaded, err := h.sync.LoadNextConversationPage(r.Context())
	if err != nil {
		h.writeSyncError(w, r, "load conversations", err)
		return
	}
	h.writeAction(w, r, loaded)
}

// Reload handles POST /api/v1/conversations/reload
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.sync.ReloadConversations(r.Context()); err != nil {
		h.writeSyncError(w, r, "reload conversations", err)
		return
	}
	h.writeAction(w, r, true)
}

// Select handles POST /api/v1/conversations/{id}/select
func (h *DashboardHandler) Select(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.sync.SelectConversation(r.Context(), conversationID); err != nil {
		h.writeSyncError(w, r, "select conversation", err)
		return
	}
	h.writeAction(w, r, true)
}

// LoadMoreMessages handles POST /api/v1/conversations/{id}/messages/load-more
// Loads the next older page for the selected conversation. Requests for a
// conversation that is not selected are ignored with loaded=false.
func (h *DashboardHandler) LoadMoreMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	loaded, err := h.sync.LoadNextMessagePage(r.Context(), conversationID, false)
	if err != nil {
		h.writeSyncError(w, r, "load messages", err)
		return
	}
	h.writeAction(w, r, loaded)
}

func (h *DashboardHandler) writeAction(w http.ResponseWriter, r *http.Request, loaded bool) {
	snap, err := h.sync.Snapshot(r.Context())
	if err != nil {
		h.writeSyncError(w, r, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Loaded: loaded, View: view.Build(snap)})
}

// writeSyncError maps dashboard errors to responses. Backend failures are
// retryable and reported as 502.
func (h *DashboardHandler) writeSyncError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if r.Context().Err() != nil {
		// Client went away; nothing to write.
		return
	}

	status := http.StatusInternalServerError
	resp := errorResponse{Error: "internal error"}

	var netErr *model.NetworkError
	switch {
	case errors.As(err, &netErr):
		status = http.StatusBadGateway
		resp = errorResponse{Error: netErr.Error(), Retryable: true}
	case errors.Is(err, dashboard.ErrNoConversation):
		status = http.StatusBadRequest
		resp.Error = err.Error()
	case errors.Is(err, dashboard.ErrClosed):
		status = http.StatusServiceUnavailable
		resp.Error = "dashboard is shutting down"
	}

	h.logger.Warn("dashboard action failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
		zap.Error(err),
	)
	writeJSON(w, status, resp)
}

// parseFilter reads filter parameters. ok is false when none were given.
func parseFilter(r *http.Request) (filter dashboard.Filter, ok bool, err error) {
	q := r.URL.Query()
	if !q.Has("status") && !q.Has("timeRange") && !q.Has("search") {
		return dashboard.Filter{}, false, nil
	}

	if filter.Status, err = dashboard.ParseStatus(q.Get("status")); err != nil {
		return dashboard.Filter{}, false, err
	}
	if filter.TimeRange, err = dashboard.ParseTimeRange(q.Get("timeRange")); err != nil {
		return dashboard.Filter{}, false, err
	}
	filter.Search = q.Get("search")
	if err := middleware.ValidateSearch(filter.Search); err != nil {
		return dashboard.Filter{}, false, err
	}
	return filter, true, nil
}
