package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/conversation-dashboard/internal/dashboard"
	"github.com/capitalize-ai/conversation-dashboard/internal/middleware"
	"github.com/capitalize-ai/conversation-dashboard/internal/view"
	"github.com/capitalize-ai/conversation-dashboard/pkg/logger"
	"github.com/capitalize-ai/conversation-dashboard/pkg/metrics"
)

const defaultHeartbeatInterval = 30 * time.Second

// Subscriber hands out snapshot subscriptions. *notify.Hub implements it.
type Subscriber interface {
	Subscribe() (<-chan dashboard.Snapshot, func())
}

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	hub       Subscriber
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(hub Subscriber, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		hub:       hub,
		heartbeat: defaultHeartbeatInterval,
		logger:    log,
	}
}

// ConnectedEvent is the first event on every stream.
type ConnectedEvent struct {
	ClientID string `json:"clientId"`
}

// HeartbeatEvent keeps idle connections open through proxies.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Stream handles GET /api/v1/stream
// Sends the current view immediately and then one snapshot per render. A
// slow client skips intermediate renders and receives the newest one.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Track active connection
	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	snapshots, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	clientID := uuid.NewString()
	log := h.logger.With(
		zap.String("client_id", clientID),
		zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
	)

	if err := sendSSEEvent(w, flusher, "connected", ConnectedEvent{ClientID: clientID}); err != nil {
		return
	}
	log.Info("SSE client connected")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("SSE client disconnected")
			return

		case snap, ok := <-snapshots:
			if !ok {
				// Hub closed during shutdown.
				return
			}
			if err := sendSSEEvent(w, flusher, "snapshot", view.Build(snap)); err != nil {
				log.Debug("SSE write failed", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", HeartbeatEvent{Timestamp: time.Now()}); err != nil {
				log.Debug("SSE write failed", zap.Error(err))
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
