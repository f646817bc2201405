package handler

import (
	"net/http"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	ready    func() bool
	realtime func() bool
	streams  func() int
}

// NewHealthHandler creates a new health handler. ready reports whether the
// dashboard has loaded its first conversation page; realtime and streams are
// optional status probes included in /health.
func NewHealthHandler(ready, realtime func() bool, streams func() int) *HealthHandler {
	return &HealthHandler{
		ready:    ready,
		realtime: realtime,
		streams:  streams,
	}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Realtime   string `json:"realtime,omitempty"`
	SSEClients int    `json:"sseClients"`
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "healthy"}
	if h.realtime != nil {
		resp.Realtime = "polling"
		if h.realtime() {
			resp.Realtime = "connected"
		}
	}
	if h.streams != nil {
		resp.SSEClients = h.streams()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready == nil || !h.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "conversations not loaded",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
