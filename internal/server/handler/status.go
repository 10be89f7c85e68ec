package handler

import (
	"net/http"
	"time"
)

// StatusHandler reports how this instance is configured.
type StatusHandler struct {
	Mode    string
	Store   string
	started time.Time
}

// NewStatusHandler creates a StatusHandler for the given run mode and store
// backend.
func NewStatusHandler(mode, store string) *StatusHandler {
	return &StatusHandler{Mode: mode, Store: store, started: time.Now()}
}

// GetStatus responds with the run mode, store backend and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":          h.Mode,
		"store":         h.Store,
		"uptimeSeconds": int64(time.Since(h.started).Seconds()),
	})
}
