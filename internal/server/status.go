package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hoardsync/internal/models"
)

// Status is the daemon state reported by GET /status.
type Status struct {
	StartedAt       time.Time       `json:"started_at"`
	Cursor          *string         `json:"cursor"` // null when never synced or caught up
	CacheEntries    int             `json:"cache_entries"`
	SyncedBookmarks int             `json:"synced_bookmarks"`
	LastRun         *models.SyncRun `json:"last_run,omitempty"`
	LastError       string          `json:"last_error,omitempty"`
	NextRunAt       *time.Time      `json:"next_run_at,omitempty"`
}

// StatusProvider builds a [Status] snapshot on request.
type StatusProvider interface {
	Status(ctx context.Context) (*Status, error)
}

// StatusHandler serves liveness and sync state as JSON.
type StatusHandler struct {
	provider StatusProvider
	logger   *log.Logger
}

func NewStatusHandler(provider StatusProvider, logger *log.Logger) *StatusHandler {
	return &StatusHandler{provider: provider, logger: logger}
}

func (h *StatusHandler) Routes() []string {
	return []string{"GET /health", "GET /status"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	switch req.URL.Path {
	case "/health":
		h.write(w, http.StatusOK, map[string]string{"status": "ok"})
	case "/status":
		status, err := h.provider.Status(req.Context())
		if err != nil {
			h.logger.Warn("status unavailable", "error", err)
			h.write(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		h.write(w, http.StatusOK, status)
	default:
		http.NotFound(w, req)
	}
}

func (h *StatusHandler) write(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}
