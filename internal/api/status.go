package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/acdb/stockroom/internal/db"
)

// ServiceInfo describes the running service.
type ServiceInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// StatusHandler serves the unauthenticated service endpoints.
type StatusHandler struct {
	DB   *db.DB
	Service ServiceInfo
}

type infoResponse struct {
	ServiceInfo
	Database      string `json:"database"`
	SchemaVersion uint   `json:"schema_version"`
	SchemaDirty   bool   `json:"schema_dirty,omitempty"`
}

// Index handles GET /.
func (h *StatusHandler) Index(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{
		"message": h.Service.Name + " is running",
	})
}

// Info handles GET /info.
func (h *StatusHandler) Info(w http.ResponseWriter, r *http.Request) {
	version, dirty, err := db.MigrationVersion(h.DB)
	if err != nil {
		slog.Error("reading schema version", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "storage is unavailable")
		return
	}
	jsonResponse(w, http.StatusOK, infoResponse{
		ServiceInfo:   h.Service,
		Database:      string(h.DB.Dialect),
		SchemaVersion: version,
		SchemaDirty:   dirty,
	})
}

// Health handles GET /healthz.
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.DB.PingContext(ctx); err != nil {
		slog.Warn("health check failed", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "storage is unavailable")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
