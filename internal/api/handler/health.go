package handler

import (
	"context"
	"net/http"

	"auth-control-plane/internal/api/middleware"
	"auth-control-plane/internal/api/response"
)

// DBPinger checks database connectivity.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      DBPinger
	mode    string
	version string
}

// NewHealthHandler creates a new HealthHandler. db may be nil in local mode.
func NewHealthHandler(db DBPinger, mode, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		mode:    mode,
		version: version,
	}
}

type databaseStatus struct {
	Connected bool `json:"connected"`
}

type healthData struct {
	Status   string          `json:"status"`
	Mode     string          `json:"mode"`
	Version  string          `json:"version"`
	Database *databaseStatus `json:"database,omitempty"`
}

// ServeHTTP handles the health check request.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	data := healthData{
		Status:  "healthy",
		Mode:    h.mode,
		Version: h.version,
	}
	if h.db != nil {
		connected := h.db.PingContext(r.Context()) == nil
		if !connected {
			data.Status = "degraded"
		}
		data.Database = &databaseStatus{Connected: connected}
	}

	response.Success(w, http.StatusOK, data, requestID)
}
