package server

import (
	"net/http"
	"time"
)

// HealthStatus represents operational status for the /health endpoint.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Database  string                 `json:"database"`
	Playback  string                 `json:"playback"`
	Active    bool                   `json:"sessionActive"`
	Tracks    int                    `json:"trackCount"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// handleHealthCheck returns basic liveness + dependency checks.
func (ms *ControlServer) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	snap := ms.state.Snapshot()
	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(ms.startedAt).Round(time.Second).String(),
		Database:  "builtin",
		Playback:  snap.State.State.String(),
		Active:    snap.Active,
		Tracks:    ms.catalog.Len(),
		Details:   make(map[string]interface{}),
	}

	if ms.index != nil {
		health.Database = "ok"
		if err := ms.index.Ping(); err != nil {
			health.Status = "unhealthy"
			health.Database = "error"
			health.Details["database_error"] = err.Error()
		}
	}

	if health.Status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	ms.respondJSON(w, health)
}
