// Package healthz implements the unauthenticated liveness endpoint shared by
// all three services, matching the shape the command-line status checks in
// internal/cli/health expect. Grounded on
// pkg/controlplane/api/handlers/health.go's Liveness handler and its
// healthyResponse helper.
package healthz

import (
	"encoding/json"
	"net/http"
	"time"
)

// response mirrors internal/cli/health.Response's wire shape.
type response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string `json:"service"`
		StartedAt string `json:"started_at"`
		Uptime    string `json:"uptime"`
		UptimeSec int64  `json:"uptime_sec"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Handler returns an http.HandlerFunc reporting a constant "healthy" status
// and the process uptime since startedAt, for service.
func Handler(service string, startedAt time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(startedAt)

		var resp response
		resp.Status = "healthy"
		resp.Timestamp = time.Now().UTC().Format(time.RFC3339)
		resp.Data.Service = service
		resp.Data.StartedAt = startedAt.UTC().Format(time.RFC3339)
		resp.Data.Uptime = uptime.String()
		resp.Data.UptimeSec = int64(uptime.Seconds())

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
