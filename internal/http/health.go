package http

import (
	"encoding/json"
	"net/http"

	pkgdatabase "github.com/isg-automation/scheduler/pkg/database"
)

// HealthDeps are the collaborators the /healthz and /metrics routes need.
type HealthDeps struct {
	Connections pkgdatabase.ConnectionManager

	// MetricsHandler, when non-nil, is mounted at /metrics — populated
	// only when the configured telemetry exporter serves one (prometheus).
	MetricsHandler http.Handler
}

type healthResponse struct {
	Status      string                      `json:"status"`
	Connections pkgdatabase.ConnectionStats `json:"connections"`
}

// RegisterHealthRoutes wires /healthz (and /metrics, when available) onto mux.
func RegisterHealthRoutes(mux *http.ServeMux, deps HealthDeps) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(w, r, deps)
	})
	if deps.MetricsHandler != nil {
		mux.Handle("/metrics", deps.MetricsHandler)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request, deps HealthDeps) {
	resp := healthResponse{Status: "ok"}
	if deps.Connections != nil {
		if err := deps.Connections.GetSystemConnection().PingContext(r.Context()); err != nil {
			resp.Status = "degraded"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		resp.Connections = deps.Connections.GetStats()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
