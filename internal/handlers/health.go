package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler responds with service health information.
type HealthHandler struct {
	Checks  []HealthCheck
	Timeout time.Duration
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	status := http.StatusOK
	payload := map[string]any{"status": "ok"}
	failing := map[string]string{}
	for _, check := range h.Checks {
		if err := check.Check(ctx); err != nil {
			failing[check.Name] = err.Error()
		}
	}
	if len(failing) > 0 {
		status = http.StatusServiceUnavailable
		payload["status"] = "degraded"
		payload["failing"] = failing
	}

	respondJSON(r.Context(), w, status, payload)
}
