package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports on one dependency. A failing critical check makes the
// service unavailable; a failing non-critical check only degrades it.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type healthHandler struct {
	checks []HealthCheck
}

func NewHealthHandler(checks ...HealthCheck) *healthHandler {
	return &healthHandler{checks: checks}
}

func (h *healthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK

	for _, c := range h.checks {
		err := c.Check(ctx)
		if err == nil {
			resp.Checks[c.Name] = "ok"
			continue
		}

		resp.Checks[c.Name] = "unavailable"
		if c.Critical {
			slog.Error("health check failed", "check", c.Name, "error", err)
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			slog.Warn("health check degraded", "check", c.Name, "error", err)
			if status == http.StatusOK {
				resp.Status = "degraded"
			}
		}
	}

	writeJSON(w, status, resp)
}
