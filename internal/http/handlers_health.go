package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// HealthHandler reports readiness. Any failing check turns the status to
// degraded and the response to 503.
type HealthHandler struct {
	Checks map[string]HealthCheck
	Logger *slog.Logger
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	code := http.StatusOK

	if len(h.Checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		names := make([]string, 0, len(h.Checks))
		for name := range h.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		resp.Services = make(map[string]string, len(names))
		for _, name := range names {
			if err := h.Checks[name](ctx); err != nil {
				if h.Logger != nil {
					h.Logger.WarnContext(ctx, "health check failed", "service", name, "error", err)
				}
				resp.Services[name] = "error"
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Services[name] = "ok"
		}
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		return
	}
	WriteJSON(w, code, resp)
}
