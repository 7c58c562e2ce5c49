package handlers

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/pribylovaa/auth-session-service/internal/pkg/log"
)

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Livez - процесс жив; зависимости не опрашиваются.
func (h *Handlers) Livez(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Healthz пингует хранилище и кэш. Любой сбой даёт 503.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	code := http.StatusOK

	for _, name := range names {
		if err := h.checks[name].Ping(r.Context()); err != nil {
			log.From(r.Context()).Warn("health_check_failed",
				slog.String("dependency", name),
				slog.String("err", err.Error()),
			)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	writeJSON(w, code, resp)
}
