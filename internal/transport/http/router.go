// http собирает HTTP-транспорт auth-сервиса: chi-роутер, мидлвары и маршруты.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/auth-session-service/internal/metrics"
	"github.com/pribylovaa/auth-session-service/internal/service"
	"github.com/pribylovaa/auth-session-service/internal/transport/http/apierrors"
	"github.com/pribylovaa/auth-session-service/internal/transport/http/handlers"
	"github.com/pribylovaa/auth-session-service/internal/transport/http/middleware"
)

// BasePath - префикс маршрутов авторизации.
const BasePath = "/api/auth"

// Options - параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Metrics *metrics.Metrics
	// Checks - зависимости для /healthz (например, "storage", "cache").
	Checks map[string]handlers.Pinger
	// MetricsHandler, если задан, отдаётся на /metrics.
	MetricsHandler http.Handler
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(auth handlers.Auth, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.RequestID(),           // X-Request-Id до логирования
		middleware.Logging(opts.Logger),  // request-scoped логгер в контексте
		middleware.Recover(),             // паника -> 500, запись попадает в лог запроса
		middleware.Metrics(opts.Metrics), // длительность по шаблону маршрута
		middleware.AuthBearer(),          // Bearer-токен в контекст
		middleware.Timeout(opts.Timeout), // общий дедлайн запроса
	)

	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteError(w, r, service.ErrNotFound)
	})

	h := handlers.New(auth, opts.Checks)

	root.Get("/livez", h.Livez)
	root.Get("/healthz", h.Healthz)
	if opts.MetricsHandler != nil {
		root.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	root.Route(BasePath, func(r chi.Router) {
		registerRoutes(r, h)
	})

	return root
}

// registerRoutes - единая точка регистрации эндпоинтов авторизации.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/refresh", h.Refresh)
	r.Get("/profile", h.Profile)
	r.Post("/logout", h.Logout)
}
