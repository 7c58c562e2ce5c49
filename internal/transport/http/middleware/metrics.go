package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/auth-session-service/internal/metrics"
)

// Metrics учитывает длительность запросов по шаблону маршрута chi,
// чтобы кардинальность меток не зависела от пути. Запросы мимо
// зарегистрированных маршрутов учитываются как "unmatched".
func Metrics(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			m.ObserveHTTP(route, strconv.Itoa(sw.code()), time.Since(start))
		})
	}
}
