// metrics - Prometheus-коллекторы сервиса.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты обращения к кэшу профилей.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics хранит коллекторы. Nil-получатель допустим: все методы становятся no-op.
type Metrics struct {
	operations   *prometheus.CounterVec
	profileCache *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New регистрирует коллекторы в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "operations_total",
			Help:      "Auth operations by name and result kind.",
		}, []string{"op", "result"}),
		profileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "profile_cache_total",
			Help:      "Profile cache lookups by result.",
		}, []string{"result"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}

	reg.MustRegister(m.operations, m.profileCache, m.httpDuration)

	return m
}

// Operation учитывает завершение операции координатора.
func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// ProfileCache учитывает обращение к кэшу профилей.
func (m *Metrics) ProfileCache(result string) {
	if m == nil {
		return
	}
	m.profileCache.WithLabelValues(result).Inc()
}

// ObserveHTTP учитывает длительность HTTP-запроса.
func (m *Metrics) ObserveHTTP(route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, code).Observe(d.Seconds())
}
