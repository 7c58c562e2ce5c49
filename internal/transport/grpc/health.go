// grpc поднимает gRPC-сервер со стандартным сервисом grpc.health.v1.
// Статус SERVING выставляется, только пока хранилище и кэш отвечают на Ping;
// бизнес-операции доступны через HTTP-транспорт.
package grpc

import (
	"context"
	"log/slog"
	"sort"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/pribylovaa/auth-session-service/internal/pkg/log"
)

// ServiceName - имя сервиса в grpc.health.v1 наряду с общим "".
const ServiceName = "auth.AuthService"

// Pinger - зависимость, доступность которой определяет статус health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server - gRPC-сервер с health-сервисом и пробами зависимостей.
type Server struct {
	*grpc.Server

	health *health.Server
	checks map[string]Pinger
	names  []string
}

// NewServer собирает gRPC-сервер: Logging -> Recover -> Timeout -> prometheus.
// Начальный статус - NOT_SERVING до первой успешной пробы.
// Счётчики grpc_server_* регистрируются в prometheus.DefaultRegisterer.
func NewServer(lg *slog.Logger, timeout time.Duration, checks map[string]Pinger) *Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			UnaryLogging(lg),
			UnaryRecover(),
			UnaryTimeout(timeout),
			grpc_prometheus.UnaryServerInterceptor,
		),
		grpc.ChainStreamInterceptor(
			grpc_prometheus.StreamServerInterceptor,
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	grpc_prometheus.Register(gs)

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &Server{Server: gs, health: hs, checks: checks, names: names}
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)

	return s
}

// Probe опрашивает зависимости и обновляет статус. Возвращает true, если все живы.
func (s *Server) Probe(ctx context.Context) bool {
	ok := true

	for _, name := range s.names {
		if err := s.checks[name].Ping(ctx); err != nil {
			log.From(ctx).Warn("health_probe_failed",
				slog.String("dependency", name),
				slog.String("err", err.Error()),
			)
			ok = false
		}
	}

	if ok {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
	} else {
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	}

	return ok
}

// RunProbes выполняет Probe сразу и затем каждые period до отмены ctx.
// Каждая проба ограничена period.
func (s *Server) RunProbes(ctx context.Context, period time.Duration) {
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, period)
		defer cancel()
		s.Probe(pctx)
	}

	probe()

	t := time.NewTicker(period)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			probe()
		}
	}
}

// Shutdown переводит health в NOT_SERVING, чтобы балансировщик снял трафик.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
