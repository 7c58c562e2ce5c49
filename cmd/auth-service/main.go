package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/pribylovaa/auth-session-service/internal/cache"
	"github.com/pribylovaa/auth-session-service/internal/config"
	"github.com/pribylovaa/auth-session-service/internal/metrics"
	"github.com/pribylovaa/auth-session-service/internal/password"
	"github.com/pribylovaa/auth-session-service/internal/pkg/log"
	"github.com/pribylovaa/auth-session-service/internal/pkg/redact"
	"github.com/pribylovaa/auth-session-service/internal/service"
	"github.com/pribylovaa/auth-session-service/internal/storage"
	"github.com/pribylovaa/auth-session-service/internal/storage/memory"
	"github.com/pribylovaa/auth-session-service/internal/storage/postgres"
	"github.com/pribylovaa/auth-session-service/internal/token"
	grpctransport "github.com/pribylovaa/auth-session-service/internal/transport/grpc"
	httptransport "github.com/pribylovaa/auth-session-service/internal/transport/http"
	"github.com/pribylovaa/auth-session-service/internal/transport/http/handlers"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	// .env необязателен: в контейнере переменные приходят из окружения.
	_ = godotenv.Load()

	cfg := config.MustLoad(configPath)

	lg := setupLogger(cfg.Log)
	slog.SetDefault(lg)
	lg.Info("starting application", slog.String("env", cfg.Env))

	if cfg.Cache.RevocationTTL < cfg.Auth.RefreshTokenTTL {
		lg.Warn("revocation_ttl_shorter_than_refresh_ttl",
			slog.Duration("revocation_ttl", cfg.Cache.RevocationTTL),
			slog.Duration("refresh_ttl", cfg.Auth.RefreshTokenTTL),
		)
	}

	// Корневой контекст по сигналам.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	if err := run(rootCtx, cfg, lg); err != nil {
		lg.Error("service_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}

	lg.Info("service_stopped")
}

func run(ctx context.Context, cfg *config.Config, lg *slog.Logger) error {
	str, err := openStorage(ctx, cfg.DB, lg)
	if err != nil {
		return err
	}
	defer str.Close()

	connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
	rc, err := cache.NewRedis(connCtx, cfg.Cache.RedisURL)
	connCancel()
	if err != nil {
		return fmt.Errorf("redis connect: %w", err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			lg.Warn("redis_close_failed", slog.String("err", err.Error()))
		}
	}()
	lg.Info("redis_connected")

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	svc := service.New(str, rc, hasher, token.NewIssuer(cfg.Auth), cfg.Cache, service.WithMetrics(m))
	lg.Info("service_initialized")

	if cfg.Bootstrap.Enabled() {
		if err := bootstrapUser(ctx, svc, cfg.Bootstrap, lg); err != nil {
			return err
		}
	}

	router := httptransport.NewRouter(svc, httptransport.Options{
		Logger:  lg,
		Timeout: cfg.Timeouts.Service,
		Metrics: m,
		Checks: map[string]handlers.Pinger{
			"storage": str,
			"cache":   rc,
		},
		MetricsHandler: promhttp.Handler(),
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 2)
	go func() {
		lg.Info("http_listen_start", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrCh <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var grpcSrv *grpctransport.Server
	if cfg.GRPC.Enabled() {
		grpcSrv, err = startGRPC(ctx, cfg.GRPC, cfg.Timeouts.Service, lg, map[string]grpctransport.Pinger{
			"storage": str,
			"cache":   rc,
		}, serveErrCh)
		if err != nil {
			_ = httpSrv.Close()
			return err
		}
	}

	// Ожидание сигнала завершения или фатальной ошибки сервера.
	var serveErr error
	select {
	case <-ctx.Done():
		lg.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
	}

	// Graceful stop с таймаутом.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
	defer shutdownCancel()

	if grpcSrv != nil {
		stopGRPC(shutdownCtx, grpcSrv, lg)
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http_force_stop", slog.String("err", err.Error()))
		_ = httpSrv.Close()
	}
	lg.Info("http_stopped")

	return serveErr
}

// startGRPC поднимает health-сервер и фоновые пробы зависимостей.
// Ошибка Serve уходит в errCh.
func startGRPC(
	ctx context.Context,
	cfg config.GRPCConfig,
	timeout time.Duration,
	lg *slog.Logger,
	checks map[string]grpctransport.Pinger,
	errCh chan<- error,
) (*grpctransport.Server, error) {
	lis, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", cfg.Addr(), err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	srv := grpctransport.NewServer(lg, timeout, checks)

	go srv.RunProbes(log.Into(ctx, lg), cfg.ProbeInterval)
	go func() {
		lg.Info("grpc_listen_start", slog.String("addr", cfg.Addr()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	return srv, nil
}

// stopGRPC снимает SERVING и останавливает сервер, по таймауту - принудительно.
func stopGRPC(ctx context.Context, srv *grpctransport.Server, lg *slog.Logger) {
	srv.Shutdown()

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		lg.Info("grpc_stopped")
	case <-ctx.Done():
		lg.Warn("grpc_force_stop")
		srv.Stop()
	}
}

// openStorage подключает хранилище учётных записей по cfg.Driver.
func openStorage(ctx context.Context, cfg config.DBConfig, lg *slog.Logger) (storage.Storage, error) {
	if cfg.Driver == config.DriverMemory {
		lg.Warn("memory_storage_in_use")
		return memory.New(), nil
	}

	dbCtx, dbCancel := context.WithTimeout(ctx, 10*time.Second)
	defer dbCancel()

	str, err := postgres.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	lg.Info("postgres_connected")

	if cfg.Migrate {
		if err := str.Migrate(dbCtx); err != nil {
			str.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		lg.Info("postgres_migrated")
	}

	return str, nil
}

// bootstrapUser создаёт начального пользователя, если его ещё нет.
func bootstrapUser(ctx context.Context, svc *service.Service, b config.BootstrapConfig, lg *slog.Logger) error {
	ctx = log.Into(ctx, lg)

	created, err := svc.EnsureUser(ctx, b.Username, b.Email, b.Password)
	if err != nil {
		return fmt.Errorf("bootstrap user: %w", err)
	}

	if created {
		lg.Info("bootstrap_user_created", slog.String("username", redact.Username(b.Username)))
	} else {
		lg.Info("bootstrap_user_exists", slog.String("username", redact.Username(b.Username)))
	}

	return nil
}

// setupLogger настраивает slog по параметрам профиля окружения.
func setupLogger(cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
