package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/apicalculator/internal/cache"
	"github.com/xela07ax/apicalculator/internal/calculator"
	"github.com/xela07ax/apicalculator/internal/console/handler"
	"github.com/xela07ax/apicalculator/internal/console/server"
	"github.com/xela07ax/apicalculator/internal/console/service"
	"github.com/xela07ax/apicalculator/internal/infra"
	"github.com/xela07ax/apicalculator/internal/infra/auth"
	"github.com/xela07ax/apicalculator/internal/repository/memory"
	"github.com/xela07ax/apicalculator/internal/repository/postgres"
)

// userStore дополнительно умеет Ping, его проверяет readiness.
type userStore interface {
	service.UserRepository
	server.Pinger
}

type stores struct {
	users   userStore
	history service.HistoryStore
	close   func() error
}

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("apicalculator stopped", zap.Error(err))
	}
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	appCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	// 2. Health переходит в SERVING, когда хранилище отвечает
	health := server.NewHealthServer(logger)
	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		if err := health.Serve(grpcLis); err != nil {
			logger.Error("grpc health server", zap.Error(err))
		}
	}()
	defer health.Stop()

	// 3. Хранилище
	st, err := openStores(appCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = st.close() }()

	history := st.history
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer func() { _ = rdb.Close() }()
		history = cache.NewHistoryCache(history, rdb, cfg.Redis.HistoryTTL, logger, metrics)
		logger.Info("history cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.HistoryTTL))
	}
	if err := health.Ready(appCtx, st.users); err != nil {
		return fmt.Errorf("store not ready: %w", err)
	}

	// 4. Токены
	tokenOpts := auth.Options{Secret: []byte(cfg.Auth.Secret), Issuer: cfg.Auth.Issuer, Audience: cfg.Auth.Audience}
	issuer, err := auth.NewIssuer(tokenOpts)
	if err != nil {
		return err
	}
	validator, err := auth.NewBaseValidator(tokenOpts)
	if err != nil {
		return err
	}

	// 5. Сервисы и HTTP
	authSvc := service.NewAuthService(st.users, issuer, cfg.Auth.BcryptCost, logger, metrics)
	opsSvc := service.NewOperationsService(calculator.New(), history, logger, metrics)

	api := server.NewAPIServer(cfg.Auth, logger, metrics, validator,
		handler.NewAuthHandler(authSvc),
		handler.NewOperationsHandler(opsSvc),
	)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	go func() {
		logger.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	// 6. Graceful shutdown
	select {
	case <-appCtx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	health.SetServing(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	_ = metricsSrv.Shutdown(shutdownCtx)
	logger.Info("exited properly")
	return nil
}

func openStores(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (*stores, error) {
	if cfg.Database.Driver == infra.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return &stores{
			users:   memory.NewUserRepo(),
			history: memory.NewHistoryRepo(),
			close:   func() error { return nil },
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database, logger.Named("postgres"))
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("migrations applied")
	}
	return &stores{
		users:   postgres.NewUserRepo(db),
		history: postgres.NewHistoryRepo(db),
		close:   db.Close,
	}, nil
}
