package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mobilehouse/backend/internal/backend"
	"mobilehouse/backend/internal/config"
	"mobilehouse/backend/internal/events"
	"mobilehouse/backend/internal/service"
	"mobilehouse/backend/internal/warmer"
	"mobilehouse/backend/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := validate(cfg); err != nil {
		slog.Error("refusing to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("dashboard warmer stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("dashboard warmer stopped")
}

// validate applies the server rules minus the auth secret, which the warmer
// never uses, and requires the broker and a shared cache.
func validate(cfg config.Config) error {
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "unused-by-the-dashboard-warmer-process"
	}
	var problems []error
	if err := cfg.Validate(); err != nil {
		problems = append(problems, err)
	}
	if cfg.AMQPURL == "" {
		problems = append(problems, errors.New("AMQP_URL is required"))
	}
	if cfg.RedisAddr == "" {
		problems = append(problems, errors.New("REDIS_ADDR is required so warmed dashboards are shared"))
	}
	if cfg.DataBackend == config.BackendMemory {
		problems = append(problems, errors.New("DATA_BACKEND=memory is process local and cannot be warmed"))
	}
	return errors.Join(problems...)
}

func run(ctx context.Context, cfg config.Config) error {
	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	repo, closeRepo, err := backend.OpenRepository(startCtx, cfg)
	if err != nil {
		return err
	}
	if closeRepo != nil {
		defer closeRepo()
	}

	dashboards, closeCache := backend.OpenCache(startCtx, cfg)
	if closeCache != nil {
		defer closeCache()
	}

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	svc := service.New(repo, service.Options{
		Cache:    dashboards,
		CacheTTL: cfg.DashboardCacheTTL,
		Shops:    cfg.Shops,
		Location: cfg.Location(),
	})
	w := warmer.New(svc)

	if err := w.Warm(startCtx, svc.Today()); err != nil {
		slog.WarnContext(ctx, "initial dashboard warm failed", "error", err)
	}
	go w.Run(ctx, cfg.WarmInterval)

	slog.InfoContext(ctx, "dashboard warmer started", "queue", cfg.AMQPQueue, "interval", cfg.WarmInterval)
	return client.ConsumeSaleRecorded(ctx, w.HandleSaleRecorded)
}
