// Package backend builds the store, cache and event publisher selected by
// configuration. Both binaries share it.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mobilehouse/backend/internal/cache"
	"mobilehouse/backend/internal/config"
	"mobilehouse/backend/internal/events"
	"mobilehouse/backend/internal/store"
	"mobilehouse/backend/internal/store/memory"
	pgstore "mobilehouse/backend/internal/store/postgres"
	sqlitestore "mobilehouse/backend/internal/store/sqlite"
)

// Closer releases a resource opened by this package.
type Closer func() error

type Stack struct {
	Repo      store.Repository
	Cache     cache.DashboardCache
	Publisher events.Publisher
	closers   []Closer
}

// Close releases resources in reverse opening order and joins the errors.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Open builds the repository, dashboard cache and publisher for cfg. The
// repository is mandatory; an unreachable redis falls back to an in-process
// cache and an unreachable broker disables event publishing.
func Open(ctx context.Context, cfg config.Config) (*Stack, error) {
	stack := &Stack{}

	repo, closeRepo, err := OpenRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	stack.Repo = repo
	if closeRepo != nil {
		stack.closers = append(stack.closers, closeRepo)
	}

	dashboards, closeCache := OpenCache(ctx, cfg)
	stack.Cache = dashboards
	if closeCache != nil {
		stack.closers = append(stack.closers, closeCache)
	}

	publisher, closePublisher := OpenPublisher(ctx, cfg)
	stack.Publisher = publisher
	if closePublisher != nil {
		stack.closers = append(stack.closers, closePublisher)
	}

	return stack, nil
}

func OpenRepository(ctx context.Context, cfg config.Config) (store.Repository, Closer, error) {
	switch cfg.DataBackend {
	case config.BackendPostgres:
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		slog.InfoContext(ctx, "repository ready", "backend", config.BackendPostgres)
		return pg, pg.Close, nil
	case config.BackendSQLite:
		db, err := sqlitestore.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		slog.InfoContext(ctx, "repository ready", "backend", config.BackendSQLite, "path", cfg.SQLitePath)
		return db, db.Close, nil
	case config.BackendMemory:
		slog.InfoContext(ctx, "repository ready", "backend", config.BackendMemory, "shops", len(cfg.Shops))
		return memory.NewSeeded(cfg.Shops), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported data backend %q", cfg.DataBackend)
	}
}

func OpenCache(ctx context.Context, cfg config.Config) (cache.DashboardCache, Closer) {
	if cfg.RedisAddr == "" {
		slog.InfoContext(ctx, "dashboard cache ready", "backend", "memory")
		return cache.NewMemoryDashboardCache(), nil
	}

	redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisCache.Ping(ctx); err != nil {
		_ = redisCache.Close()
		slog.WarnContext(ctx, "redis unavailable, using in-process dashboard cache", "addr", cfg.RedisAddr, "error", err)
		return cache.NewMemoryDashboardCache(), nil
	}
	slog.InfoContext(ctx, "dashboard cache ready", "backend", "redis", "addr", cfg.RedisAddr)
	return redisCache, redisCache.Close
}

func OpenPublisher(ctx context.Context, cfg config.Config) (events.Publisher, Closer) {
	if cfg.AMQPURL == "" {
		return events.NoopPublisher{}, nil
	}

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		slog.WarnContext(ctx, "amqp unavailable, sale events disabled", "error", err)
		return events.NoopPublisher{}, nil
	}
	slog.InfoContext(ctx, "sale events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client, client.Close
}
