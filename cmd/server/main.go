package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mobilehouse/backend/internal/backend"
	"mobilehouse/backend/internal/config"
	"mobilehouse/backend/internal/httpapi"
	"mobilehouse/backend/internal/service"
	"mobilehouse/backend/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		slog.Error("refusing to start", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(cfg config.Config) error {
	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stack, err := backend.Open(startCtx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			slog.Warn("close error", "error", err)
		}
	}()

	svc := service.New(stack.Repo, service.Options{
		Cache:    stack.Cache,
		CacheTTL: cfg.DashboardCacheTTL,
		Events:   stack.Publisher,
		Shops:    cfg.Shops,
		Location: cfg.Location(),
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, stack.Repo)
	if err := auth.EnsureAdmin(startCtx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := newServer(cfg, api.Handler())

	errCh := make(chan error, 1)
	go func() {
		slog.Info("sales backend listening", "addr", server.Addr, "backend", cfg.DataBackend, "timezone", cfg.Timezone)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func newServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
