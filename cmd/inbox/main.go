// Command inbox serves the marketplace message center.
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

	"github.com/marketplace/messagecenter/api"
	"github.com/marketplace/messagecenter/api/validator"
	"github.com/marketplace/messagecenter/config"
	"github.com/marketplace/messagecenter/inbox"
	"github.com/marketplace/messagecenter/postgres"
	"github.com/marketplace/messagecenter/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Exiting", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	if cfg.CreateSchema {
		if err := pg.CreateSchema(ctx); err != nil {
			return err
		}
		logger.Info("Created schema")
	}

	rdb, err := redis.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer rdb.Close()

	svc := inbox.NewService(logger.With("component", "inbox"), pg, rdb.Snapshots(logger.With("component", "redis"), pg, cfg.SnapshotTTL))
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: &api.API{
			Logger: logger.With("component", "api"),
			Inbox:  svc,
			Val:    validator.New(),
		},
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", cfg.HTTPAddr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
