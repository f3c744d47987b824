package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperengineering/recollect/internal/api"
	"github.com/hyperengineering/recollect/internal/config"
	"github.com/hyperengineering/recollect/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	slog.Info("configuration loaded", "level", cfg.Log.Level, "format", cfg.Log.Format)

	return serve(ctx, cfg)
}

// serve runs the HTTP server until ctx is cancelled or the listener fails,
// then drains in-flight requests and closes the service.
func serve(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt, err := service.Open(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}

	handler := api.NewHandler(rt, cfg.Auth.APIKey, Version, cfg.Server.MaxBodyBytes,
		api.WithMaxTopK(cfg.Search.MaxTopK))
	router := api.NewRouter(handler)
	slog.Info("router initialized", "auth", cfg.Auth.APIKey != "")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "address", addr)
		// ErrServerClosed is the expected result of Shutdown.
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			serveErr <- err
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown initiated")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout))
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Store closes last so draining requests can still reach it.
	if err := rt.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("shutdown complete")

	select {
	case err := <-serveErr:
		return err
	default:
		return nil
	}
}
