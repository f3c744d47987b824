package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hyperengineering/recollect/internal/config"
	"github.com/hyperengineering/recollect/internal/service"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	configPath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "recollect",
	Short:         "Recollect - conversation memory service",
	Long:          "Index exported chat conversations per user and retrieve the most similar past prompts.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file path (overrides RECOLLECT_CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(bundleCmd)
}

// loadConfig reads configuration from --config when given, otherwise from
// the default search path.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.Load()
}

// newLogger builds the process logger in the configured format and level.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}
	if cfg.Log.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openRuntime loads configuration and opens the service stack for a one-shot
// command. Logs go to the command's stderr.
func openRuntime(ctx context.Context, cmd *cobra.Command) (*service.Runtime, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	rt, err := service.Open(ctx, cfg, newLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return nil, err
	}
	return rt, nil
}
