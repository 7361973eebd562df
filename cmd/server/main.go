package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mcoot/tablebank/internal/api"
	"github.com/mcoot/tablebank/internal/config"
	"github.com/mcoot/tablebank/internal/factory"
)

// hubCleanupInterval is how often SSE hubs with no observers are dropped
const hubCleanupInterval = time.Minute

// flagKeys maps command-line flags to configuration keys
var flagKeys = map[string]string{
	"host":      "server.host",
	"port":      "server.port",
	"log-level": "log.level",
	"storage":   "storage.type",
	"redis-url": "storage.redis.url",
	"undo-mode": "ledger.undo_mode",
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile, envFile string

	rootCmd := &cobra.Command{
		Use:   "tablebank",
		Short: "Shared bank server for tabletop games",
		Long: `tablebank keeps the money for a tabletop game. Players connect over
WebSocket, the host starts the game, and every balance change is recorded in
an undoable ledger that all players see in real time.

Configuration is read from tablebank.toml, then .env, then TABLEBANK_*
environment variables, then flags.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v, configFile, envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", "", "Config file (default ./tablebank.toml if present)")
	flags.StringVar(&envFile, "env-file", "", "Env file (default ./.env if present)")
	flags.String("host", "", "Listen host")
	flags.Int("port", 8080, "Listen port")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("storage", config.StorageTypeMemory, "Storage backend: memory, redis")
	flags.String("redis-url", "", "Redis URL, used with --storage redis")
	flags.String("undo-mode", "", "Undo mode: inverse, replay")

	return rootCmd
}

// loadConfig binds the flags that were set and reads the layered configuration
func loadConfig(cmd *cobra.Command, v *viper.Viper, configFile, envFile string) (*config.Config, error) {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return config.Load(v, configFile, envFile)
}

func serve(ctx context.Context, cfg *config.Config) error {
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	app, err := factory.New(factory.FromConfig(cfg, logger))
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		app.Dispatcher.Run(ctx)
	}()
	go app.HubManager.RunCleanup(ctx, hubCleanupInterval)

	server := api.NewServer(app.Router(ctx), cfg.Server, logger)
	logger.Info("server configured",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage.Type),
		slog.String("undo_mode", cfg.Ledger.UndoMode))

	if err := server.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}

	<-dispatcherDone
	logger.Info("server stopped")
	return nil
}
