package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ongoing/pkg/channels"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Connect to the configured IRC servers, watch the monitored channel and
request matching packs. Stop with Ctrl+C.

To install as a system service, use: ongoing service install`,
	Run: func(cmd *cobra.Command, args []string) {
		runForeground()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runForeground runs the daemon until interrupted.
func runForeground() {
	app := fx.New(
		daemonOptions(),
		fx.Invoke(logStartup),
		fx.NopLogger,
	)

	// Run blocks until SIGINT or SIGTERM.
	app.Run()
}

func logStartup(lc fx.Lifecycle, log *logger.Logger, cm *channels.Manager, cfg *config.Config, store *rules.Store) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			channel, err := store.Channel(ctx)
			if err != nil {
				log.Warn("Could not read monitored channel", zap.Error(err))
			}
			log.Info("ongoing started",
				zap.String("channel", channel),
				zap.String("store", cfg.Store.Backend),
				zap.String("bus", cfg.Bus.Type))

			enabled := cm.GetEnabledChannels()
			if len(enabled) == 0 {
				log.Warn("No IRC servers enabled; nothing will be monitored")
				return nil
			}
			names := make([]string, len(enabled))
			for i, ch := range enabled {
				names[i] = ch.Name()
			}
			log.Info("Active connections", zap.Strings("servers", names))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("ongoing stopped")
			return nil
		},
	})
}
