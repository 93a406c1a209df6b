package config

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"ongoing/pkg/logger"
)

// Module provides configuration for fx dependency injection.
var Module = fx.Module("config",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLoggerConfig),
)

// ProvideConfig provides loaded and validated configuration from the loader.
// The loader itself is supplied by the caller so the CLI can honor -c.
func ProvideConfig(loader *Loader) (*Config, error) {
	cfg, err := loader.Load(loader.GetConfigPath())
	if err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ProvideLoggerConfig derives the logger settings from the loaded config.
func ProvideLoggerConfig(cfg *Config) *logger.Config {
	return cfg.Logger.ToLoggerConfig()
}

// WatcherModule adds config hot-reload. Only the daemon uses it.
var WatcherModule = fx.Module("config-watcher",
	fx.Provide(ProvideWatcher),
)

// ProvideWatcher provides a configuration watcher with hot-reload.
func ProvideWatcher(loader *Loader, cfg *Config, lc fx.Lifecycle, log *logger.Logger) *Watcher {
	watcher := NewWatcher(log, loader, cfg)

	watcher.AddHandler(func(newCfg *Config) error {
		log.Info("Configuration reloaded",
			zap.String("file", loader.GetConfigPath()),
			zap.String("request_template", newCfg.Monitor.RequestTemplate),
		)
		return nil
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting configuration watcher")
			return watcher.Start()
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			return nil
		},
	})

	return watcher
}
