package state

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"ongoing/pkg/config"
	"ongoing/pkg/logger"
)

// Module is the fx module for state management.
var Module = fx.Module("state",
	fx.Provide(NewKVStore),
)

// ConfigFromApp maps the application config onto a state Config.
func ConfigFromApp(cfg *config.Config) *Config {
	dir := cfg.DataDir()
	return &Config{
		Backend:       BackendType(strings.ToLower(strings.TrimSpace(cfg.Store.Backend))),
		FilePath:      filepath.Join(dir, "rules.json"),
		DBPath:        filepath.Join(dir, "ongoing.db"),
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   cfg.Store.Prefix,
	}
}

// NewKVStore creates a new KV store for fx.
func NewKVStore(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (KV, error) {
	stateConfig := ConfigFromApp(cfg)

	store, err := NewKV(log, stateConfig)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("State store initialized", zap.String("backend", string(stateConfig.Backend)))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})

	return store, nil
}
