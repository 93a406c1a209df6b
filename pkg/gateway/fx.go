package gateway

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"ongoing/pkg/admin"
	"ongoing/pkg/commands"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
)

// Module provides the gateway server for fx dependency injection.
var Module = fx.Module("gateway",
	fx.Provide(provideServer),
	fx.Invoke(registerLifecycle),
)

type serverParams struct {
	fx.In

	Config   *config.Config
	Log      *logger.Logger
	Admin    *admin.Service
	Registry *commands.Registry
	Channels commands.ChannelManager `optional:"true"`
}

func provideServer(p serverParams) *Server {
	return NewServer(p.Config, p.Log, p.Admin, p.Registry, p.Channels)
}

func registerLifecycle(lc fx.Lifecycle, s *Server, cfg *config.Config, log *logger.Logger) {
	if !cfg.Gateway.Enabled {
		log.Info("Gateway disabled in config")
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting HTTP gateway",
				zap.String("host", cfg.Gateway.Host),
				zap.Int("port", cfg.Gateway.Port),
			)
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.Stop(shutdownCtx)
		},
	})
}
