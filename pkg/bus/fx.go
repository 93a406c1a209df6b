package bus

import (
	"context"

	"go.uber.org/fx"

	"ongoing/pkg/config"
	"ongoing/pkg/logger"
)

// Module is the fx module for the message bus.
var Module = fx.Module("bus",
	fx.Provide(NewMessageBus),
)

// NewMessageBus creates the configured bus and ties it to the app lifecycle.
func NewMessageBus(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (Bus, error) {
	b, err := FromConfig(log, cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return b.Start()
		},
		OnStop: func(ctx context.Context) error {
			return b.Stop()
		},
	})

	return b, nil
}
