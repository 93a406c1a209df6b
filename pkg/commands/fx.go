package commands

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ongoing/pkg/admin"
	"ongoing/pkg/bus"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
)

// Module provides the command registry with builtins and the rule command.
var Module = fx.Module("commands",
	fx.Provide(ProvideRegistry),
)

// BusModule subscribes the registry to admin commands arriving over IRC.
var BusModule = fx.Module("commands-bus",
	fx.Provide(NewBusHandler),
	fx.Invoke(subscribe),
)

type registryParams struct {
	fx.In

	Log      *logger.Logger
	Config   *config.Config
	Admin    *admin.Service
	Channels ChannelManager `optional:"true"`
}

// ProvideRegistry builds a Registry with every command registered.
func ProvideRegistry(p registryParams) (*Registry, error) {
	registry := NewRegistry()
	if err := RegisterBuiltinCommands(registry, p.Channels); err != nil {
		p.Log.Error("Failed to register builtin commands", zap.Error(err))
		return nil, err
	}
	if err := registry.Register(OngoingCommand(p.Config.Monitor.CommandName, p.Admin)); err != nil {
		p.Log.Error("Failed to register rule command", zap.Error(err))
		return nil, err
	}

	p.Log.Info("Registered commands", zap.Int("count", len(registry.List())))
	return registry, nil
}

func subscribe(b bus.Bus, h *BusHandler) {
	b.RegisterInboundHandler(h.HandleMessage)
}
