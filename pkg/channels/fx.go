package channels

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"ongoing/pkg/admin"
	"ongoing/pkg/bus"
	ircchannel "ongoing/pkg/channels/irc"
	"ongoing/pkg/commands"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
)

// Module is the fx module for channels.
var Module = fx.Module("channels",
	fx.Provide(NewChannelManager),
	fx.Provide(
		fx.Annotate(
			newCommandChannelAdapter,
			fx.As(new(commands.ChannelManager)),
		),
	),
	fx.Invoke(RegisterChannels),
)

// NewChannelManager creates a new channel manager for fx.
func NewChannelManager(lc fx.Lifecycle, log *logger.Logger, messageBus bus.Bus) *Manager {
	manager := NewManager(log, messageBus)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return manager.Start()
		},
		OnStop: func(ctx context.Context) error {
			return manager.Stop()
		},
	})

	return manager
}

type registerParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Manager   *Manager
	Log       *logger.Logger
	Bus       bus.Bus
	Config    *config.Config
	Store     *rules.Store
	Admin     *admin.Service  `optional:"true"`
	Watcher   *config.Watcher `optional:"true"`
}

// RegisterChannels registers one IRC channel per enabled server, keeps
// every connection in the monitored channel and applies irc and admin
// changes from config reloads.
func RegisterChannels(p registerParams) error {
	ircChannels, err := BuildIRCChannels(p.Log, p.Bus, p.Config, p.Store.Channel)
	if err != nil {
		return err
	}
	for _, ch := range ircChannels {
		if err := p.Manager.Register(ch); err != nil {
			return err
		}
	}

	interval := time.Duration(p.Config.Monitor.ChannelPollSeconds) * time.Second
	follower := NewFollower(p.Log, p.Manager, p.Store.Channel, interval)
	p.Lifecycle.Append(fx.Hook{
		OnStart: follower.Start,
		OnStop: func(ctx context.Context) error {
			follower.Stop()
			return nil
		},
	})

	if p.Admin != nil {
		p.Admin.OnChannelChange(func(_ context.Context, channel string) error {
			return follower.Observe(channel)
		})
	}

	if p.Watcher != nil {
		p.Watcher.AddHandler(func(cfg *config.Config) error {
			if err := ApplyServers(p.Manager, p.Log, p.Bus, cfg, p.Store.Channel); err != nil {
				p.Log.Error("Failed to apply irc config", zap.Error(err))
				return err
			}
			p.Log.Info("IRC config applied",
				zap.Int("servers", len(cfg.EnabledServers())),
				zap.Int("admin_nicks", len(cfg.Admin.AllowFrom)))
			return nil
		})
	}

	return nil
}

var _ Channel = (*ircchannel.Channel)(nil)
