package channels

import (
	"fmt"
	"time"

	"ongoing/pkg/bus"
	ircchannel "ongoing/pkg/channels/irc"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
)

// IRCOptions derives the shared connection options from the config.
func IRCOptions(cfg *config.Config, monitored ircchannel.ChannelLookup) ircchannel.Options {
	return ircchannel.Options{
		ReconnectDelay: time.Duration(cfg.IRC.ReconnectSeconds) * time.Second,
		ReadTimeout:    time.Duration(cfg.IRC.TimeoutSeconds) * time.Second,
		CommandPrefix:  cfg.Admin.CommandPrefix,
		CommandName:    cfg.Monitor.CommandName,
		AllowFrom:      cfg.Admin.AllowFrom,
		Monitored:      monitored,
	}
}

// BuildIRCChannels creates one channel per enabled server.
func BuildIRCChannels(
	log *logger.Logger,
	messageBus bus.Bus,
	cfg *config.Config,
	monitored ircchannel.ChannelLookup,
) ([]*ircchannel.Channel, error) {
	opts := IRCOptions(cfg, monitored)

	servers := cfg.EnabledServers()
	result := make([]*ircchannel.Channel, 0, len(servers))
	for _, srv := range servers {
		ch, err := ircchannel.NewChannel(log, srv, opts, messageBus)
		if err != nil {
			return nil, fmt.Errorf("irc server %s: %w", srv.Name, err)
		}
		result = append(result, ch)
	}
	return result, nil
}
