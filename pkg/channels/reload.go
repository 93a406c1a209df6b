package channels

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"ongoing/pkg/bus"
	ircchannel "ongoing/pkg/channels/irc"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
)

// ApplyServers brings the running connections in line with cfg after a
// config reload. Servers whose settings changed are reconnected, new ones
// are started, removed or disabled ones are stopped. Unchanged servers
// keep their connection and only pick up the new admin allow-list.
func ApplyServers(
	m *Manager,
	log *logger.Logger,
	messageBus bus.Bus,
	cfg *config.Config,
	monitored ircchannel.ChannelLookup,
) error {
	wanted, err := BuildIRCChannels(log, messageBus, cfg, monitored)
	if err != nil {
		return err
	}

	var errs []error
	keep := make(map[string]bool, len(wanted))
	for _, next := range wanted {
		id := next.ID()
		keep[id] = true

		if current, err := m.GetChannel(id); err == nil {
			if running, ok := current.(*ircchannel.Channel); ok && sameSettings(running, next) {
				running.SetAllowFrom(cfg.Admin.AllowFrom)
				continue
			}
		}

		if err := m.ReloadChannel(next); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}

	for _, ch := range m.ListChannels() {
		if keep[ch.ID()] {
			continue
		}
		log.Info("IRC server removed from config", zap.String("id", ch.ID()))
		if err := m.StopChannel(ch.ID()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.ID(), err))
		}
	}

	return errors.Join(errs...)
}

// sameSettings ignores the allow-list, which is swapped in place.
func sameSettings(a, b *ircchannel.Channel) bool {
	aCfg, aOpts := a.Settings()
	bCfg, bOpts := b.Settings()
	return reflect.DeepEqual(aCfg, bCfg) &&
		aOpts.ReconnectDelay == bOpts.ReconnectDelay &&
		aOpts.ReadTimeout == bOpts.ReadTimeout &&
		aOpts.CommandPrefix == bOpts.CommandPrefix &&
		aOpts.CommandName == bOpts.CommandName
}
