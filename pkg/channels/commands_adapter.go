package channels

import (
	"sort"

	"ongoing/pkg/commands"
)

// statusView exposes the manager's connections to the command surface and
// the gateway, ordered by ID so status output is stable between calls.
type statusView struct {
	manager *Manager
}

func newCommandChannelAdapter(manager *Manager) commands.ChannelManager {
	return &statusView{manager: manager}
}

func (v *statusView) GetEnabledChannels() []commands.Channel {
	enabled := v.manager.GetEnabledChannels()
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].ID() < enabled[j].ID() })

	result := make([]commands.Channel, len(enabled))
	for i, ch := range enabled {
		result[i] = ch
	}
	return result
}
