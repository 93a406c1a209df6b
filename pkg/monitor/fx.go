package monitor

import (
	"go.uber.org/fx"

	"ongoing/pkg/bus"
	"ongoing/pkg/dispatch"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
)

// Module provides the Monitor and subscribes it to inbound messages.
var Module = fx.Module("monitor",
	fx.Provide(ProvideMonitor),
	fx.Invoke(Subscribe),
)

// ProvideMonitor builds the Monitor.
func ProvideMonitor(log *logger.Logger, store *rules.Store, matcher *rules.Matcher, d *dispatch.Dispatcher) *Monitor {
	return New(log, store, matcher, d)
}

// Subscribe registers the Monitor as an inbound bus handler.
func Subscribe(b bus.Bus, m *Monitor) {
	b.RegisterInboundHandler(m.HandleMessage)
}
