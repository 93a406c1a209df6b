package admin

import (
	"go.uber.org/fx"

	"ongoing/pkg/logger"
	"ongoing/pkg/monitor"
	"ongoing/pkg/rules"
)

// Module provides the admin Service for the daemon.
var Module = fx.Module("admin",
	fx.Provide(ProvideService),
)

type serviceParams struct {
	fx.In

	Log     *logger.Logger
	Store   *rules.Store
	Monitor *monitor.Monitor `optional:"true"`
}

// ProvideService builds the Service, attaching monitor stats when a
// monitor is part of the application.
func ProvideService(p serviceParams) *Service {
	var stats StatsProvider
	if p.Monitor != nil {
		stats = p.Monitor
	}
	return New(p.Log, p.Store, stats)
}
