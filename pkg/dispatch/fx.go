package dispatch

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"ongoing/pkg/bus"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
)

// Module provides the Dispatcher.
var Module = fx.Module("dispatch",
	fx.Provide(ProvideDispatcher),
	fx.Invoke(registerReload),
)

// ProvideDispatcher builds the Dispatcher from the monitor config.
func ProvideDispatcher(log *logger.Logger, b bus.Bus, cfg *config.Config) (*Dispatcher, error) {
	return New(log, b, cfg.Monitor.RequestTemplate)
}

type reloadParams struct {
	fx.In

	Log        *logger.Logger
	Dispatcher *Dispatcher
	Watcher    *config.Watcher `optional:"true"`
}

// registerReload applies a changed request template without a restart.
func registerReload(p reloadParams) {
	if p.Watcher == nil {
		return
	}
	p.Watcher.AddHandler(func(cfg *config.Config) error {
		if cfg.Monitor.RequestTemplate == p.Dispatcher.Template() {
			return nil
		}
		if err := p.Dispatcher.SetTemplate(cfg.Monitor.RequestTemplate); err != nil {
			return err
		}
		p.Log.Info("Request template updated", zap.String("template", cfg.Monitor.RequestTemplate))
		return nil
	})
}
