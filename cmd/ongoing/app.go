package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"ongoing/pkg/admin"
	"ongoing/pkg/bus"
	"ongoing/pkg/channels"
	"ongoing/pkg/commands"
	"ongoing/pkg/config"
	"ongoing/pkg/cron"
	"ongoing/pkg/dispatch"
	"ongoing/pkg/gateway"
	"ongoing/pkg/logger"
	"ongoing/pkg/monitor"
	"ongoing/pkg/rules"
	"ongoing/pkg/state"
)

// storeModules are enough to read and edit the rule set.
func storeModules() fx.Option {
	return fx.Options(
		fx.Supply(config.NewLoaderWithPath(configPath)),
		config.Module,
		logger.Module,
		state.Module,
		rules.Module,
	)
}

// daemonOptions assemble the full daemon.
func daemonOptions() fx.Option {
	return fx.Options(
		storeModules(),
		config.WatcherModule,
		bus.Module,
		dispatch.Module,
		monitor.Module,
		admin.Module,
		channels.Module,
		commands.Module,
		commands.BusModule,
		cron.Module,
		gateway.Module,
	)
}

// quietLogs keeps log lines off the console so command output stays
// readable. The log file still receives them.
var quietLogs = fx.Decorate(func(cfg *logger.Config) *logger.Config {
	quiet := *cfg
	quiet.Quiet = true
	return &quiet
})

// withCLIApp starts a short-lived app for one-shot commands, populating
// targets, and returns a cleanup function.
func withCLIApp(targets ...interface{}) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app := fx.New(
		storeModules(),
		admin.Module,
		commands.Module,
		quietLogs,
		fx.Populate(targets...),
		fx.NopLogger,
	)

	if err := app.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting app: %w", err)
	}

	cleanup := func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}
	return cleanup, nil
}
