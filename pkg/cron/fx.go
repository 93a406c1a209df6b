package cron

import (
	"context"
	"strings"

	"go.uber.org/fx"

	"ongoing/pkg/admin"
	"ongoing/pkg/config"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
)

// Module is the fx module for cron.
var Module = fx.Module("cron",
	fx.Provide(NewManager),
	fx.Invoke(func(*Manager) {}),
)

// NewManager creates the cron manager with the jobs enabled in config.
func NewManager(
	lc fx.Lifecycle,
	log *logger.Logger,
	cfg *config.Config,
	svc *admin.Service,
	store *rules.Store,
) (*Manager, error) {
	manager := New(log)

	if schedule := strings.TrimSpace(cfg.Cron.StatsSchedule); schedule != "" {
		if _, err := manager.AddJob(JobStats, schedule, StatsTask(log, svc)); err != nil {
			return nil, err
		}
	}
	if schedule := strings.TrimSpace(cfg.Cron.BackupSchedule); schedule != "" {
		path := config.ExpandPath(cfg.Cron.BackupPath)
		if _, err := manager.AddJob(JobBackup, schedule, BackupTask(log, store, path)); err != nil {
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return manager.Start()
		},
		OnStop: func(ctx context.Context) error {
			return manager.Stop()
		},
	})

	return manager, nil
}
