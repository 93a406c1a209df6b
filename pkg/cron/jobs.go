package cron

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ongoing/pkg/admin"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
)

const (
	// JobStats logs the dispatch counters.
	JobStats = "stats-report"
	// JobBackup writes a YAML export of the rule set.
	JobBackup = "rules-backup"
)

// StatsTask logs the rule counts and dispatch counters.
func StatsTask(log *logger.Logger, svc *admin.Service) Task {
	return func(ctx context.Context) error {
		st, err := svc.Stats(ctx)
		if err != nil {
			return fmt.Errorf("read stats: %w", err)
		}
		fields := []zap.Field{
			zap.String("channel", st.Channel),
			zap.Int("bots", st.Bots),
			zap.Int("filters", st.Filters),
		}
		if m := st.Monitor; m != nil {
			fields = append(fields,
				zap.Uint64("seen", m.Seen),
				zap.Uint64("dispatched", m.Dispatched),
				zap.Uint64("errors", m.Errors),
				zap.Uint64("no_filter", m.NoFilter),
				zap.Uint64("capture_miss", m.CaptureMiss),
				zap.Duration("uptime", m.Uptime))
		}
		log.Info("Dispatch stats", fields...)
		return nil
	}
}

// BackupTask writes the rule set to path.
func BackupTask(log *logger.Logger, store *rules.Store, path string) Task {
	return func(ctx context.Context) error {
		if err := rules.WriteBackup(ctx, store, path); err != nil {
			return err
		}
		log.Info("Rules backup written", zap.String("path", path))
		return nil
	}
}
