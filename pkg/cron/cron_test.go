package cron

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ongoing/pkg/admin"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
	"ongoing/pkg/state"
)

func newTestStore(t *testing.T) *rules.Store {
	t.Helper()

	kv, err := state.NewFileStore(logger.NewNop(), filepath.Join(t.TempDir(), "rules.json"))
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	return rules.NewStore(logger.NewNop(), kv, "#news")
}

func TestManager_AddRunRemove(t *testing.T) {
	m := New(logger.NewNop())
	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Stop()

	calls := 0
	job, err := m.AddJob("counter", "@daily", func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return errors.New("second run fails")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if job.ID == "" || job.NextRun.IsZero() {
		t.Fatalf("job not scheduled: %+v", job)
	}

	if err := m.RunNow(job.ID); err != nil {
		t.Fatalf("first run: %v", err)
	}
	got, _ := m.GetJob(job.ID)
	if got.RunCount != 1 || !got.LastSuccess {
		t.Fatalf("after first run: %+v", got)
	}

	if err := m.RunNow(job.ID); err == nil {
		t.Fatal("expected second run to fail")
	}
	got, _ = m.GetJob(job.ID)
	if got.RunCount != 2 || got.LastSuccess || got.LastError != "second run fails" {
		t.Fatalf("after second run: %+v", got)
	}

	if len(m.ListJobs()) != 1 {
		t.Fatalf("expected one job")
	}
	if err := m.RemoveJob(job.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := m.RemoveJob(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := m.RunNow(job.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestManager_RejectsBadSchedule(t *testing.T) {
	m := New(logger.NewNop())
	if _, err := m.AddJob("bad", "every tuesday", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if _, err := m.AddJob("nil", "@hourly", nil); err == nil {
		t.Fatal("expected error for nil task")
	}
}

func TestBackupTask_WritesYAML(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.SaveBots(ctx, map[string]string{"KareRaisu": `SEND\s([0-9]+)`}); err != nil {
		t.Fatalf("save bots: %v", err)
	}
	if err := store.SaveFilters(ctx, []string{"Kantai"}); err != nil {
		t.Fatalf("save filters: %v", err)
	}

	path := filepath.Join(t.TempDir(), "backups", "rules.yaml")
	if err := BackupTask(logger.NewNop(), store, path)(ctx); err != nil {
		t.Fatalf("backup: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer f.Close()
	snap, err := rules.ReadYAML(f)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if snap.Channel != "#news" || snap.Bots["KareRaisu"] == "" || len(snap.Filters) != 1 {
		t.Fatalf("unexpected backup %+v", snap)
	}
}

func TestStatsTask(t *testing.T) {
	svc := admin.New(logger.NewNop(), newTestStore(t), nil)
	if err := StatsTask(logger.NewNop(), svc)(context.Background()); err != nil {
		t.Fatalf("stats task: %v", err)
	}
}
