package channels

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ongoing/pkg/logger"
)

// ChannelLookup reads the monitored channel from the rule store.
type ChannelLookup func(ctx context.Context) (string, error)

// Follower keeps every connection in the monitored channel.
//
// Connections join the stored channel when they register. After that the
// follower rereads it every interval, so a change made by another process
// (the admin CLI or shell) is joined without a reconnect. In-process
// changes call Observe directly and are joined at once.
type Follower struct {
	log      *logger.Logger
	manager  *Manager
	lookup   ChannelLookup
	interval time.Duration

	mu      sync.Mutex
	current string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewFollower creates a follower. interval <= 0 disables polling; Observe
// still works.
func NewFollower(log *logger.Logger, manager *Manager, lookup ChannelLookup, interval time.Duration) *Follower {
	return &Follower{
		log:      log.Named("follow"),
		manager:  manager,
		lookup:   lookup,
		interval: interval,
	}
}

// Start records the current channel and begins polling.
func (f *Follower) Start(ctx context.Context) error {
	if name, err := f.lookup(ctx); err != nil {
		f.log.Warn("Could not read monitored channel", zap.Error(err))
	} else {
		f.mu.Lock()
		f.current = name
		f.mu.Unlock()
	}

	if f.interval <= 0 {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.loop(runCtx)
	return nil
}

// Stop ends polling.
func (f *Follower) Stop() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
}

func (f *Follower) loop(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.Check(ctx)
		}
	}
}

// Check rereads the stored channel and joins it if it changed.
func (f *Follower) Check(ctx context.Context) {
	name, err := f.lookup(ctx)
	if err != nil {
		f.log.Warn("Could not read monitored channel", zap.Error(err))
		return
	}
	if err := f.Observe(name); err != nil {
		f.log.Warn("Failed to join monitored channel", zap.String("channel", name), zap.Error(err))
	}
}

// Observe joins name on every connection unless it is already the
// followed channel.
func (f *Follower) Observe(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	f.mu.Lock()
	if strings.EqualFold(name, f.current) {
		f.mu.Unlock()
		return nil
	}
	previous := f.current
	f.current = name
	f.mu.Unlock()

	f.log.Info("Monitored channel changed, joining",
		zap.String("from", previous),
		zap.String("to", name))
	return f.manager.JoinAll(name)
}
