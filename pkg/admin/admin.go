// Package admin implements the administrative operations on the rule set:
// the monitored channel, announcer bot patterns and the ordered filter list.
// Every operation is a single guarded read or read-modify-write on the
// rules store, so edits are visible to the very next dispatch cycle.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ongoing/pkg/logger"
	"ongoing/pkg/monitor"
	"ongoing/pkg/rules"
)

var (
	// ErrNotFound is returned when a bot name or filter id does not exist.
	ErrNotFound = rules.ErrNotFound

	// ErrInvalidPattern is returned when a pattern is rejected on entry.
	ErrInvalidPattern = rules.ErrInvalidPattern

	// ErrUsage is returned for missing or malformed arguments.
	ErrUsage = errors.New("invalid arguments")
)

// StatsProvider exposes dispatch counters. Implemented by *monitor.Monitor.
type StatsProvider interface {
	Stats() monitor.StatsSnapshot
}

// ChannelHook runs after the monitored channel changed.
type ChannelHook func(ctx context.Context, channel string) error

// BotEntry is one announcer bot rule.
type BotEntry struct {
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// FilterEntry is one filter with its 1-based id.
type FilterEntry struct {
	ID      int    `json:"id"`
	Pattern string `json:"pattern"`
}

// Stats summarizes the rule set and, when a daemon is attached, the
// dispatch counters.
type Stats struct {
	Channel string                 `json:"channel"`
	Bots    int                    `json:"bots"`
	Filters int                    `json:"filters"`
	Monitor *monitor.StatsSnapshot `json:"monitor,omitempty"`
}

// Service performs admin operations against a rules store.
type Service struct {
	log   *logger.Logger
	store *rules.Store
	stats StatsProvider

	mu    sync.RWMutex
	hooks []ChannelHook
}

// New creates a Service. stats may be nil when no monitor is running,
// e.g. for one-shot CLI invocations.
func New(log *logger.Logger, store *rules.Store, stats StatsProvider) *Service {
	return &Service{
		log:   log.Named("admin"),
		store: store,
		stats: stats,
	}
}

// OnChannelChange registers a hook called after SetChannel succeeds.
func (s *Service) OnChannelChange(hook ChannelHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// GetChannel returns the monitored channel.
func (s *Service) GetChannel(ctx context.Context) (string, error) {
	return s.store.Channel(ctx)
}

// SetChannel stores name lowercased and returns the stored value.
// Hook failures are logged and do not fail the operation.
func (s *Service) SetChannel(ctx context.Context, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", fmt.Errorf("%w: channel name is required", ErrUsage)
	}
	if err := s.store.SetChannel(ctx, name); err != nil {
		return "", err
	}
	s.log.Info("Monitored channel changed", zap.String("channel", name))

	s.mu.RLock()
	hooks := append([]ChannelHook(nil), s.hooks...)
	s.mu.RUnlock()
	for _, hook := range hooks {
		if err := hook(ctx, name); err != nil {
			s.log.Warn("Channel change hook failed", zap.String("channel", name), zap.Error(err))
		}
	}
	return name, nil
}

// AddBot inserts or overwrites the rule for name. replaced reports whether
// a rule already existed.
func (s *Service) AddBot(ctx context.Context, name, pattern string) (replaced bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" || pattern == "" {
		return false, fmt.Errorf("%w: bot name and pattern are required", ErrUsage)
	}
	if err := rules.ValidateBotPattern(pattern); err != nil {
		return false, err
	}

	err = s.store.UpdateBots(ctx, func(bots map[string]string) error {
		_, replaced = bots[name]
		bots[name] = pattern
		return nil
	})
	if err != nil {
		return false, err
	}
	s.log.Info("Bot rule saved",
		zap.String("bot", name),
		zap.String("pattern", pattern),
		zap.Bool("replaced", replaced))
	return replaced, nil
}

// RemoveBot deletes the rule for name. Returns ErrNotFound if absent.
func (s *Service) RemoveBot(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: bot name is required", ErrUsage)
	}
	err := s.store.UpdateBots(ctx, func(bots map[string]string) error {
		if _, ok := bots[name]; !ok {
			return fmt.Errorf("bot %q: %w", name, ErrNotFound)
		}
		delete(bots, name)
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("Bot rule removed", zap.String("bot", name))
	return nil
}

// ListBots returns the rules sorted by name.
func (s *Service) ListBots(ctx context.Context) ([]BotEntry, error) {
	bots, err := s.store.LoadBots(ctx)
	if err != nil {
		return nil, err
	}
	snap := rules.Snapshot{Bots: bots}
	entries := make([]BotEntry, 0, len(bots))
	for _, name := range snap.BotNames() {
		entries = append(entries, BotEntry{Name: name, Pattern: bots[name]})
	}
	return entries, nil
}

// AddFilter appends pattern and returns its 1-based id.
func (s *Service) AddFilter(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		return 0, fmt.Errorf("%w: filter pattern is required", ErrUsage)
	}
	if err := rules.ValidateFilterPattern(pattern); err != nil {
		return 0, err
	}

	var id int
	err := s.store.UpdateFilters(ctx, func(filters []string) ([]string, error) {
		filters = append(filters, pattern)
		id = len(filters)
		return filters, nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("Filter added", zap.Int("id", id), zap.String("pattern", pattern))
	return id, nil
}

// RemoveFilter deletes the filter with the given 1-based id and returns
// its pattern. Later filters shift down by one.
func (s *Service) RemoveFilter(ctx context.Context, id int) (string, error) {
	var removed string
	err := s.store.UpdateFilters(ctx, func(filters []string) ([]string, error) {
		if id < 1 || id > len(filters) {
			return nil, fmt.Errorf("filter %d: %w", id, ErrNotFound)
		}
		removed = filters[id-1]
		return append(filters[:id-1], filters[id:]...), nil
	})
	if err != nil {
		return "", err
	}
	s.log.Info("Filter removed", zap.Int("id", id), zap.String("pattern", removed))
	return removed, nil
}

// ListFilters returns the filters in evaluation order.
func (s *Service) ListFilters(ctx context.Context) ([]FilterEntry, error) {
	filters, err := s.store.LoadFilters(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]FilterEntry, len(filters))
	for i, pattern := range filters {
		entries[i] = FilterEntry{ID: i + 1, Pattern: pattern}
	}
	return entries, nil
}

// Stats reports rule counts and monitor counters.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}
	out := Stats{
		Channel: snap.Channel,
		Bots:    len(snap.Bots),
		Filters: len(snap.Filters),
	}
	if s.stats != nil {
		m := s.stats.Stats()
		out.Monitor = &m
	}
	return out, nil
}
