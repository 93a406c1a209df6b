package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"ongoing/pkg/logger"
	"ongoing/pkg/state"
)

// Keys under which the rule set is persisted.
const (
	KeyBots    = "bots"
	KeyFilters = "filters"
	KeyChannel = "channel"
)

// Store is the rule set persisted in a state.KV.
//
// Every call reads from the backend; nothing is cached between calls.
// One mutex serializes all access so a load-modify-save never interleaves
// with another call in this process. Other processes sharing the backend
// are excluded by the backend itself: a file lock, a sqlite transaction or
// a redis WATCH.
type Store struct {
	log            *logger.Logger
	kv             state.KV
	defaultChannel string
	mu             sync.Mutex
}

// NewStore creates a Store. defaultChannel is returned until a channel is set.
func NewStore(log *logger.Logger, kv state.KV, defaultChannel string) *Store {
	return &Store{
		log:            log,
		kv:             kv,
		defaultChannel: strings.ToLower(strings.TrimSpace(defaultChannel)),
	}
}

// LoadBots returns the bot name to capture pattern mapping.
func (s *Store) LoadBots(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadBots(ctx)
}

func (s *Store) loadBots(ctx context.Context) (map[string]string, error) {
	raw, _, err := s.kv.Get(ctx, KeyBots)
	if err != nil {
		return nil, fmt.Errorf("load bots: %w", err)
	}
	return s.decodeBots(raw), nil
}

// SaveBots replaces the whole mapping.
func (s *Store) SaveBots(ctx context.Context, bots map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bots == nil {
		bots = map[string]string{}
	}
	if err := s.kv.Set(ctx, KeyBots, bots); err != nil {
		return fmt.Errorf("save bots: %w", err)
	}
	return nil
}

// LoadFilters returns the filters in stored order.
func (s *Store) LoadFilters(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFilters(ctx)
}

func (s *Store) loadFilters(ctx context.Context) ([]string, error) {
	raw, _, err := s.kv.Get(ctx, KeyFilters)
	if err != nil {
		return nil, fmt.Errorf("load filters: %w", err)
	}
	return s.decodeFilters(raw), nil
}

// SaveFilters replaces the whole sequence.
func (s *Store) SaveFilters(ctx context.Context, filters []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if filters == nil {
		filters = []string{}
	}
	if err := s.kv.Set(ctx, KeyFilters, filters); err != nil {
		return fmt.Errorf("save filters: %w", err)
	}
	return nil
}

// Channel returns the monitored channel, or the default when none is stored.
func (s *Store) Channel(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, _, err := s.kv.Get(ctx, KeyChannel)
	if err != nil {
		return "", fmt.Errorf("load channel: %w", err)
	}
	return s.decodeChannel(raw), nil
}

// SetChannel lowercases and stores name.
func (s *Store) SetChannel(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Set(ctx, KeyChannel, strings.ToLower(strings.TrimSpace(name))); err != nil {
		return fmt.Errorf("save channel: %w", err)
	}
	return nil
}

// Snapshot reads channel, bots and filters in one guarded access.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.kv.GetMany(ctx, KeyChannel, KeyBots, KeyFilters)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return &Snapshot{
		Channel: s.decodeChannel(all[KeyChannel]),
		Bots:    s.decodeBots(all[KeyBots]),
		Filters: s.decodeFilters(all[KeyFilters]),
	}, nil
}

// UpdateBots runs fn against the current mapping and stores the result.
// If fn returns an error nothing is written and the error is returned.
func (s *Store) UpdateBots(ctx context.Context, fn func(bots map[string]string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.kv.UpdateFunc(ctx, KeyBots, func(current interface{}) (interface{}, error) {
		bots := s.decodeBots(current)
		if err := fn(bots); err != nil {
			return nil, err
		}
		return bots, nil
	})
}

// UpdateFilters runs fn against the current sequence and stores the
// returned one. If fn returns an error nothing is written.
func (s *Store) UpdateFilters(ctx context.Context, fn func(filters []string) ([]string, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.kv.UpdateFunc(ctx, KeyFilters, func(current interface{}) (interface{}, error) {
		next, err := fn(s.decodeFilters(current))
		if err != nil {
			return nil, err
		}
		if next == nil {
			next = []string{}
		}
		return next, nil
	})
}

// Replace overwrites the whole rule set in one write. Used by import.
func (s *Store) Replace(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bots := snap.Bots
	if bots == nil {
		bots = map[string]string{}
	}
	filters := snap.Filters
	if filters == nil {
		filters = []string{}
	}

	values := map[string]interface{}{
		KeyBots:    bots,
		KeyFilters: filters,
	}
	if ch := strings.ToLower(strings.TrimSpace(snap.Channel)); ch != "" {
		values[KeyChannel] = ch
	}
	if err := s.kv.SetMany(ctx, values); err != nil {
		return fmt.Errorf("save rules: %w", err)
	}
	return nil
}

// decodeBots converts a decoded JSON value into the mapping. Values of the
// wrong shape are dropped with a warning and read as empty.
func (s *Store) decodeBots(raw interface{}) map[string]string {
	bots := make(map[string]string)
	switch v := raw.(type) {
	case nil:
	case map[string]string:
		for name, pattern := range v {
			bots[name] = pattern
		}
	case map[string]interface{}:
		for name, pattern := range v {
			p, ok := pattern.(string)
			if !ok {
				s.log.Warn("Ignoring non-string bot pattern", zap.String("bot", name))
				continue
			}
			bots[name] = p
		}
	default:
		s.log.Warn("Stored bots have an unexpected shape, reading as empty",
			zap.String("type", fmt.Sprintf("%T", raw)))
	}
	return bots
}

func (s *Store) decodeFilters(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		return append([]string{}, v...)
	case []interface{}:
		filters := make([]string, 0, len(v))
		for i, item := range v {
			p, ok := item.(string)
			if !ok {
				s.log.Warn("Ignoring non-string filter", zap.Int("index", i+1))
				continue
			}
			filters = append(filters, p)
		}
		return filters
	default:
		s.log.Warn("Stored filters have an unexpected shape, reading as empty",
			zap.String("type", fmt.Sprintf("%T", raw)))
		return []string{}
	}
}

func (s *Store) decodeChannel(raw interface{}) string {
	if ch, ok := raw.(string); ok && strings.TrimSpace(ch) != "" {
		return strings.ToLower(ch)
	}
	return s.defaultChannel
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
