package channels

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ongoing/pkg/bus"
	"ongoing/pkg/logger"
)

// Manager owns the connections and wires each one to the bus.
type Manager struct {
	log      *logger.Logger
	bus      bus.Bus
	channels map[string]Channel
	mu       sync.RWMutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new channel manager.
func NewManager(log *logger.Logger, messageBus bus.Bus) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		log:      log,
		bus:      messageBus,
		channels: make(map[string]Channel),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register registers a channel with the manager.
func (m *Manager) Register(channel Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := channel.ID()
	if _, exists := m.channels[id]; exists {
		return fmt.Errorf("channel %s already registered", id)
	}

	m.channels[id] = channel
	m.log.Info("Registered channel",
		zap.String("id", id),
		zap.String("name", channel.Name()))

	return nil
}

// Start starts all enabled channels.
func (m *Manager) Start() error {
	m.log.Info("Starting channel manager")

	m.mu.RLock()
	channels := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch.IsEnabled() {
			channels = append(channels, ch)
		}
	}
	m.mu.RUnlock()

	for _, ch := range channels {
		m.startChannel(ch)
	}

	if len(channels) == 0 {
		m.log.Warn("No IRC servers enabled; only the admin surface is available")
	} else {
		m.log.Info("Started channels", zap.Int("count", len(channels)))
	}

	return nil
}

// Stop stops all channels gracefully.
func (m *Manager) Stop() error {
	m.log.Info("Stopping channel manager")

	m.cancel()

	m.mu.RLock()
	channels := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, ch := range channels {
		if err := ch.Stop(ctx); err != nil {
			m.log.Error("Error stopping channel",
				zap.String("channel", ch.ID()),
				zap.Error(err))
		}
		m.bus.UnregisterHandlers(ch.ID())
	}

	m.wg.Wait()

	m.log.Info("Channel manager stopped")
	return nil
}

// StopChannel stops and unregisters a specific channel.
func (m *Manager) StopChannel(channelID string) error {
	m.mu.RLock()
	ch, exists := m.channels[channelID]
	m.mu.RUnlock()
	if !exists {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ch.Stop(ctx); err != nil {
		m.log.Error("Error stopping channel",
			zap.String("channel", channelID),
			zap.Error(err))
	}

	m.bus.UnregisterHandlers(channelID)

	m.mu.Lock()
	delete(m.channels, channelID)
	m.mu.Unlock()

	m.log.Info("Stopped channel", zap.String("id", channelID))
	return nil
}

// ReloadChannel replaces an existing channel and starts the new one if enabled.
func (m *Manager) ReloadChannel(channel Channel) error {
	if channel == nil {
		return fmt.Errorf("channel cannot be nil")
	}

	id := channel.ID()
	if err := m.StopChannel(id); err != nil {
		return err
	}

	m.mu.Lock()
	m.channels[id] = channel
	m.mu.Unlock()

	m.log.Info("Reloaded channel",
		zap.String("id", channel.ID()),
		zap.String("name", channel.Name()),
		zap.Bool("enabled", channel.IsEnabled()))

	if !channel.IsEnabled() {
		return nil
	}

	m.startChannel(channel)
	return nil
}

// startChannel routes outbound bus messages for the channel to it and
// starts its connection loop.
func (m *Manager) startChannel(channel Channel) {
	m.bus.RegisterHandler(channel.ID(), func(ctx context.Context, msg *bus.Message) error {
		return channel.SendMessage(ctx, msg)
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.log.Info("Starting channel",
			zap.String("id", channel.ID()),
			zap.String("name", channel.Name()))

		if err := channel.Start(m.ctx); err != nil {
			m.log.Error("Channel start failed",
				zap.String("channel", channel.ID()),
				zap.Error(err))
		}
	}()
}

// JoinAll asks every enabled connection to join name. Used when the
// monitored channel changes at runtime.
func (m *Manager) JoinAll(name string) error {
	var errs []error
	for _, ch := range m.GetEnabledChannels() {
		msg := bus.NewMessage(ch.ID(), bus.MessageTypeJoin, "")
		msg.Target = name
		if err := m.bus.SendOutbound(msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ch.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// GetChannel returns a channel by ID.
func (m *Manager) GetChannel(channelID string) (Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channel, exists := m.channels[channelID]
	if !exists {
		return nil, fmt.Errorf("channel %s not found", channelID)
	}

	return channel, nil
}

// ListChannels returns all registered channels.
func (m *Manager) ListChannels() []Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch)
	}

	return channels
}

// GetEnabledChannels returns all enabled channels.
func (m *Manager) GetEnabledChannels() []Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()

	channels := make([]Channel, 0)
	for _, ch := range m.channels {
		if ch.IsEnabled() {
			channels = append(channels, ch)
		}
	}

	return channels
}
