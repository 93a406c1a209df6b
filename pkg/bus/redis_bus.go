package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ongoing/pkg/logger"
)

// RedisBus is a Redis pub/sub message bus. It lets the IRC connections
// and the rule engine run in separate processes that share one Redis.
//
// Messages arrive on one subscription goroutine, so inbound handlers see
// them serially just as with LocalBus.
type RedisBus struct {
	log    *logger.Logger
	client *redis.Client
	prefix string

	inboundHandlers []Handler
	handlers        map[string][]Handler // Channel ID -> outbound handlers
	mu              sync.RWMutex

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	pubsub *redis.PubSub

	metrics counters
}

// RedisBusConfig configures the Redis bus.
type RedisBusConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisBus creates a new Redis-based message bus.
func NewRedisBus(log *logger.Logger, cfg *RedisBusConfig) (*RedisBus, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ongoing:bus:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	log.Info("Redis bus initialized",
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("prefix", prefix))

	return &RedisBus{
		log:      log,
		client:   client,
		prefix:   prefix,
		handlers: make(map[string][]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (b *RedisBus) inboundTopic(channelID string) string {
	return b.prefix + "inbound:" + channelID
}

func (b *RedisBus) outboundTopic(channelID string) string {
	return b.prefix + "outbound:" + channelID
}

// Start subscribes and waits for the subscription to be confirmed, so
// nothing published after Start returns is missed.
func (b *RedisBus) Start() error {
	b.log.Info("Starting Redis message bus")

	b.pubsub = b.client.PSubscribe(b.ctx, b.prefix+"*")
	if _, err := b.pubsub.Receive(b.ctx); err != nil {
		return fmt.Errorf("subscribing to Redis: %w", err)
	}

	b.wg.Add(1)
	go b.processMessages()

	return nil
}

// Stop stops the Redis bus.
func (b *RedisBus) Stop() error {
	b.stopOnce.Do(func() {
		b.log.Info("Stopping Redis message bus")
		b.cancel()
		if b.pubsub != nil {
			b.pubsub.Close()
		}
		b.wg.Wait()
		b.client.Close()
		b.log.Info("Redis message bus stopped")
	})
	return nil
}

// RegisterInboundHandler adds a handler for every inbound message.
func (b *RedisBus) RegisterInboundHandler(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inboundHandlers = append(b.inboundHandlers, handler)
}

// RegisterHandler registers an outbound handler for a specific channel.
func (b *RedisBus) RegisterHandler(channelID string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[channelID] = append(b.handlers[channelID], handler)
	b.log.Info("Registered handler", zap.String("channel", channelID))
}

// UnregisterHandlers removes all outbound handlers for a channel.
func (b *RedisBus) UnregisterHandlers(channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, channelID)
	b.log.Info("Unregistered handlers", zap.String("channel", channelID))
}

// SendInbound publishes a message from a connection.
func (b *RedisBus) SendInbound(msg *Message) error {
	if err := b.publish(b.inboundTopic(msg.ChannelID), msg); err != nil {
		return err
	}
	b.metrics.messagesIn.Add(1)
	return nil
}

// SendOutbound publishes a message for a connection.
func (b *RedisBus) SendOutbound(msg *Message) error {
	if err := b.publish(b.outboundTopic(msg.ChannelID), msg); err != nil {
		return err
	}
	b.metrics.messagesOut.Add(1)
	return nil
}

func (b *RedisBus) publish(topic string, msg *Message) error {
	if b.ctx.Err() != nil {
		return ErrStopped
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	if err := b.client.Publish(b.ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("publishing to Redis: %w", err)
	}
	return nil
}

// GetMetrics returns current bus metrics.
func (b *RedisBus) GetMetrics() map[string]uint64 {
	return b.metrics.snapshot()
}

func (b *RedisBus) processMessages() {
	defer b.wg.Done()

	ch := b.pubsub.Channel()
	for {
		select {
		case redisMsg, ok := <-ch:
			if !ok {
				return
			}
			b.handleRedisMessage(redisMsg)
		case <-b.ctx.Done():
			return
		}
	}
}

func (b *RedisBus) handleRedisMessage(redisMsg *redis.Message) {
	var msg Message
	if err := json.Unmarshal([]byte(redisMsg.Payload), &msg); err != nil {
		b.log.Error("Failed to unmarshal message", zap.Error(err))
		b.metrics.errors.Add(1)
		return
	}

	var direction string
	var handlers []Handler

	b.mu.RLock()
	switch {
	case strings.HasPrefix(redisMsg.Channel, b.prefix+"inbound:"):
		direction = "inbound"
		handlers = b.inboundHandlers
	case strings.HasPrefix(redisMsg.Channel, b.prefix+"outbound:"):
		direction = "outbound"
		handlers = b.handlers[msg.ChannelID]
	}
	b.mu.RUnlock()

	if direction == "" {
		b.log.Warn("Unknown channel format", zap.String("channel", redisMsg.Channel))
		return
	}
	if len(handlers) == 0 {
		// Another process may own this connection.
		b.log.Debug("No handlers registered",
			zap.String("channel", msg.ChannelID),
			zap.String("direction", direction))
		return
	}

	b.log.Debug("Processing message",
		zap.String("channel", msg.ChannelID),
		zap.String("direction", direction),
		zap.String("message_id", msg.ID))

	for _, handler := range handlers {
		if err := handler(b.ctx, &msg); err != nil {
			b.metrics.errors.Add(1)
			b.log.Error("Handler error",
				zap.String("channel", msg.ChannelID),
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}
}
