package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"ongoing/pkg/logger"
)

const sendTimeout = 5 * time.Second

// LocalBus is an in-process message bus using Go channels. Each direction
// has a single processing goroutine, so handlers never run concurrently
// with themselves.
type LocalBus struct {
	log             *logger.Logger
	inboundHandlers []Handler
	handlers        map[string][]Handler // Channel ID -> outbound handlers
	mu              sync.RWMutex

	inbound  chan *Message
	outbound chan *Message

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once

	metrics counters
}

// NewLocalBus creates a new local message bus.
func NewLocalBus(log *logger.Logger, bufferSize int) *LocalBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &LocalBus{
		log:      log,
		handlers: make(map[string][]Handler),
		inbound:  make(chan *Message, bufferSize),
		outbound: make(chan *Message, bufferSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the processing loops.
func (b *LocalBus) Start() error {
	b.log.Info("Starting message bus")

	b.wg.Add(2)
	go b.process(b.inbound, "inbound")
	go b.process(b.outbound, "outbound")

	return nil
}

// Stop stops the loops and waits for the message in flight to finish.
// Queued messages that were not yet picked up are dropped.
func (b *LocalBus) Stop() error {
	b.stopOnce.Do(func() {
		b.log.Info("Stopping message bus")
		b.cancel()
		b.wg.Wait()
		b.log.Info("Message bus stopped")
	})
	return nil
}

// RegisterInboundHandler adds a handler for every inbound message.
func (b *LocalBus) RegisterInboundHandler(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inboundHandlers = append(b.inboundHandlers, handler)
}

// RegisterHandler registers an outbound handler for a specific channel.
// Multiple handlers can be registered for the same channel.
func (b *LocalBus) RegisterHandler(channelID string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[channelID] = append(b.handlers[channelID], handler)
	b.log.Info("Registered handler", zap.String("channel", channelID))
}

// UnregisterHandlers removes all outbound handlers for a channel.
func (b *LocalBus) UnregisterHandlers(channelID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers, channelID)
	b.log.Info("Unregistered handlers", zap.String("channel", channelID))
}

// SendInbound queues a message from a connection.
func (b *LocalBus) SendInbound(msg *Message) error {
	if err := b.send(b.inbound, msg); err != nil {
		return err
	}
	b.metrics.messagesIn.Add(1)
	return nil
}

// SendOutbound queues a message for a connection.
func (b *LocalBus) SendOutbound(msg *Message) error {
	if err := b.send(b.outbound, msg); err != nil {
		return err
	}
	b.metrics.messagesOut.Add(1)
	return nil
}

func (b *LocalBus) send(ch chan<- *Message, msg *Message) error {
	if b.ctx.Err() != nil {
		return ErrStopped
	}

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case ch <- msg:
		return nil
	case <-b.ctx.Done():
		return ErrStopped
	case <-timer.C:
		b.metrics.dropped.Add(1)
		return fmt.Errorf("timeout sending message %s", msg.ID)
	}
}

func (b *LocalBus) process(ch <-chan *Message, direction string) {
	defer b.wg.Done()

	for {
		select {
		case msg := <-ch:
			b.handleMessage(msg, direction)
		case <-b.ctx.Done():
			return
		}
	}
}

// handleMessage dispatches a message to registered handlers.
func (b *LocalBus) handleMessage(msg *Message, direction string) {
	b.mu.RLock()
	var handlers []Handler
	if direction == "inbound" {
		handlers = b.inboundHandlers
	} else {
		handlers = b.handlers[msg.ChannelID]
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.metrics.dropped.Add(1)
		b.log.Warn("No handlers registered",
			zap.String("channel", msg.ChannelID),
			zap.String("direction", direction),
			zap.String("message_id", msg.ID))
		return
	}

	b.log.Debug("Processing message",
		zap.String("channel", msg.ChannelID),
		zap.String("direction", direction),
		zap.String("type", string(msg.Type)),
		zap.String("message_id", msg.ID))

	for _, handler := range handlers {
		if err := handler(b.ctx, msg); err != nil {
			b.metrics.errors.Add(1)
			b.log.Error("Handler error",
				zap.String("channel", msg.ChannelID),
				zap.String("direction", direction),
				zap.String("message_id", msg.ID),
				zap.Error(err))
		}
	}
}

// GetMetrics returns current bus metrics.
func (b *LocalBus) GetMetrics() map[string]uint64 {
	return b.metrics.snapshot()
}
