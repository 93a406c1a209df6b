// Package monitor runs the dispatch cycle: one inbound channel message is
// gated, matched and, when it qualifies, turned into one retrieval request.
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ongoing/pkg/bus"
	"ongoing/pkg/logger"
	"ongoing/pkg/rules"
)

// Dispatcher issues the retrieval request.
type Dispatcher interface {
	Dispatch(ctx context.Context, server, nick, identifier string) error
}

// Monitor consumes inbound text messages from the bus.
type Monitor struct {
	log        *logger.Logger
	store      *rules.Store
	matcher    *rules.Matcher
	dispatcher Dispatcher
	stats      *Stats
}

// New creates a Monitor.
func New(log *logger.Logger, store *rules.Store, matcher *rules.Matcher, dispatcher Dispatcher) *Monitor {
	return &Monitor{
		log:        log.Named("monitor"),
		store:      store,
		matcher:    matcher,
		dispatcher: dispatcher,
		stats:      NewStats(),
	}
}

// Stats returns the current counters.
func (m *Monitor) Stats() StatsSnapshot {
	return m.stats.Snapshot()
}

// HandleMessage is the bus inbound handler. Only channel text messages are
// considered. Failures are logged and counted here and never returned, so
// one bad message cannot affect the next.
func (m *Monitor) HandleMessage(ctx context.Context, msg *bus.Message) error {
	if msg.Type != bus.MessageTypeText {
		return nil
	}

	event := rules.InboundEvent{
		Server:    msg.Server,
		Channel:   msg.Target,
		Nick:      msg.Nick,
		Arguments: msg.Content,
	}
	if _, err := m.Process(ctx, event); err != nil {
		m.log.Warn("Dispatch cycle failed",
			zap.String("server", event.Server),
			zap.String("channel", event.Channel),
			zap.String("nick", event.Nick),
			zap.Error(err))
	}
	return nil
}

// Process runs one dispatch cycle. The rule set is read fresh for every
// event.
func (m *Monitor) Process(ctx context.Context, event rules.InboundEvent) (rules.Decision, error) {
	m.stats.seen.Add(1)

	snap, err := m.store.Snapshot(ctx)
	if err != nil {
		m.stats.errors.Add(1)
		return rules.Decision{}, fmt.Errorf("reading rules: %w", err)
	}

	decision, err := m.matcher.Evaluate(event, snap)
	if err != nil {
		m.stats.errors.Add(1)
		return rules.Decision{}, err
	}

	if decision.Outcome != rules.OutcomeMatched {
		m.stats.recordOutcome(decision.Outcome)
		if decision.Outcome != rules.OutcomeWrongChannel {
			m.log.Debug("Message not dispatched",
				zap.String("nick", event.Nick),
				zap.String("outcome", string(decision.Outcome)))
		}
		return decision, nil
	}

	match := decision.Match
	if err := m.dispatcher.Dispatch(ctx, event.Server, event.Nick, match.Identifier); err != nil {
		m.stats.errors.Add(1)
		return decision, err
	}

	m.stats.recordDispatch(DispatchRecord{
		Time:       time.Now(),
		Server:     event.Server,
		Nick:       event.Nick,
		Identifier: match.Identifier,
		Filter:     match.Filter,
	})
	return decision, nil
}
