// Package rules owns the announcer bot rules, the ordered filter list and
// the monitored channel, and decides whether an inbound channel message
// qualifies for a retrieval request.
package rules

import (
	"errors"
	"sort"
)

var (
	// ErrNotFound is returned when removing a bot name or filter index
	// that does not exist. Nothing is written in that case.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPattern is returned for a pattern that does not compile,
	// or a bot pattern without a capture group.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// InboundEvent is one channel message as delivered by the transport.
type InboundEvent struct {
	Server    string
	Channel   string
	Nick      string
	Arguments string
}

// Match is a qualifying message.
type Match struct {
	Identifier string
	// Filter is the pattern that admitted the message.
	Filter string
	// FilterIndex is the 1-based position of Filter.
	FilterIndex int
}

// Outcome classifies a single evaluation.
type Outcome string

const (
	OutcomeWrongChannel Outcome = "wrong_channel"
	OutcomeUnknownNick  Outcome = "unknown_nick"
	OutcomeNoFilter     Outcome = "no_filter"
	OutcomeCaptureMiss  Outcome = "capture_miss"
	OutcomeMatched      Outcome = "matched"
)

// Decision is the result of Matcher.Evaluate. Match is set only for
// OutcomeMatched.
type Decision struct {
	Outcome Outcome
	Match   *Match
}

// Snapshot is a consistent read of the whole rule set, taken once per
// dispatch cycle.
type Snapshot struct {
	Channel string            `json:"channel" yaml:"channel"`
	Bots    map[string]string `json:"bots" yaml:"bots"`
	Filters []string          `json:"filters" yaml:"filters"`
}

// BotNames returns the bot names in sorted order.
func (s *Snapshot) BotNames() []string {
	names := make([]string, 0, len(s.Bots))
	for name := range s.Bots {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
