package monitor

import (
	"sync"
	"sync/atomic"
	"time"

	"ongoing/pkg/rules"
)

// DispatchRecord describes the most recent request sent.
type DispatchRecord struct {
	Time       time.Time `json:"time"`
	Server     string    `json:"server"`
	Nick       string    `json:"nick"`
	Identifier string    `json:"identifier"`
	Filter     string    `json:"filter"`
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	StartedAt    time.Time       `json:"started_at"`
	Uptime       time.Duration   `json:"uptime"`
	Seen         uint64          `json:"seen"`
	WrongChannel uint64          `json:"wrong_channel"`
	UnknownNick  uint64          `json:"unknown_nick"`
	NoFilter     uint64          `json:"no_filter"`
	CaptureMiss  uint64          `json:"capture_miss"`
	Dispatched   uint64          `json:"dispatched"`
	Errors       uint64          `json:"errors"`
	LastDispatch *DispatchRecord `json:"last_dispatch,omitempty"`
}

// Stats counts dispatch cycle outcomes. Safe for concurrent use.
type Stats struct {
	startedAt time.Time

	seen         atomic.Uint64
	wrongChannel atomic.Uint64
	unknownNick  atomic.Uint64
	noFilter     atomic.Uint64
	captureMiss  atomic.Uint64
	dispatched   atomic.Uint64
	errors       atomic.Uint64

	mu   sync.Mutex
	last *DispatchRecord
}

// NewStats starts the uptime clock.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) recordOutcome(o rules.Outcome) {
	switch o {
	case rules.OutcomeWrongChannel:
		s.wrongChannel.Add(1)
	case rules.OutcomeUnknownNick:
		s.unknownNick.Add(1)
	case rules.OutcomeNoFilter:
		s.noFilter.Add(1)
	case rules.OutcomeCaptureMiss:
		s.captureMiss.Add(1)
	}
}

func (s *Stats) recordDispatch(rec DispatchRecord) {
	s.dispatched.Add(1)
	s.mu.Lock()
	s.last = &rec
	s.mu.Unlock()
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		StartedAt:    s.startedAt,
		Uptime:       time.Since(s.startedAt).Truncate(time.Second),
		Seen:         s.seen.Load(),
		WrongChannel: s.wrongChannel.Load(),
		UnknownNick:  s.unknownNick.Load(),
		NoFilter:     s.noFilter.Load(),
		CaptureMiss:  s.captureMiss.Load(),
		Dispatched:   s.dispatched.Load(),
		Errors:       s.errors.Load(),
	}
	s.mu.Lock()
	if s.last != nil {
		last := *s.last
		snap.LastDispatch = &last
	}
	s.mu.Unlock()
	return snap
}
