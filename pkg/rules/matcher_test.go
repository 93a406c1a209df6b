package rules

import (
	"errors"
	"testing"

	"ongoing/pkg/logger"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(logger.NewNop(), 8)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}
	return m
}

func newsSnapshot() *Snapshot {
	return &Snapshot{
		Channel: "#news",
		Bots:    map[string]string{"KareRaisu": `SEND\s([0-9]+)`},
		Filters: []string{"Kantai.*720p"},
	}
}

func TestEvaluate_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		event   InboundEvent
		outcome Outcome
		id      string
	}{
		{
			name:    "dispatches identifier",
			event:   InboundEvent{Server: "rizon", Channel: "#news", Nick: "KareRaisu", Arguments: "!list Kantai Collection 720p SEND 42"},
			outcome: OutcomeMatched,
			id:      "42",
		},
		{
			name:    "channel compared case-insensitively",
			event:   InboundEvent{Server: "rizon", Channel: "#NEWS", Nick: "KareRaisu", Arguments: "!list Kantai Collection 720p SEND 42"},
			outcome: OutcomeMatched,
			id:      "42",
		},
		{
			name:    "other channel",
			event:   InboundEvent{Server: "rizon", Channel: "#other", Nick: "KareRaisu", Arguments: "!list Kantai Collection 720p SEND 42"},
			outcome: OutcomeWrongChannel,
		},
		{
			name:    "unknown nick",
			event:   InboundEvent{Server: "rizon", Channel: "#news", Nick: "OtherBot", Arguments: "!list Kantai Collection 720p SEND 42"},
			outcome: OutcomeUnknownNick,
		},
		{
			name:    "filter does not match",
			event:   InboundEvent{Server: "rizon", Channel: "#news", Nick: "KareRaisu", Arguments: "Kantai 1080p SEND 42"},
			outcome: OutcomeNoFilter,
		},
		{
			name:    "capture pattern misses",
			event:   InboundEvent{Server: "rizon", Channel: "#news", Nick: "KareRaisu", Arguments: "Kantai 720p pack soon"},
			outcome: OutcomeCaptureMiss,
		},
	}

	m := newTestMatcher(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := m.Evaluate(tt.event, newsSnapshot())
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if d.Outcome != tt.outcome {
				t.Fatalf("expected outcome %s, got %s", tt.outcome, d.Outcome)
			}
			if tt.outcome == OutcomeMatched {
				if d.Match == nil || d.Match.Identifier != tt.id {
					t.Fatalf("expected identifier %q, got %+v", tt.id, d.Match)
				}
			} else if d.Match != nil {
				t.Fatalf("expected no match, got %+v", d.Match)
			}
		})
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	m := newTestMatcher(t)
	snap := &Snapshot{
		Channel: "#news",
		Bots:    map[string]string{"bot": `SEND (\d+)`},
		Filters: []string{"abc", "xyz"},
	}

	d, err := m.Evaluate(InboundEvent{Channel: "#news", Nick: "bot", Arguments: "xyz abc SEND 7"}, snap)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Outcome != OutcomeMatched || d.Match.FilterIndex != 1 || d.Match.Filter != "abc" {
		t.Fatalf("expected first filter to admit the message, got %+v", d)
	}
}

func TestEvaluate_CaptureMissStopsFilterScan(t *testing.T) {
	m := newTestMatcher(t)
	// The second filter is invalid: reaching it would return an error.
	snap := &Snapshot{
		Channel: "#news",
		Bots:    map[string]string{"bot": `SEND (\d+)`},
		Filters: []string{"abc", "xyz(", "SEND"},
	}

	d, err := m.Evaluate(InboundEvent{Channel: "#news", Nick: "bot", Arguments: "abc xyz no pack"}, snap)
	if err != nil {
		t.Fatalf("later filters must not be examined, got error %v", err)
	}
	if d.Outcome != OutcomeCaptureMiss {
		t.Fatalf("expected capture miss, got %s", d.Outcome)
	}
}

func TestEvaluate_EmptyCaptureIsAMiss(t *testing.T) {
	m := newTestMatcher(t)
	snap := &Snapshot{
		Channel: "#news",
		Bots:    map[string]string{"bot": `SEND\s([0-9]*)`},
		Filters: []string{"SEND"},
	}

	// An empty identifier would request "xdcc send " with no pack.
	d, err := m.Evaluate(InboundEvent{Channel: "#news", Nick: "bot", Arguments: "x SEND "}, snap)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Outcome != OutcomeCaptureMiss || d.Match != nil {
		t.Fatalf("expected capture miss for empty group, got %+v", d)
	}

	d, err = m.Evaluate(InboundEvent{Channel: "#news", Nick: "bot", Arguments: "x SEND 7"}, snap)
	if err != nil || d.Outcome != OutcomeMatched || d.Match.Identifier != "7" {
		t.Fatalf("expected identifier 7, got %+v err=%v", d, err)
	}
}

func TestEvaluate_EmptyFiltersNeverMatch(t *testing.T) {
	m := newTestMatcher(t)
	snap := newsSnapshot()
	snap.Filters = nil

	d, err := m.Evaluate(InboundEvent{Channel: "#news", Nick: "KareRaisu", Arguments: "SEND 42"}, snap)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Outcome != OutcomeNoFilter {
		t.Fatalf("expected no_filter, got %s", d.Outcome)
	}
}

func TestEvaluate_UnknownNickSkipsInvalidFilters(t *testing.T) {
	m := newTestMatcher(t)
	snap := newsSnapshot()
	snap.Filters = []string{"("}

	d, err := m.Evaluate(InboundEvent{Channel: "#news", Nick: "stranger", Arguments: "x"}, snap)
	if err != nil {
		t.Fatalf("unknown nick must short-circuit before filters, got %v", err)
	}
	if d.Outcome != OutcomeUnknownNick {
		t.Fatalf("expected unknown_nick, got %s", d.Outcome)
	}
}

func TestEvaluate_InvalidStoredPatternIsAnError(t *testing.T) {
	m := newTestMatcher(t)

	snap := newsSnapshot()
	snap.Filters = []string{"[unclosed"}
	_, err := m.Evaluate(InboundEvent{Channel: "#news", Nick: "KareRaisu", Arguments: "x"}, snap)
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern for bad filter, got %v", err)
	}

	snap = newsSnapshot()
	snap.Bots["KareRaisu"] = `SEND \d+`
	_, err = m.Evaluate(InboundEvent{Channel: "#news", Nick: "KareRaisu", Arguments: "Kantai 720p SEND 1"}, snap)
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern for bot without group, got %v", err)
	}
}

func TestCompile_Caches(t *testing.T) {
	m := newTestMatcher(t)

	a, err := m.Compile(`(\d+)`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, err := m.Compile(`(\d+)`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if a != b {
		t.Fatalf("expected cached regexp to be reused")
	}
}

func TestValidatePatterns(t *testing.T) {
	if err := ValidateBotPattern(`SEND\s([0-9]+)`); err != nil {
		t.Fatalf("valid bot pattern rejected: %v", err)
	}
	if err := ValidateBotPattern(`SEND\s[0-9]+`); !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected missing group to be rejected, got %v", err)
	}
	if err := ValidateBotPattern(`(`); !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected bad syntax to be rejected, got %v", err)
	}
	if err := ValidateFilterPattern(`Kantai.*720p`); err != nil {
		t.Fatalf("valid filter rejected: %v", err)
	}
	if err := ValidateFilterPattern(`*720p`); !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("expected bad filter to be rejected, got %v", err)
	}
}
