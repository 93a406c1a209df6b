package rules

import (
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"ongoing/pkg/logger"
)

const defaultPatternCacheSize = 256

// Matcher evaluates inbound events against a Snapshot. Compiled patterns
// are cached by source text; the rule set itself is never cached.
type Matcher struct {
	log   *logger.Logger
	cache *lru.Cache[string, *regexp.Regexp]
}

// NewMatcher creates a Matcher with room for cacheSize compiled patterns.
func NewMatcher(log *logger.Logger, cacheSize int) (*Matcher, error) {
	if cacheSize <= 0 {
		cacheSize = defaultPatternCacheSize
	}
	cache, err := lru.New[string, *regexp.Regexp](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating pattern cache: %w", err)
	}
	return &Matcher{log: log, cache: cache}, nil
}

// Compile returns the compiled form of pattern, using the cache.
func (m *Matcher) Compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := m.cache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	if evicted := m.cache.Add(pattern, re); evicted {
		m.log.Debug("Pattern cache full, evicted oldest entry", zap.Int("size", m.cache.Len()))
	}
	return re, nil
}

// Evaluate runs one dispatch-cycle decision:
//
//  1. the event channel, case-folded, must equal the monitored channel
//  2. the nick must have a bot rule
//  3. filters are tried in stored order; the first one found anywhere in
//     the arguments is the only one considered
//  4. the bot's capture pattern is applied to the arguments and group 1
//     becomes the identifier
//
// A miss at step 4 is final: later filters are never examined.
// An error means a stored pattern is unusable; it affects only this event.
func (m *Matcher) Evaluate(event InboundEvent, snap *Snapshot) (Decision, error) {
	if strings.ToLower(event.Channel) != strings.ToLower(snap.Channel) {
		return Decision{Outcome: OutcomeWrongChannel}, nil
	}

	botPattern, ok := snap.Bots[event.Nick]
	if !ok {
		return Decision{Outcome: OutcomeUnknownNick}, nil
	}

	for i, filter := range snap.Filters {
		filterRe, err := m.Compile(filter)
		if err != nil {
			return Decision{}, fmt.Errorf("filter %d: %w", i+1, err)
		}
		if !filterRe.MatchString(event.Arguments) {
			continue
		}

		botRe, err := m.Compile(botPattern)
		if err != nil {
			return Decision{}, fmt.Errorf("bot %s: %w", event.Nick, err)
		}
		if botRe.NumSubexp() < 1 {
			return Decision{}, fmt.Errorf("bot %s: %w: no capture group", event.Nick, ErrInvalidPattern)
		}

		// An empty group is a miss too: there is no pack to request.
		loc := botRe.FindStringSubmatchIndex(event.Arguments)
		if loc == nil || loc[2] < 0 || loc[2] == loc[3] {
			return Decision{Outcome: OutcomeCaptureMiss}, nil
		}
		return Decision{
			Outcome: OutcomeMatched,
			Match: &Match{
				Identifier:  event.Arguments[loc[2]:loc[3]],
				Filter:      filter,
				FilterIndex: i + 1,
			},
		}, nil
	}

	return Decision{Outcome: OutcomeNoFilter}, nil
}

// ValidateBotPattern checks that pattern compiles and has a capture group.
func ValidateBotPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("%w: pattern needs a capture group for the pack number", ErrInvalidPattern)
	}
	return nil
}

// ValidateFilterPattern checks that pattern compiles.
func ValidateFilterPattern(pattern string) error {
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return nil
}
