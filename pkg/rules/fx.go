package rules

import (
	"go.uber.org/fx"

	"ongoing/pkg/config"
	"ongoing/pkg/logger"
	"ongoing/pkg/state"
)

// Module provides the rule store and matcher.
var Module = fx.Module("rules",
	fx.Provide(ProvideStore),
	fx.Provide(ProvideMatcher),
)

// ProvideStore builds the Store over the configured KV backend.
func ProvideStore(log *logger.Logger, kv state.KV, cfg *config.Config) *Store {
	return NewStore(log, kv, cfg.Monitor.DefaultChannel)
}

// ProvideMatcher builds the Matcher with the configured cache size.
func ProvideMatcher(log *logger.Logger, cfg *config.Config) (*Matcher, error) {
	return NewMatcher(log, cfg.Monitor.PatternCacheSize)
}
