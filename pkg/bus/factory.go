package bus

import (
	"fmt"
	"strings"

	"ongoing/pkg/config"
	"ongoing/pkg/logger"
)

// Backend names accepted in bus.type.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

// FromConfig builds the backend selected by cfg.Bus. An empty type means
// the in-process bus. The redis backend reuses the shared redis section
// so the store and the bus point at the same server.
func FromConfig(log *logger.Logger, cfg *config.Config) (Bus, error) {
	switch backend := strings.ToLower(strings.TrimSpace(cfg.Bus.Type)); backend {
	case BackendLocal, "":
		return NewLocalBus(log, cfg.Bus.BufferSize), nil

	case BackendRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			return nil, fmt.Errorf("bus.type is redis but redis.addr is empty")
		}
		return NewRedisBus(log, &RedisBusConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Bus.Prefix,
		})

	default:
		return nil, fmt.Errorf("unknown bus type %q", backend)
	}
}
