package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateLogger(&cfg.Logger)
	v.validateIRC(&cfg.IRC)
	v.validateMonitor(&cfg.Monitor)
	v.validateStore(&cfg.Store, &cfg.Redis)
	v.validateBus(&cfg.Bus, &cfg.Redis)
	v.validateGateway(&cfg.Gateway)
	v.validateCron(&cfg.Cron)

	if len(v.errors) > 0 {
		return v.errors
	}

	return nil
}

func (v *Validator) validateLogger(cfg *LoggerConfig) {
	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		v.addError("logger.level", "level must be one of: debug, info, warn, error, fatal")
	}
}

// validateIRC validates IRC connection configuration.
func (v *Validator) validateIRC(cfg *IRCConfig) {
	names := make(map[string]bool)

	for i, srv := range cfg.Servers {
		prefix := fmt.Sprintf("irc.servers[%d]", i)

		name := strings.TrimSpace(srv.Name)
		if name == "" {
			v.addError(prefix+".name", "server name is required")
		} else if strings.ContainsAny(name, " :") {
			v.addError(prefix+".name", "server name must not contain spaces or colons")
		} else if names[name] {
			v.addError(prefix+".name", fmt.Sprintf("duplicate server name: %s", name))
		} else {
			names[name] = true
		}

		if !srv.Enabled {
			continue
		}
		if strings.TrimSpace(srv.Host) == "" {
			v.addError(prefix+".host", "host is required when the server is enabled")
		}
		if srv.Port < 1 || srv.Port > 65535 {
			v.addError(prefix+".port", "port must be between 1 and 65535")
		}
		if strings.TrimSpace(srv.Nick) == "" {
			v.addError(prefix+".nick", "nick is required when the server is enabled")
		}
		for j, ch := range srv.Join {
			if !strings.HasPrefix(ch, "#") && !strings.HasPrefix(ch, "&") {
				v.addError(fmt.Sprintf("%s.join[%d]", prefix, j), "channel must start with # or &")
			}
		}
	}

	if cfg.ReconnectSeconds < 0 {
		v.addError("irc.reconnect_seconds", "reconnect_seconds must be non-negative")
	}
}

// validateMonitor validates dispatch configuration.
func (v *Validator) validateMonitor(cfg *MonitorConfig) {
	if strings.TrimSpace(cfg.DefaultChannel) == "" {
		v.addError("monitor.default_channel", "default_channel is required")
	}
	if strings.Count(cfg.RequestTemplate, "%s") != 1 || strings.Count(cfg.RequestTemplate, "%") != 1 {
		v.addError("monitor.request_template", "request_template must contain exactly one %s")
	}
	if strings.TrimSpace(cfg.CommandName) == "" || strings.Contains(cfg.CommandName, " ") {
		v.addError("monitor.command_name", "command_name must be a single word")
	}
	if cfg.PatternCacheSize < 0 {
		v.addError("monitor.pattern_cache_size", "pattern_cache_size must be non-negative")
	}
	if cfg.ChannelPollSeconds < 0 {
		v.addError("monitor.channel_poll_seconds", "channel_poll_seconds must be non-negative")
	}
}

// validateStore validates rules persistence configuration.
func (v *Validator) validateStore(cfg *StoreConfig, redis *RedisConfig) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file", "sqlite":
		if strings.TrimSpace(cfg.Dir) == "" {
			v.addError("store.dir", "dir is required for file and sqlite backends")
		}
	case "redis":
		if strings.TrimSpace(redis.Addr) == "" {
			v.addError("redis.addr", "addr is required when store.backend is redis")
		}
	default:
		v.addError("store.backend", "backend must be one of: file, redis, sqlite")
	}
}

// validateBus validates bus configuration.
func (v *Validator) validateBus(cfg *BusConfig, redis *RedisConfig) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "local":
	case "redis":
		if strings.TrimSpace(redis.Addr) == "" {
			v.addError("redis.addr", "addr is required when bus.type is redis")
		}
	default:
		v.addError("bus.type", "type must be one of: local, redis")
	}
}

// validateGateway validates gateway configuration.
func (v *Validator) validateGateway(cfg *GatewayConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		v.addError("gateway.port", "port must be between 1 and 65535")
	}
	if cfg.Host == "" {
		v.addError("gateway.host", "host is required")
	}
}

// validateCron validates scheduled job configuration.
func (v *Validator) validateCron(cfg *CronConfig) {
	if strings.TrimSpace(cfg.BackupSchedule) != "" && strings.TrimSpace(cfg.BackupPath) == "" {
		v.addError("cron.backup_path", "backup_path is required when backup_schedule is set")
	}
}

// addError adds a validation error.
func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// ValidateConfig is a convenience function to validate a configuration.
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.Validate(cfg)
}
