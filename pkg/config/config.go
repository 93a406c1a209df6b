// Package config provides configuration management for ongoing.
// It uses Viper for flexible configuration loading with support for:
// - Multiple formats (JSON, YAML, TOML)
// - Environment variables
// - Hot-reload
// - Default values
//
// This is the daemon's own configuration (IRC servers, storage backend,
// logging). Bot rules and filters live in the rules store, not here.
package config

import (
	"os"
	"path/filepath"
	"sync"
)

// Config represents the complete ongoing configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" json:"logger"`
	IRC     IRCConfig     `mapstructure:"irc" json:"irc"`
	Monitor MonitorConfig `mapstructure:"monitor" json:"monitor"`
	Admin   AdminConfig   `mapstructure:"admin" json:"admin"`
	Store   StoreConfig   `mapstructure:"store" json:"store"`
	Redis   RedisConfig   `mapstructure:"redis" json:"redis"`
	Bus     BusConfig     `mapstructure:"bus" json:"bus"`
	Gateway GatewayConfig `mapstructure:"gateway" json:"gateway"`
	Cron    CronConfig    `mapstructure:"cron" json:"cron"`
	mu      sync.RWMutex
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	OutputPath  string `mapstructure:"output_path" json:"output_path"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress"`
	Development bool   `mapstructure:"development" json:"development"`
}

// IRCConfig contains the IRC connections to maintain.
type IRCConfig struct {
	Servers          []IRCServerConfig `mapstructure:"servers" json:"servers"`
	ReconnectSeconds int               `mapstructure:"reconnect_seconds" json:"reconnect_seconds"`
	TimeoutSeconds   int               `mapstructure:"timeout_seconds" json:"timeout_seconds"`
}

// IRCServerConfig describes a single IRC network connection.
// Name is the server identifier carried on inbound events and used to
// route the retrieval request back to the same network.
type IRCServerConfig struct {
	Name          string   `mapstructure:"name" json:"name"`
	Enabled       bool     `mapstructure:"enabled" json:"enabled"`
	Host          string   `mapstructure:"host" json:"host"`
	Port          int      `mapstructure:"port" json:"port"`
	TLS           bool     `mapstructure:"tls" json:"tls"`
	TLSSkipVerify bool     `mapstructure:"tls_skip_verify" json:"tls_skip_verify"`
	Password      string   `mapstructure:"password" json:"password"`
	Nick          string   `mapstructure:"nick" json:"nick"`
	User          string   `mapstructure:"user" json:"user"`
	RealName      string   `mapstructure:"realname" json:"realname"`
	Join          []string `mapstructure:"join" json:"join"`
}

// MonitorConfig tunes the dispatch cycle.
type MonitorConfig struct {
	// DefaultChannel is used until a channel is set through the admin surface.
	DefaultChannel string `mapstructure:"default_channel" json:"default_channel"`
	// RequestTemplate renders the retrieval request; must contain one %s.
	RequestTemplate string `mapstructure:"request_template" json:"request_template"`
	// CommandName is the admin command word (e.g. "ongoing").
	CommandName string `mapstructure:"command_name" json:"command_name"`
	// PatternCacheSize bounds the compiled regular expression cache.
	PatternCacheSize int `mapstructure:"pattern_cache_size" json:"pattern_cache_size"`
	// ChannelPollSeconds is how often the daemon rereads the stored channel
	// to pick up changes made by another process (0 disables polling).
	ChannelPollSeconds int `mapstructure:"channel_poll_seconds" json:"channel_poll_seconds"`
}

// AdminConfig controls who may run admin commands over IRC.
type AdminConfig struct {
	AllowFrom     []string `mapstructure:"allow_from" json:"allow_from"`
	CommandPrefix string   `mapstructure:"command_prefix" json:"command_prefix"`
}

// StoreConfig selects the rules persistence backend.
type StoreConfig struct {
	Backend string `mapstructure:"backend" json:"backend"` // "file", "redis" or "sqlite"
	Dir     string `mapstructure:"dir" json:"dir"`
	Prefix  string `mapstructure:"prefix" json:"prefix"`
}

// RedisConfig is shared by the redis store and bus backends.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

// BusConfig selects the message bus backend.
type BusConfig struct {
	Type       string `mapstructure:"type" json:"type"` // "local" or "redis"
	BufferSize int    `mapstructure:"buffer_size" json:"buffer_size"`
	Prefix     string `mapstructure:"prefix" json:"prefix"`
}

// GatewayConfig for the HTTP status/admin API.
type GatewayConfig struct {
	Enabled   bool   `mapstructure:"enabled" json:"enabled"`
	Host      string `mapstructure:"host" json:"host"`
	Port      int    `mapstructure:"port" json:"port"`
	JWTSecret string `mapstructure:"jwt_secret" json:"jwt_secret"`
}

// CronConfig for scheduled maintenance jobs. Empty schedules disable a job.
type CronConfig struct {
	StatsSchedule  string `mapstructure:"stats_schedule" json:"stats_schedule"`
	BackupSchedule string `mapstructure:"backup_schedule" json:"backup_schedule"`
	BackupPath     string `mapstructure:"backup_path" json:"backup_path"`
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".ongoing")

	return &Config{
		Logger: LoggerConfig{
			Level:      "info",
			OutputPath: filepath.Join(dataDir, "logs", "ongoing.log"),
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		},
		IRC: IRCConfig{
			Servers:          []IRCServerConfig{},
			ReconnectSeconds: 30,
			TimeoutSeconds:   300,
		},
		Monitor: MonitorConfig{
			DefaultChannel:     "#news",
			RequestTemplate:    "xdcc send %s",
			CommandName:        "ongoing",
			PatternCacheSize:   256,
			ChannelPollSeconds: 15,
		},
		Admin: AdminConfig{
			AllowFrom:     []string{},
			CommandPrefix: "!",
		},
		Store: StoreConfig{
			Backend: "file",
			Dir:     dataDir,
			Prefix:  "ongoing:",
		},
		Bus: BusConfig{
			Type:       "local",
			BufferSize: 100,
			Prefix:     "ongoing:bus:",
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    18795,
		},
		Cron: CronConfig{
			StatsSchedule: "@hourly",
			BackupPath:    filepath.Join(dataDir, "backups", "rules.yaml"),
		},
	}
}

// DataDir returns the expanded storage directory.
func (c *Config) DataDir() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ExpandPath(c.Store.Dir)
}

// EnabledServers returns the IRC servers marked as enabled.
func (c *Config) EnabledServers() []IRCServerConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	servers := make([]IRCServerConfig, 0, len(c.IRC.Servers))
	for _, srv := range c.IRC.Servers {
		if srv.Enabled {
			servers = append(servers, srv)
		}
	}
	return servers
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
