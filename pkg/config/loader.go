package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	viper *viper.Viper
	path  string
}

// ConfigPathEnv overrides the config file location when no explicit path is given.
const ConfigPathEnv = "ONGOING_CONFIG_FILE"

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".ongoing"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("ONGOING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v}
}

// NewLoaderWithPath creates a loader bound to an explicit config file.
// An empty path falls back to ONGOING_CONFIG_FILE and the default location.
func NewLoaderWithPath(path string) *Loader {
	l := NewLoader()
	l.path = strings.TrimSpace(path)
	return l
}

// Load loads the configuration from file and environment variables.
// If configPath is empty, ONGOING_CONFIG_FILE and then the default
// location are used. A missing file is created with defaults.
func (l *Loader) Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(configPath) == "" {
		configPath = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	explicitPath := strings.TrimSpace(configPath) != ""
	resolvedPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	if explicitPath {
		// Keep -c config colocated with its data by default.
		cfg.Store.Dir = filepath.Dir(resolvedPath)
		l.viper.SetConfigFile(resolvedPath)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if err := SaveToFile(cfg, resolvedPath); err != nil {
				return nil, fmt.Errorf("creating config file: %w", err)
			}
			l.path = resolvedPath
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	l.path = resolvedPath
	if !explicitPath {
		if used := strings.TrimSpace(l.viper.ConfigFileUsed()); used != "" {
			l.path = used
		}
	}

	cfg.normalize()
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	return l.Load(path)
}

// Save saves the configuration to a file.
func (l *Loader) Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	format := "json"
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		format = "yaml"
	case ".toml":
		format = "toml"
	}

	v := viper.New()
	v.SetConfigType(format)

	v.Set("logger", cfg.Logger)
	v.Set("irc", cfg.IRC)
	v.Set("monitor", cfg.Monitor)
	v.Set("admin", cfg.Admin)
	v.Set("store", cfg.Store)
	v.Set("redis", cfg.Redis)
	v.Set("bus", cfg.Bus)
	v.Set("gateway", cfg.Gateway)
	v.Set("cron", cfg.Cron)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SaveToFile is a convenience function to save config without creating a Loader.
func SaveToFile(cfg *Config, path string) error {
	loader := NewLoader()
	return loader.Save(path, cfg)
}

// GetConfigHome returns the default config directory.
func GetConfigHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".ongoing"), nil
}

// GetConfigPath returns the path of the loaded config file.
func (l *Loader) GetConfigPath() string {
	return l.path
}

func resolveConfigPath(configPath string) (string, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		home, err := GetConfigHome()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, "config.json")
	}
	abs, err := filepath.Abs(ExpandPath(path))
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}

// normalize fills values a partial config file left empty.
func (c *Config) normalize() {
	defaults := DefaultConfig()

	if strings.TrimSpace(c.Monitor.DefaultChannel) == "" {
		c.Monitor.DefaultChannel = defaults.Monitor.DefaultChannel
	}
	c.Monitor.DefaultChannel = strings.ToLower(c.Monitor.DefaultChannel)
	if strings.TrimSpace(c.Monitor.RequestTemplate) == "" {
		c.Monitor.RequestTemplate = defaults.Monitor.RequestTemplate
	}
	if strings.TrimSpace(c.Monitor.CommandName) == "" {
		c.Monitor.CommandName = defaults.Monitor.CommandName
	}
	if c.Admin.CommandPrefix == "" {
		c.Admin.CommandPrefix = defaults.Admin.CommandPrefix
	}
	if c.Store.Backend == "" {
		c.Store.Backend = defaults.Store.Backend
	}
	if c.Bus.Type == "" {
		c.Bus.Type = defaults.Bus.Type
	}
	if c.Bus.BufferSize <= 0 {
		c.Bus.BufferSize = defaults.Bus.BufferSize
	}
	for i := range c.IRC.Servers {
		srv := &c.IRC.Servers[i]
		if srv.Port == 0 {
			if srv.TLS {
				srv.Port = 6697
			} else {
				srv.Port = 6667
			}
		}
		if srv.User == "" {
			srv.User = srv.Nick
		}
		if srv.RealName == "" {
			srv.RealName = srv.Nick
		}
	}
}
