package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"ongoing/pkg/logger"
)

// ChangeHandler is a callback function called when configuration changes.
type ChangeHandler func(*Config) error

// Watcher monitors the configuration file for changes and triggers reload.
type Watcher struct {
	log      *logger.Logger
	loader   *Loader
	config   *Config
	handlers []ChangeHandler
	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a new configuration watcher.
func NewWatcher(log *logger.Logger, loader *Loader, config *Config) *Watcher {
	return &Watcher{
		log:      log,
		loader:   loader,
		config:   config,
		handlers: make([]ChangeHandler, 0),
	}
}

// AddHandler registers a handler to be called when configuration changes.
func (w *Watcher) AddHandler(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching the configuration file for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.watching = true
	w.mu.Unlock()

	w.loader.viper.OnConfigChange(func(e fsnotify.Event) {
		w.reload(e.Name)
	})
	w.loader.viper.WatchConfig()

	return nil
}

// Stop marks the watcher as stopped. Viper offers no way to cancel
// WatchConfig, so late events after Stop are dropped in reload.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watching = false
}

// GetConfig returns the current configuration (thread-safe).
func (w *Watcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

func (w *Watcher) reload(file string) {
	w.mu.RLock()
	watching := w.watching
	w.mu.RUnlock()
	if !watching {
		return
	}

	newConfig, err := w.loader.Load(w.loader.GetConfigPath())
	if err != nil {
		w.log.Error("Error reloading config", zap.String("file", file), zap.Error(err))
		return
	}
	if err := ValidateConfig(newConfig); err != nil {
		w.log.Error("Reloaded config is invalid, keeping previous", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.config = newConfig
	w.mu.Unlock()

	w.notifyHandlers(newConfig)
}

// notifyHandlers calls all registered handlers with the new configuration.
func (w *Watcher) notifyHandlers(config *Config) {
	w.mu.RLock()
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(config); err != nil {
			w.log.Error("Error in config change handler", zap.Error(err))
		}
	}
}
