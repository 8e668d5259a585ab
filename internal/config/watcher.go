package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 500 * time.Millisecond

// ConfigWatcher reloads the YAML file when it changes and notifies callbacks.
// Reloading only runs in development and only when the config came from a
// file.
type ConfigWatcher struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)

	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	load     func(path string) (*Config, error)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewConfigWatcher starts watching initial.File. The returned watcher is
// inert when hot reloading does not apply.
func NewConfigWatcher(initial *Config, logger *zap.Logger) (*ConfigWatcher, error) {
	return newConfigWatcher(initial, logger, defaultDebounce, Load)
}

func newConfigWatcher(initial *Config, logger *zap.Logger, debounce time.Duration, load func(string) (*Config, error)) (*ConfigWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &ConfigWatcher{
		config:   initial,
		logger:   logger,
		debounce: debounce,
		load:     load,
		stopCh:   make(chan struct{}),
	}

	if initial.Environment != Development || initial.File == "" {
		logger.Info("Configuration hot reloading disabled",
			zap.String("environment", string(initial.Environment)),
		)
		return w, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory.
	if err := fsWatcher.Add(filepath.Dir(initial.File)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", initial.File, err)
	}
	w.watcher = fsWatcher
	go w.watchLoop(filepath.Clean(initial.File))

	logger.Info("Configuration hot reloading enabled", zap.String("file", initial.File))
	return w, nil
}

// OnChange registers fn to run after every successful reload.
func (w *ConfigWatcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

// Current returns the latest configuration.
func (w *ConfigWatcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Stop ends watching. It is safe to call more than once.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *ConfigWatcher) watchLoop(file string) {
	defer w.watcher.Close()

	var timer *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != file || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.logger.Debug("Configuration file changed",
				zap.String("file", event.Name),
				zap.String("operation", event.Op.String()),
			)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() { w.reload(file) })

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("Stopping configuration watcher")
			return
		}
	}
}

func (w *ConfigWatcher) reload(file string) {
	next, err := w.load(file)
	if err != nil {
		w.logger.Error("Invalid configuration after reload, keeping previous", zap.Error(err))
		return
	}

	w.mu.Lock()
	prev := w.config
	w.config = next
	callbacks := append([]func(*Config){}, w.callbacks...)
	w.mu.Unlock()

	if prev.LogLevel != next.LogLevel {
		w.logger.Info("Log level changed", zap.String("from", prev.LogLevel), zap.String("to", next.LogLevel))
	}
	if prev.Features.FallbackTables != next.Features.FallbackTables {
		w.logger.Info("Fallback tables toggled", zap.Bool("enabled", next.Features.FallbackTables))
	}

	for _, fn := range callbacks {
		fn(next)
	}
	w.logger.Info("Configuration reloaded", zap.Int("callbacks_notified", len(callbacks)))
}
