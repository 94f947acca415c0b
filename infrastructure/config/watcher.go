package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DynamicConfig is the runtime-tunable portion of the configuration,
// reloaded from disk without a restart.
type DynamicConfig struct {
	Limits   TurnLimits     `yaml:"limits"`
	Metadata ConfigMetadata `yaml:"metadata"`
}

// TurnLimits bounds what a single turn may carry
type TurnLimits struct {
	MaxPromptLength    int `yaml:"maxPromptLength"`
	MaxContextMessages int `yaml:"maxContextMessages"`
}

// ConfigMetadata identifies a configuration revision
type ConfigMetadata struct {
	Version   string    `yaml:"version"`
	UpdatedAt time.Time `yaml:"updatedAt"`
}

// DefaultDynamicConfig returns the tuning used when no file is configured
func DefaultDynamicConfig() *DynamicConfig {
	return &DynamicConfig{
		Limits: TurnLimits{
			MaxPromptLength:    1 << 20,
			MaxContextMessages: 512,
		},
	}
}

// ConfigWatcher watches the dynamic configuration file for changes
type ConfigWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *DynamicConfig
	mu       sync.RWMutex
	onChange []func(*DynamicConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
}

// NewConfigWatcher loads the initial dynamic config and prepares the
// file watcher; call Start to begin reloading.
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	cfg, err := loadDynamicConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load initial dynamic config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}
	// Editors and configmap updates often replace the file, so watch the
	// directory too to catch the rename.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		logger.Warn("failed to watch config directory", zap.Error(err))
	}

	return &ConfigWatcher{
		path:    configPath,
		watcher: watcher,
		current: cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Current returns the active dynamic configuration
func (w *ConfigWatcher) Current() *DynamicConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked after each successful reload
func (w *ConfigWatcher) OnChange(fn func(*DynamicConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Start begins watching for configuration changes
func (w *ConfigWatcher) Start() {
	go w.watchLoop()
	w.logger.Info("configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching for configuration changes
func (w *ConfigWatcher) Stop() {
	close(w.stopCh)
	w.watcher.Close()
}

func (w *ConfigWatcher) watchLoop() {
	var debounce *time.Timer
	const debounceDuration = 100 * time.Millisecond

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDuration, w.reload)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *ConfigWatcher) reload() {
	cfg, err := loadDynamicConfig(w.path)
	if err != nil {
		w.logger.Error("failed to reload dynamic config, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = cfg
	handlers := append(([]func(*DynamicConfig))(nil), w.onChange...)
	w.mu.Unlock()

	w.logger.Info("dynamic configuration reloaded",
		zap.String("version", cfg.Metadata.Version),
		zap.Int("maxPromptLength", cfg.Limits.MaxPromptLength))

	for _, fn := range handlers {
		go fn(cfg)
	}
}

func loadDynamicConfig(path string) (*DynamicConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultDynamicConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Limits.MaxPromptLength <= 0 {
		return nil, fmt.Errorf("maxPromptLength must be positive")
	}
	if cfg.Limits.MaxContextMessages <= 0 {
		return nil, fmt.Errorf("maxContextMessages must be positive")
	}
	return cfg, nil
}
