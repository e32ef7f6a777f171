package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	domainconfig "literature-flow/domain/config"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const debounceDuration = 100 * time.Millisecond

// LayoutWatcher reloads the layout section of the config file when it changes
type LayoutWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	current  *domainconfig.LayoutConfig
	mu       sync.RWMutex
	onChange []func(*domainconfig.LayoutConfig)
	logger   *zap.Logger
	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// layoutFile is the part of the config file the watcher reads
type layoutFile struct {
	Layout domainconfig.LayoutConfig `yaml:"layout"`
}

// NewLayoutWatcher loads the file once and starts watching it
func NewLayoutWatcher(path string, logger *zap.Logger) (*LayoutWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	layout, err := loadLayoutFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial layout: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// The directory is watched too so editors that save by rename are seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	return &LayoutWatcher{
		path:    path,
		watcher: watcher,
		current: layout,
		logger:  logger.Named("config_watcher"),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching for changes
func (w *LayoutWatcher) Start() {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.watchLoop()
	w.logger.Info("Configuration watcher started", zap.String("path", w.path))
}

// Stop stops watching and waits for the loop to exit
func (w *LayoutWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.mu.RLock()
		started := w.started
		w.mu.RUnlock()
		if started {
			<-w.done
		}
		w.logger.Info("Configuration watcher stopped")
	})
}

func (w *LayoutWatcher) watchLoop() {
	defer close(w.done)

	debounce := time.NewTimer(debounceDuration)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce.Reset(debounceDuration)
			}

		case <-debounce.C:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("File watcher error", zap.Error(err))
		}
	}
}

func (w *LayoutWatcher) reload() {
	w.logger.Info("Configuration file changed, reloading", zap.String("path", w.path))

	layout, err := loadLayoutFromFile(w.path)
	if err != nil {
		w.logger.Error("Failed to reload configuration", zap.Error(err))
		return
	}
	if err := layout.Validate(); err != nil {
		w.logger.Error("Invalid layout configuration, keeping current", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = layout
	handlers := append([]func(*domainconfig.LayoutConfig){}, w.onChange...)
	w.mu.Unlock()

	for _, handler := range handlers {
		copied := *layout
		handler(&copied)
	}
	w.logger.Info("Layout configuration reloaded")
}

// OnChange registers a callback run after each successful reload
func (w *LayoutWatcher) OnChange(handler func(*domainconfig.LayoutConfig)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

// Current returns a copy of the last valid layout
func (w *LayoutWatcher) Current() *domainconfig.LayoutConfig {
	w.mu.RLock()
	defer w.mu.RUnlock()
	layout := *w.current
	return &layout
}

// loadLayoutFromFile reads the layout section over the defaults
func loadLayoutFromFile(path string) (*domainconfig.LayoutConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	file := layoutFile{Layout: *domainconfig.DefaultLayoutConfig()}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &file.Layout, nil
}
