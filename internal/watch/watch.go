// Package watch reloads bridge configuration when its backing YAML
// file changes, and exposes a disable sentinel an instructor console
// can drop on disk to pause new connections without killing the
// process. Grounded on the retrieval pack's fsnotify usage pattern (a
// single watcher goroutine fanning filesystem events to typed
// callbacks), adapted here from source-file reloading to config hot-reload.
package watch

import (
	"context"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/config"
	"github.com/AdvancedModularManikin/tcp-bridge/internal/logger"
)

// ConfigWatcher watches a config file's directory for changes to the
// file itself and for creation/removal of a separate disable sentinel.
type ConfigWatcher struct {
	watcher      *fsnotify.Watcher
	configPath   string
	sentinelPath string
	onReload     func(config.Config)

	mu       sync.RWMutex
	disabled bool
}

// NewConfigWatcher watches dir for changes to configPath and
// sentinelPath (both expected to live in dir). onReload is called with
// the freshly loaded config whenever configPath changes; it may be nil.
func NewConfigWatcher(dir, configPath, sentinelPath string, onReload func(config.Config)) (*ConfigWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}
	_, statErr := os.Stat(sentinelPath)
	return &ConfigWatcher{
		watcher:      w,
		configPath:   configPath,
		sentinelPath: sentinelPath,
		onReload:     onReload,
		disabled:     statErr == nil,
	}, nil
}

// Run processes filesystem events until ctx is canceled or the
// watcher's channels close.
func (cw *ConfigWatcher) Run(ctx context.Context) {
	defer cw.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handle(ev)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watch error", "error", err)
		}
	}
}

func (cw *ConfigWatcher) handle(ev fsnotify.Event) {
	switch ev.Name {
	case cw.configPath:
		if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := config.Load(cw.configPath)
		if err != nil {
			logger.Warn("config reload failed", "path", cw.configPath, "error", err)
			return
		}
		logger.Info("config reloaded", "path", cw.configPath)
		if cw.onReload != nil {
			cw.onReload(cfg)
		}

	case cw.sentinelPath:
		switch {
		case ev.Op&fsnotify.Create != 0:
			cw.setDisabled(true)
		case ev.Op&fsnotify.Remove != 0:
			cw.setDisabled(false)
		}
	}
}

func (cw *ConfigWatcher) setDisabled(v bool) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.disabled = v
	logger.Info("bridge accept state changed", "disabled", v)
}

// Disabled reports whether the disable sentinel is currently present.
func (cw *ConfigWatcher) Disabled() bool {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.disabled
}
