package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	appLog "entcal/internal/log"
)

// Loader holds the current configuration and reloads it when the file
// changes on disk.
type Loader struct {
	path     string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Loader{path: path, current: cfg}, nil
}

// NewStaticLoader wraps an already loaded config. Watch and Reload are
// no-ops on it.
func NewStaticLoader(cfg *Config) *Loader {
	return &Loader{current: cfg}
}

// Config returns the current (latest) configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers a callback invoked whenever the config reloads.
func (l *Loader) OnChange(fn func(*Config)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch hot-reloads the config on file changes until the returned stop
// function is called. The parent directory is watched so that atomic
// rename-over saves are seen.
func (l *Loader) Watch() (stop func(), err error) {
	if l.path == "" {
		return func() {}, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	dir := filepath.Dir(l.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", dir, err)
	}

	target := filepath.Clean(l.path)
	done := make(chan struct{})
	var once sync.Once
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					if _, err := l.Reload(); err != nil {
						appLog.Error("config reload failed; keeping previous config", err, "path", l.path)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				appLog.Error("config watcher error", err, "path", l.path)
			case <-done:
				return
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload re-reads the config file. Invalid configs are rejected and the
// previous config stays current.
func (l *Loader) Reload() (*Config, error) {
	if l.path == "" {
		return l.Config(), nil
	}
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(*Config), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()

	appLog.Info("config reloaded", "path", l.path, "watch_count", len(cfg.Watch))
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}
