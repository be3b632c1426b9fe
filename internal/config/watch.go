package config

import (
	"log/slog"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher holds the live config behind an atomic pointer and reloads it
// whenever RUNTIME_CONFIG_FILE changes on disk, adapted from
// mihaisavezi-claude-code-open's watchConfigFile.
type Watcher struct {
	value  atomic.Value
	path   string
	getenv func(string) string
	log    *slog.Logger
}

// NewWatcher loads the initial config and, if RUNTIME_CONFIG_FILE is set,
// prepares to watch it. Call Start to begin watching in the background.
func NewWatcher(getenv func(string) string, log *slog.Logger) (*Watcher, error) {
	cfg, err := Load(getenv)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: getenv("RUNTIME_CONFIG_FILE"), getenv: getenv, log: log}
	w.value.Store(cfg)
	return w, nil
}

// Current returns the most recently loaded config.
func (w *Watcher) Current() *Config {
	return w.value.Load().(*Config)
}

// Start watches the config file for writes and reloads on change. It
// returns immediately if no RUNTIME_CONFIG_FILE was configured. It runs
// until the returned stop function is called, or the process exits;
// callers that don't need to stop it may ignore the returned stop function.
func (w *Watcher) Start() (stop func(), err error) {
	if w.path == "" {
		return func() {}, nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(w.path); err != nil {
		watcher.Close()
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					cfg, err := Load(w.getenv)
					if err != nil {
						w.log.Error("reload config", "error", err)
						continue
					}
					w.value.Store(cfg)
					w.log.Info("config reloaded", "path", w.path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.log.Error("config watcher error", "error", err)
			case <-done:
				watcher.Close()
				return
			}
		}
	}()
	return func() { close(done) }, nil
}
