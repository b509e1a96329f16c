package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Live is the current configuration, swapped atomically. Readers take one
// snapshot per operation with Get and never see a half-applied change.
type Live struct {
	cur atomic.Pointer[Config]

	mu        sync.Mutex
	listeners []func(Config)
}

func NewLive(cfg Config) *Live {
	l := &Live{}
	l.cur.Store(&cfg)
	return l
}

// Get returns the current snapshot. Slices inside it must be treated as read-only.
func (l *Live) Get() Config {
	return *l.cur.Load()
}

// Set replaces the snapshot and notifies listeners.
func (l *Live) Set(cfg Config) {
	l.cur.Store(&cfg)

	l.mu.Lock()
	listeners := append([]func(Config){}, l.listeners...)
	l.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
}

// OnChange registers fn to run after every Set.
func (l *Live) OnChange(fn func(Config)) {
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	l.mu.Unlock()
}

const reloadDebounce = 200 * time.Millisecond

// Watch reloads path into live whenever the file changes, until ctx is done.
// The parent directory is watched so editors that replace the file by rename
// are handled too. A file that fails to load or validate is logged and the
// previous snapshot stays.
func Watch(ctx context.Context, path string, live *Live, logger *slog.Logger) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return err
	}

	target := filepath.Clean(path)
	go func() {
		defer fw.Close()

		var reload <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					reload = time.After(reloadDebounce)
				}

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", slog.String("error", err.Error()))

			case <-reload:
				reload = nil
				cfg, err := Load(path)
				if err == nil {
					err = cfg.Validate()
				}
				if err != nil {
					logger.Error("config reload rejected",
						slog.String("path", path),
						slog.String("error", err.Error()),
					)
					continue
				}
				live.Set(cfg)
				logger.Info("config reloaded", slog.String("path", path))
			}
		}
	}()
	return nil
}
