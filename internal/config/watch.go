package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives a freshly loaded configuration, or the error that
// prevented loading it.
type ReloadFunc func(cfg *Config, err error)

// Watcher reloads a configuration file when it changes.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before reloading.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithWatchLogger sets the watcher logger.
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// NewWatcher watches the config file at path. The parent directory is
// watched so that editors replacing the file by rename are noticed.
func NewWatcher(path string, opts ...WatchOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		fsw:      fsw,
		debounce: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.logger = w.logger.With("config", abs)
	return w, nil
}

// Run delivers reloads to fn until ctx is done. It closes the watcher
// before returning.
func (w *Watcher) Run(ctx context.Context, fn ReloadFunc) error {
	defer w.fsw.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("config changed", "op", ev.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-timer.C:
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload failed", "error", err)
			} else {
				w.logger.Info("config reloaded")
			}
			fn(cfg, err)
		}
	}
}

// Close stops watching. Run returns once its event channel closes.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
