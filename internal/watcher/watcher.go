// Package watcher runs a callback whenever the registry file changes on
// disk. watch mode regenerates redirects with it; serve publishes events.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events a single save produces.
const DefaultDebounce = 200 * time.Millisecond

// Func is called once at start and after every settled change.
type Func func(ctx context.Context) error

// Watch observes the directory holding registryPath and calls fn after
// changes to that file, until ctx is cancelled. The directory is watched
// rather than the file because saves replace the file by rename.
// Errors returned by fn are logged and do not stop the watcher.
func Watch(ctx context.Context, registryPath string, debounce time.Duration, logger *slog.Logger, fn Func) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(registryPath)
	if err != nil {
		return fmt.Errorf("watcher: resolve %s: %w", registryPath, err)
	}
	dir, name := filepath.Split(abs)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watcher: watch %s: %w", dir, err)
	}

	logger.Info("watcher: started", slog.String("path", abs))
	run(ctx, logger, fn)

	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			run(ctx, logger, fn)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			logger.Debug("watcher: registry changed", slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func run(ctx context.Context, logger *slog.Logger, fn Func) {
	if err := fn(ctx); err != nil {
		logger.Warn("watcher: callback failed", slog.String("error", err.Error()))
	}
}
