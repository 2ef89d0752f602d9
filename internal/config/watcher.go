package config

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads path on every write or create event and hands the whole
// reloaded Config to onReload. It applies no field itself; which fields take
// effect live is decided by onReload.
type Watcher struct {
	path     string
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	onReload func(Config)
}

// NewWatcher starts watching path for writes. Call Close when done.
func NewWatcher(path string, logger *slog.Logger, onReload func(Config)) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{path: path, logger: logger, watcher: fsw, onReload: onReload}
	return w, nil
}

// Run blocks, reloading on each filesystem write or create event, until ctx is
// canceled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("config reload failed, keeping previous values", "error", err, "path", w.path)
		return
	}
	w.logger.Info("config reloaded",
		"path", w.path,
		"logging_level", cfg.Logging.Level,
		"max_concurrent_workers", cfg.Scheduler.MaxConcurrentWorkers,
	)
	if w.onReload != nil {
		w.onReload(*cfg)
	}
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
