// Package watch rebuilds a site when its sources change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors filesystem paths for changes and invokes a callback
// function when modifications are detected. It uses debouncing to coalesce
// rapid successive changes into a single callback invocation. Changes below
// an ignored path never trigger the callback, so that a rebuild writing into
// the project (derivatives, the output directory, the build cache) does not
// start another one.
type Watcher struct {
	paths    []string
	ignore   []string
	onChange func()
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// New creates a Watcher over paths. A nil logger falls back to slog.Default.
func New(paths, ignore []string, debounce time.Duration, onChange func(), logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	cleaned := make([]string, 0, len(ignore))
	for _, p := range ignore {
		if p != "" {
			cleaned = append(cleaned, filepath.Clean(p))
		}
	}
	return &Watcher{
		paths:    paths,
		ignore:   cleaned,
		onChange: onChange,
		debounce: debounce,
		logger:   logger,
	}
}

// Run watches the configured paths until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()
	w.watcher = fsw

	// fsnotify does not watch recursively, so every directory is added.
	for _, p := range w.paths {
		info, err := os.Stat(p)
		if err != nil {
			// Path may not exist (e.g. no static/ directory); skip.
			continue
		}
		if info.IsDir() {
			if err := w.addRecursive(p); err != nil {
				w.logger.Warn("failed to watch directory", "path", p, "err", err)
			}
		} else if err := fsw.Add(p); err != nil {
			w.logger.Warn("failed to watch file", "path", p, "err", err)
		}
	}

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if w.ignored(event.Name) {
				continue
			}
			w.logger.Debug("source changed", "path", event.Name, "op", event.Op.String())

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.onChange)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "err", err)

		case <-ctx.Done():
			return nil
		}
	}
}

// ignored reports whether path is, or is below, an ignored path.
func (w *Watcher) ignored(path string) bool {
	path = filepath.Clean(path)
	for _, p := range w.ignore {
		if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// addRecursive adds a directory and all its subdirectories to the watcher,
// skipping ignored ones.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}
