// Package watch signals when the manifest or any of its sources change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/schaermu/stickupdate/internal/entry"
	"github.com/schaermu/stickupdate/internal/manifest"
)

// Watcher coalesces filesystem events on a set of directories into a single
// pending-change signal
type Watcher struct {
	fw      *fsnotify.Watcher
	changes chan struct{}
	logger  *slog.Logger
}

// New starts watching paths. Directories are not watched recursively.
func New(paths []string, logger *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, path := range paths {
		if err := fw.Add(path); err != nil {
			// Release the handles for paths added so far
			if cerr := fw.Close(); cerr != nil {
				logger.Warn("failed to close file watcher", "error", cerr)
			}
			return nil, fmt.Errorf("failed to watch %q: %w", path, err)
		}
	}
	logger.Debug("watching paths", "paths", paths)

	w := &Watcher{
		fw:      fw,
		changes: make(chan struct{}, 1),
		logger:  logger,
	}
	go w.combine()
	return w, nil
}

func (w *Watcher) combine() {
	defer close(w.changes)
	events, errs := w.fw.Events, w.fw.Errors
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// relevant drops attribute-only events, which fire on every read on some
// platforms
func relevant(ev fsnotify.Event) bool {
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// Changes delivers at most one pending signal no matter how many events
// arrived. It is closed after Close.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Wait blocks until a change arrives and then until no further change has
// been seen for quiet. It returns ctx.Err() when ctx is cancelled first.
func (w *Watcher) Wait(ctx context.Context, quiet time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-w.changes:
		if !ok {
			return fmt.Errorf("watcher closed")
		}
	}

	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-w.changes:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			timer.Reset(quiet)
		case <-timer.C:
			return nil
		}
	}
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.fw.Close()
}

// Paths returns the directories to watch for a manifest: the manifest's own
// directory, the parent directory of every source, and every bundle root.
func Paths(manifestPath string, entries []manifest.Entry) []string {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	if abs, err := filepath.Abs(manifestPath); err == nil {
		manifestPath = abs
	}
	add(filepath.Dir(manifestPath))
	for _, ent := range entries {
		add(filepath.Dir(ent.Path))
		if ent.Kind == entry.KindBundle {
			add(ent.Path)
		}
	}

	sort.Strings(paths)
	return paths
}
