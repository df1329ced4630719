package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Invalidator is a cached tier that can be told its backing file changed.
type Invalidator interface {
	Path() string
	Invalidate()
}

// Watch invalidates each store whenever its backing file is written,
// created, renamed or removed. Directories are watched rather than files so
// atomic replaces are seen. It blocks until ctx is done.
func Watch(ctx context.Context, stores ...Invalidator) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	byPath := make(map[string][]Invalidator)
	dirs := make(map[string]bool)
	for _, s := range stores {
		if s.Path() == "" {
			continue
		}
		abs, err := filepath.Abs(s.Path())
		if err != nil {
			return fmt.Errorf("resolving %s: %w", s.Path(), err)
		}
		byPath[abs] = append(byPath[abs], s)
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&relevant == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			for _, s := range byPath[abs] {
				slog.Info("metadata file changed, reloading", "path", abs, "op", event.Op.String())
				s.Invalidate()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("metadata watcher error", "error", err)
		}
	}
}
