package modhost

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the binding table whenever the backing file changes on
// disk. It blocks until the context is cancelled. The watch covers the
// file's directory so atomic rename-style writers are observed.
func (r *DomainRegistry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating binding watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(r.store.Path())
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}
	r.log.Debug("Watching binding table", "path", target)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.Load(); err != nil {
				r.log.Error("Binding table reload failed", "path", target, "error", err)
				continue
			}
			r.log.Info("Binding table reloaded", "path", target)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Error("Binding watcher error", "error", err)
		}
	}
}
