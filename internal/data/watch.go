package data

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the catalog whenever the file at path changes.
// Blocks until ctx is cancelled. Intended to run under the server's
// errgroup; a reload failure is logged, not fatal.
func (c *SpellCatalog) Watch(ctx context.Context, path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory, not the file: editors replace files on save,
	// which drops a file-level watch.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := c.ReloadFrom(path); err != nil {
				slog.Warn("spell catalog reload failed", "path", path, "error", err)
				continue
			}
			slog.Info("spell catalog reloaded", "path", path, "spells", c.Len())
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("spell catalog watcher error", "error", err)
		}
	}
}
