package toolreg

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/hivemind/internal/state"
)

// debounce collapses the burst of events an editor save produces.
const debounce = 150 * time.Millisecond

// SyncResult reports one re-sync triggered by a file change.
type SyncResult struct {
	Count int
	Err   error
}

// Watch re-syncs path into store whenever the file changes, until ctx is
// done. The parent directory is watched so atomic renames are seen. Each
// sync outcome is passed to onSync when it is non-nil; a bad file does not
// stop watching.
func Watch(ctx context.Context, store state.ToolStore, path string, logger *slog.Logger, onSync func(SyncResult)) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			n, err := SyncFile(store, abs)
			if err != nil {
				logger.Warn("tool registry sync failed", "path", abs, "error", err)
			} else {
				logger.Info("tool registry synced", "path", abs, "tools", n)
			}
			if onSync != nil {
				onSync(SyncResult{Count: n, Err: err})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("tool registry watcher error", "error", err)
		}
	}
}
