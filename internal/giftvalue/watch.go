package giftvalue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces editor save bursts into a single reload.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the estimator's table whenever the file at path changes.
// If the file exists at startup it is loaded immediately. Blocks until
// ctx is cancelled. A missing file is not an error: the watcher waits
// for it to appear in the parent directory.
func (e *Estimator) Watch(ctx context.Context, path string) error {
	if err := e.LoadFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("initial gift table load failed", "path", path, "error", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files on save
	// and a direct file watch would be lost after the first rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := e.LoadFile(path); err != nil {
				e.logger.Warn("gift table reload failed", "path", path, "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("gift table watcher error", "error", err)

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		}
	}
}
