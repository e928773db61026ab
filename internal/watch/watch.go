// Package watch re-runs a callback when the files of a model folder change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/dbgate/dbdeploy/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a folder and its subfolders
type Watcher struct {
	dir      string
	callback func(ctx context.Context) error
	watcher  *fsnotify.Watcher

	// Debounce delays the callback until no event arrived for this long.
	Debounce time.Duration
	// Filter selects the files whose changes trigger the callback. Nil accepts every file.
	Filter func(path string) bool
	// OnError receives callback and watcher errors. Nil logs them.
	OnError func(err error)
}

// NewWatcher creates a watcher over dir and every folder below it. Folders created later are
// watched as they appear.
func NewWatcher(dir string, callback func(ctx context.Context) error) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	w := &Watcher{
		dir:      absDir,
		callback: callback,
		watcher:  watcher,
		Debounce: DefaultDebounce,
	}
	if err := w.addTree(absDir); err != nil {
		watcher.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", path, err)
		}
		return nil
	})
}

// Run calls the callback once, then again after every settled change, until ctx is done.
// An error of the first call is returned; later errors go to OnError.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.callback(ctx); err != nil {
		return fmt.Errorf("initial callback failed: %w", err)
	}

	debounceTimer := time.NewTimer(w.Debounce)
	debounceTimer.Stop()
	var debounceCh <-chan time.Time

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if err := w.addTree(event.Name); err != nil {
					logger.Component("watch").Debug("Failed to watch new path", "path", event.Name, "error", err)
				}
			}
			if event.Op == fsnotify.Chmod || !w.accepts(event.Name) {
				continue
			}
			logger.Component("watch").Debug("Model file changed", "path", event.Name, "op", event.Op.String())
			debounceTimer.Reset(w.Debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			debounceCh = nil
			if err := w.callback(ctx); err != nil {
				w.report(err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.report(fmt.Errorf("watch error: %w", err))

		case <-ctx.Done():
			debounceTimer.Stop()
			return nil
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	return w.Filter == nil || w.Filter(path)
}

func (w *Watcher) report(err error) {
	if w.OnError != nil {
		w.OnError(err)
		return
	}
	logger.Component("watch").Error("Watch callback failed", "error", err)
}
