package scenario

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period Watch waits for after a change before
// re-running. Editors often write a file in several steps.
const DefaultDebounce = 200 * time.Millisecond

// RunFunc receives the outcome of each run of a watched scenario. err is set
// when the file could not be loaded or the run was canceled.
type RunFunc func(res *Result, err error)

// Watch loads and runs the scenario at path, then runs it again every time
// the file is written or replaced, until ctx is done. The parent directory
// is watched so that editors saving through a rename are noticed.
func (r *Runner) Watch(ctx context.Context, path string, debounce time.Duration, fn RunFunc) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(path), err)
	}

	logger := r.logger.WithComponent("scenario").With("path", path)
	r.runFile(ctx, path, fn)

	// Debounce: collect events for a short period
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer
	defer debounceTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("scenario file changed", "op", ev.Op.String())
			debounceTimer.Reset(debounce)

		case <-debounceTimer.C:
			r.runFile(ctx, path, fn)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)
		}
	}
}

func (r *Runner) runFile(ctx context.Context, path string, fn RunFunc) {
	s, err := Load(path)
	if err != nil {
		fn(nil, err)
		return
	}
	fn(r.Run(ctx, s))
}
