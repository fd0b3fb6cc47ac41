package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watcher nudges the worker when new files land in the upload directory.
// The worker still picks documents up from the database, so a missed
// event only delays processing until the next interval scan.
type Watcher struct {
	dir    string
	worker *Worker
}

// NewWatcher creates a watcher over dir that triggers worker scans.
func NewWatcher(dir string, worker *Worker) *Watcher {
	return &Watcher{dir: dir, worker: worker}
}

// Run watches the directory until the context is canceled. Create and
// write events are coalesced within the debounce window.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return err
	}
	slog.Info("Watching upload directory", "dir", w.dir)

	var mu sync.Mutex
	var debounce *time.Timer
	fire := func() {
		slog.Debug("Upload directory changed, triggering scan")
		w.worker.Trigger()
	}

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			mu.Lock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, fire)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Upload watcher error", "dir", w.dir, "error", err)
		}
	}
}
