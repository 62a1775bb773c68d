package tracker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RequestStop asks the batch running from this state directory to stop after
// its current item.
func (w *Writer) RequestStop() error {
	if err := w.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(w.StopPath, []byte(time.Now().Format(time.RFC3339)+"\n"), 0644)
}

// StopRequested reports whether a stop request file is present.
func (w *Writer) StopRequested() bool {
	_, err := os.Stat(w.StopPath)
	return err == nil
}

// ClearStop removes a pending stop request.
func (w *Writer) ClearStop() error {
	err := os.Remove(w.StopPath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// StopWatcher calls a function when a stop request appears in the state
// directory.
type StopWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	onStop  func()
}

// WatchStop starts watching w.Dir. onStop runs on the watcher goroutine, once
// per request file that appears. A request already present when watching
// starts is delivered immediately.
func (w *Writer) WatchStop(ctx context.Context, onStop func()) (*StopWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsWatcher.Add(w.Dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", w.Dir, err)
	}

	sw := &StopWatcher{path: filepath.Clean(w.StopPath), watcher: fsWatcher, onStop: onStop}
	if w.StopRequested() {
		onStop()
	}
	go sw.run(ctx)
	return sw, nil
}

// Close stops watching.
func (sw *StopWatcher) Close() error {
	return sw.watcher.Close()
}

func (sw *StopWatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == sw.path && event.Op&fsnotify.Create != 0 {
				sw.onStop()
			}
		case _, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
