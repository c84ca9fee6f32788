package discovery

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is the quiet period after the most recent filesystem event
// before the re-scan fires; each new event restarts it (§4.4).
const defaultDebounce = 200 * time.Millisecond

// RescanFunc re-scans every discovery root and applies the fresh Result,
// clearing the Registry while preserving the Core adapter's built-ins.
type RescanFunc func(ctx context.Context)

// Watcher recursively watches a Scanner's roots and debounces filesystem
// events into a single RescanFunc call, grounded on
// haasonsaas-nexus/internal/skills/manager.go's watchLoop/refreshWatches
// debounce-timer pattern.
type Watcher struct {
	scanner  *Scanner
	rescan   RescanFunc
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher returns a Watcher for scanner's roots. debounce <= 0 uses the
// default 200ms.
func NewWatcher(scanner *Scanner, rescan RescanFunc, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{scanner: scanner, rescan: rescan, debounce: debounce}
}

// Start begins watching. Safe to call once; call Stop before calling Start
// again.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, root := range w.scanner.roots {
		err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return fsw.Add(path)
			}
			return nil
		})
		if err != nil {
			_ = fsw.Close()
			return err
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.watcher = fsw
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.loop(watchCtx, fsw)
	return nil
}

// Stop cancels the watch loop and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	fsw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}
	err := fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer w.wg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleRescan := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() { w.rescan(ctx) })
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				if event.Op&fsnotify.Create != 0 {
					_ = fsw.Add(event.Name) // best-effort: watch newly created subdirectories too
				}
				scheduleRescan()
			}
		case _, ok := <-fsw.Errors:
			if !ok {
				return
			}
		}
	}
}
