// Package watchdog watches the socket directory for out-of-band removal of
// socket files and notifies the registry so the affected entries can be
// force-cleaned instead of lingering with a dead resource.
package watchdog

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/valkey-io/valkey-glide-sub007/internal/logger"
)

// Watchdog invalidates registry entries whose socket file vanished from
// under them (peer process died, manual unlink, tmp reaper).
type Watchdog struct {
	dir        string
	invalidate func(path string)
	watcher    *fsnotify.Watcher
	log        *logger.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates a watchdog over dir. The invalidate callback is invoked with
// the full path of every file removed from dir, whatever its name; the
// callback decides which paths it tracks and must treat the rest as no-ops.
func New(dir string, invalidate func(path string)) (*Watchdog, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watchdog{
		dir:        dir,
		invalidate: invalidate,
		watcher:    watcher,
		log:        logger.Global().WithPrefix("watchdog"),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching the socket directory, creating it if needed.
func (w *Watchdog) Start() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create watched directory: %w", err)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	go w.watchLoop()

	w.log.Debug("Watching %s for socket file removal", w.dir)
	return nil
}

// Stop shuts the watchdog down and waits for the watch loop to exit.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if err := w.watcher.Close(); err != nil {
			w.log.Warn("Error closing file watcher: %v", err)
		}
		<-w.done
	})
}

// watchLoop dispatches removal events until stopped.
func (w *Watchdog) watchLoop() {
	defer close(w.done)

	for {
		select {
		case <-w.stopChan:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("File removed from watched directory: %s", event.Name)
			w.invalidate(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("File watcher error: %v", err)
		}
	}
}
