package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/core-tools/hsu-oneshot/pkg/errors"
	"github.com/core-tools/hsu-oneshot/pkg/logging"

	"github.com/fsnotify/fsnotify"
)

// PathWatcher watches condition paths and invokes a callback once each
// appears on disk. Paths that already exist are reported immediately at
// Start.
type PathWatcher struct {
	watcher  *fsnotify.Watcher
	onExists func(path string)
	logger   logging.Logger

	mutex   sync.Mutex
	pending map[string]struct{} // cleaned paths not yet seen
	running bool
	stopped bool
	done    chan struct{}
}

func NewPathWatcher(paths []string, onExists func(path string), logger logging.Logger) (*PathWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewInternalError("failed to create filesystem watcher", err)
	}

	pending := make(map[string]struct{})
	for _, path := range paths {
		pending[filepath.Clean(path)] = struct{}{}
	}

	return &PathWatcher{
		watcher:  watcher,
		onExists: onExists,
		logger:   logger,
		pending:  pending,
		done:     make(chan struct{}),
	}, nil
}

// Start reports already-existing paths and begins watching the parent
// directories of the rest
func (w *PathWatcher) Start() error {
	w.mutex.Lock()
	if w.running {
		w.mutex.Unlock()
		return nil
	}
	w.running = true

	var toWatch []string
	for path := range w.pending {
		if _, err := os.Stat(path); err == nil {
			delete(w.pending, path)
			w.logger.Debugf("Condition path already exists, path: %s", path)
			defer w.onExists(path) // report after unlock
			continue
		}
		toWatch = append(toWatch, path)
	}
	w.mutex.Unlock()

	for _, path := range toWatch {
		parent := filepath.Dir(path)
		if err := w.watcher.Add(parent); err != nil {
			w.logger.Warnf("Cannot watch condition path parent, path: %s, error: %v", parent, err)
			continue
		}
		w.logger.Debugf("Watching for condition path, path: %s", path)
	}

	go w.watch()
	return nil
}

func (w *PathWatcher) watch() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.resolve(filepath.Clean(event.Name))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf("Filesystem watcher error: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *PathWatcher) resolve(path string) {
	w.mutex.Lock()
	_, isPending := w.pending[path]
	if isPending {
		delete(w.pending, path)
	}
	w.mutex.Unlock()

	if isPending {
		w.logger.Infof("Condition path appeared, path: %s", path)
		w.onExists(path)
	}
}

// Stop stops watching. Safe to call more than once.
func (w *PathWatcher) Stop() {
	w.mutex.Lock()
	if w.stopped {
		w.mutex.Unlock()
		return
	}
	w.stopped = true
	running := w.running
	w.mutex.Unlock()

	if running {
		close(w.done)
	}
	if err := w.watcher.Close(); err != nil {
		w.logger.Warnf("Failed to close filesystem watcher: %v", err)
	}
}
