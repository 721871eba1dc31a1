package cache

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watcher is the minimal change-detection capability a cache needs to
// invalidate itself. Implementations call onChange when the watched path is
// modified and onError when watching breaks down; the cache degrades to
// uncached mode on error rather than surfacing it.
type Watcher interface {
	// Start begins watching path. It must return an error if watching cannot
	// be established; afterwards failures are reported through onError.
	Start(path string, onChange func(), onError func(error)) error
	// Stop ends watching and releases resources. It is safe to call on a
	// watcher that was never started.
	Stop() error
}

// fsWatcher watches a single path using fsnotify.
type fsWatcher struct {
	inner *fsnotify.Watcher
	done  chan struct{}
}

// NewFSWatcher returns a filesystem-backed Watcher.
func NewFSWatcher() Watcher {
	return &fsWatcher{}
}

func (fw *fsWatcher) Start(path string, onChange func(), onError func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	fw.inner = w
	fw.done = make(chan struct{})

	go func() {
		for {
			select {
			case <-fw.done:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				onError(err)
			}
		}
	}()

	return nil
}

func (fw *fsWatcher) Stop() error {
	if fw.inner == nil {
		return nil
	}
	close(fw.done)
	err := fw.inner.Close()
	fw.inner = nil
	return err
}
