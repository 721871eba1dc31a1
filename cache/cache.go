// Package cache provides single-slot caches for expensive loads, invalidated
// by filesystem change events or explicit clears. A cache never surfaces its
// own malfunctions to callers: any watcher fault permanently degrades it to
// uncached mode with a logged warning.
package cache

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stagehand/log"
)

// EnvNoCache disables all FileCache instances for the process when set to
// "true" or "1".
const EnvNoCache = "STAGEHAND_NO_CACHE"

// Loader produces the value for a source path.
type Loader func(path string) (interface{}, error)

// Entry is a cached value together with its validity metadata.
type Entry struct {
	Value     interface{}
	Path      string
	Valid     bool
	CreatedAt time.Time
}

// Stats is a snapshot of cache effectiveness counters, exposed as plain data
// for logging and telemetry.
type Stats struct {
	Hits          uint64
	Misses        uint64
	Loads         uint64
	Invalidations uint64
	Disabled      bool
}

// FileCache caches the result of a single expensive load keyed by source
// path. A filesystem watcher invalidates the entry when the source changes.
// Each instance owns its entry and watcher exclusively; distinct instances
// never share state.
type FileCache struct {
	mu         sync.Mutex
	loader     Loader
	newWatcher func() Watcher
	watcher    Watcher
	entry      *Entry
	disabled   bool

	hits          uint64
	misses        uint64
	loads         uint64
	invalidations uint64

	signalOnce  sync.Once
	cleanupOnce sync.Once
	sigCh       chan os.Signal
}

// Option configures a FileCache.
type Option func(*FileCache)

// WithWatcherFactory overrides how invalidation watchers are constructed.
func WithWatcherFactory(factory func() Watcher) Option {
	return func(c *FileCache) {
		c.newWatcher = factory
	}
}

// NewFileCache creates a cache around loader. Caching starts disabled when
// the STAGEHAND_NO_CACHE environment toggle is set.
func NewFileCache(loader Loader, opts ...Option) *FileCache {
	noCache := os.Getenv(EnvNoCache)
	c := &FileCache{
		loader:     loader,
		newWatcher: NewFSWatcher,
		disabled:   noCache == "true" || noCache == "1",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load returns the value for path, invoking the loader only when no valid
// entry for path exists. A fresh load replaces any prior entry and re-arms
// change watching for the new path.
func (c *FileCache) Load(path string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		c.loads++
		return c.loader(path)
	}

	if c.entry != nil && c.entry.Valid && c.entry.Path == path {
		c.hits++
		return c.entry.Value, nil
	}

	c.misses++
	value, err := c.loader(path)
	if err != nil {
		return nil, err
	}
	c.loads++

	c.entry = &Entry{
		Value:     value,
		Path:      path,
		Valid:     true,
		CreatedAt: time.Now(),
	}
	c.armWatchLocked(path)

	return value, nil
}

// armWatchLocked replaces the current watcher with one for path. A failure to
// arm disables caching for the remainder of the process.
func (c *FileCache) armWatchLocked(path string) {
	if c.watcher != nil {
		if err := c.watcher.Stop(); err != nil {
			log.WarningLog.Printf("failed to stop previous watcher: %v", err)
		}
		c.watcher = nil
	}

	w := c.newWatcher()
	if err := w.Start(path, c.Invalidate, c.watchError); err != nil {
		log.WarningLog.Printf("failed to watch %s, caching disabled: %v", path, err)
		c.disabled = true
		c.entry = nil
		return
	}
	c.watcher = w
	c.registerExitCleanup()
}

// watchError handles a watcher fault by degrading to uncached mode.
func (c *FileCache) watchError(err error) {
	log.WarningLog.Printf("cache watcher error, caching disabled: %v", err)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabled = true
	c.entry = nil
	if c.watcher != nil {
		_ = c.watcher.Stop()
		c.watcher = nil
	}
}

// Invalidate marks the current entry invalid. It is idempotent and is
// triggered by a detected source change or an explicit external call.
func (c *FileCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil || !c.entry.Valid {
		return
	}
	c.entry.Valid = false
	c.invalidations++
}

// Cleanup stops watching and removes the process-exit listeners this
// instance installed. It is idempotent.
func (c *FileCache) Cleanup() {
	c.cleanupOnce.Do(func() {
		c.mu.Lock()
		if c.watcher != nil {
			_ = c.watcher.Stop()
			c.watcher = nil
		}
		c.mu.Unlock()

		if c.sigCh != nil {
			signal.Stop(c.sigCh)
			close(c.sigCh)
		}
	})
}

// Stats returns a snapshot of the cache counters.
func (c *FileCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Loads:         c.loads,
		Invalidations: c.invalidations,
		Disabled:      c.disabled,
	}
}

// registerExitCleanup installs interrupt/terminate handlers for this
// instance exactly once. The handler cleans up and then terminates the
// process.
func (c *FileCache) registerExitCleanup() {
	c.signalOnce.Do(func() {
		c.sigCh = make(chan os.Signal, 1)
		signal.Notify(c.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig, ok := <-c.sigCh
			if !ok {
				return
			}
			log.InfoLog.Printf("received %v, cleaning up cache watcher", sig)
			c.Cleanup()
			os.Exit(1)
		}()
	})
}
