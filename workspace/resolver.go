package workspace

import (
	"fmt"
	"os/exec"

	"stagehand/cache"
)

// Resolver locates external tools on PATH, memoizing results in a module
// cache. Tool identity does not change within a process, so entries live
// until an explicit Reset.
type Resolver struct {
	cache *cache.ModuleCache
}

// NewResolver creates a resolver with an empty cache.
func NewResolver() *Resolver {
	return &Resolver{
		cache: cache.NewModuleCache(),
	}
}

// LookupTool returns the absolute path of the named tool.
func (r *Resolver) LookupTool(name string) (string, error) {
	value, err := r.cache.Resolve("tool:"+name, func(string) (interface{}, error) {
		path, err := exec.LookPath(name)
		if err != nil {
			return nil, fmt.Errorf("tool %q not found: %w", name, err)
		}
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Reset drops all cached resolutions; intended for test isolation.
func (r *Resolver) Reset() {
	r.cache.Clear()
}

// Stats returns the underlying cache counters.
func (r *Resolver) Stats() cache.Stats {
	return r.cache.Stats()
}
