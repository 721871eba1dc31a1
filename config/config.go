// Package config handles application configuration loading and management.
//
// Configuration is stored in ~/.stagehand/config.json. Loads are routed
// through a cache.FileCache so repeated reads during one invocation hit the
// cache and edits to the file on disk invalidate it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"stagehand/cache"
	"stagehand/log"
)

const ConfigFileName = "config.json"

// GetConfigDir returns the path to the application's configuration directory.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".stagehand"), nil
}

// Repository describes one repository the workspace should contain.
type Repository struct {
	// Name is the directory name under the workspace root.
	Name string `json:"name"`
	// URL is the clone source; local paths work as well as remote URLs.
	URL string `json:"url"`
	// Branch pins the branch to clone; empty means the remote default.
	Branch string `json:"branch,omitempty"`
}

// Config represents the application configuration.
type Config struct {
	// WorkspaceRoot is the directory all repositories are placed under.
	WorkspaceRoot string `json:"workspace_root"`
	// DefaultRemote is the remote name used for fetches.
	DefaultRemote string `json:"default_remote"`
	// MaxConcurrency caps simultaneously running setup operations.
	MaxConcurrency int `json:"max_concurrency"`
	// CloneTimeoutSecs bounds a single clone or fetch attempt.
	CloneTimeoutSecs int `json:"clone_timeout_seconds"`
	// RepoRetries is how many times a failed repository operation is retried.
	RepoRetries int `json:"repo_retries"`
	// Repositories lists the repositories to set up.
	Repositories []Repository `json:"repositories"`
}

// CloneTimeout returns the clone timeout as a duration.
func (c *Config) CloneTimeout() time.Duration {
	return time.Duration(c.CloneTimeoutSecs) * time.Second
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	root := "workspace"
	if homeDir, err := os.UserHomeDir(); err == nil {
		root = filepath.Join(homeDir, "stagehand")
	}
	return &Config{
		WorkspaceRoot:    root,
		DefaultRemote:    "origin",
		MaxConcurrency:   4,
		CloneTimeoutSecs: 300,
		RepoRetries:      2,
		Repositories:     []Repository{},
	}
}

// Manager loads configuration through a file cache so that repeated reads
// within one invocation do not touch the disk, while external edits to the
// config file invalidate the cached copy.
type Manager struct {
	cache *cache.FileCache
}

// NewManager creates a configuration manager.
func NewManager() *Manager {
	return &Manager{
		cache: cache.NewFileCache(loadFromDisk),
	}
}

// loadFromDisk reads and parses a config file.
func loadFromDisk(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &config, nil
}

// Config returns the current configuration. If it cannot be loaded, the
// default configuration is returned; a missing file is created with defaults.
func (m *Manager) Config() *Config {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultConfig()
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		defaultCfg := DefaultConfig()
		if saveErr := SaveConfig(defaultCfg); saveErr != nil {
			log.WarningLog.Printf("failed to save default config: %v", saveErr)
		}
		return defaultCfg
	}

	value, err := m.cache.Load(configPath)
	if err != nil {
		log.ErrorLog.Printf("failed to load config: %v", err)
		return DefaultConfig()
	}

	config, ok := value.(*Config)
	if !ok {
		log.ErrorLog.Printf("unexpected cached config type %T", value)
		return DefaultConfig()
	}
	return config
}

// Invalidate drops the cached configuration so the next read hits the disk.
func (m *Manager) Invalidate() {
	m.cache.Invalidate()
}

// Stats returns the underlying cache counters.
func (m *Manager) Stats() cache.Stats {
	return m.cache.Stats()
}

// Close releases the manager's cache resources.
func (m *Manager) Close() {
	m.cache.Cleanup()
}

// SaveConfig saves the configuration to disk.
func SaveConfig(config *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(filepath.Join(configDir, ConfigFileName), data, 0644)
}
