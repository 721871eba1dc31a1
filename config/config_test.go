package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/log"
)

func TestMain(m *testing.M) {
	log.Initialize()
	code := m.Run()
	log.Close()
	os.Exit(code)
}

func TestConfigCreatedWithDefaultsWhenMissing(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	m := NewManager()
	defer m.Close()

	cfg := m.Config()
	assert.Equal(t, "origin", cfg.DefaultRemote)
	assert.Equal(t, 4, cfg.MaxConcurrency)
	assert.Equal(t, 300, cfg.CloneTimeoutSecs)
	assert.Equal(t, 2, cfg.RepoRetries)
	assert.Empty(t, cfg.Repositories)

	configDir, err := GetConfigDir()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(configDir, ConfigFileName))
	assert.NoError(t, err, "a missing config file is created with defaults")
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	saved := DefaultConfig()
	saved.WorkspaceRoot = "/tmp/ws"
	saved.MaxConcurrency = 8
	saved.Repositories = []Repository{
		{Name: "app", URL: "https://example.com/app.git", Branch: "main"},
	}
	require.NoError(t, SaveConfig(saved))

	m := NewManager()
	defer m.Close()

	loaded := m.Config()
	assert.Equal(t, "/tmp/ws", loaded.WorkspaceRoot)
	assert.Equal(t, 8, loaded.MaxConcurrency)
	require.Len(t, loaded.Repositories, 1)
	assert.Equal(t, "app", loaded.Repositories[0].Name)
	assert.Equal(t, "main", loaded.Repositories[0].Branch)
}

func TestRepeatedReadsHitCache(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	require.NoError(t, SaveConfig(DefaultConfig()))

	m := NewManager()
	defer m.Close()

	m.Config()
	m.Config()

	stats := m.Stats()
	assert.GreaterOrEqual(t, stats.Hits, uint64(1), "the second read must be served from the cache")
	assert.Equal(t, uint64(1), stats.Loads)
}

func TestCorruptConfigFallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	configDir, err := GetConfigDir()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, ConfigFileName), []byte("{not json"), 0644))

	m := NewManager()
	defer m.Close()

	cfg := m.Config()
	assert.Equal(t, "origin", cfg.DefaultRemote, "a corrupt file yields defaults instead of an error")
}

func TestCloneTimeout(t *testing.T) {
	cfg := &Config{CloneTimeoutSecs: 90}
	assert.Equal(t, "1m30s", cfg.CloneTimeout().String())
}
