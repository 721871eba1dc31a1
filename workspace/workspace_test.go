package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagehand/concurrency"
	"stagehand/config"
	"stagehand/log"
)

func TestMain(m *testing.M) {
	log.Initialize()
	code := m.Run()
	log.Close()
	os.Exit(code)
}

// newSourceRepo creates a local repository with one commit to clone from.
func newSourceRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("source\n"), 0644))
	worktree, err := repo.Worktree()
	require.NoError(t, err)
	_, err = worktree.Add("README.md")
	require.NoError(t, err)
	_, err = worktree.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestSpecFromConfig(t *testing.T) {
	cfg := &config.Config{
		WorkspaceRoot:    "/tmp/ws",
		DefaultRemote:    "origin",
		CloneTimeoutSecs: 60,
		RepoRetries:      2,
		Repositories: []config.Repository{
			{Name: "app", URL: "https://example.com/app.git", Branch: "main"},
		},
	}

	spec := SpecFromConfig(cfg)
	assert.Equal(t, "/tmp/ws", spec.Root)
	assert.Equal(t, time.Minute, spec.CloneTimeout)
	require.Len(t, spec.Repos, 1)
	assert.Equal(t, filepath.Join("/tmp/ws", "app"), spec.Repos[0].Path)
	assert.Equal(t, "main", spec.Repos[0].Branch)
}

func TestBuildInitOperations(t *testing.T) {
	spec := Spec{
		Root:         "/tmp/ws",
		Remote:       "origin",
		RepoRetries:  2,
		CloneTimeout: time.Minute,
		Repos: []RepoSpec{
			{Name: "app", URL: "https://example.com/app.git", Path: "/tmp/ws/app"},
			{Name: "lib", URL: "https://example.com/lib.git", Path: "/tmp/ws/lib"},
		},
	}

	ops := BuildInitOperations(spec, NewResolver())
	require.Len(t, ops, 4)

	byID := make(map[string]*concurrency.Operation, len(ops))
	for _, op := range ops {
		byID[op.ID] = op
	}

	layout := byID[LayoutOperationID]
	require.NotNil(t, layout)
	assert.Equal(t, concurrency.PriorityCritical, layout.Priority)
	assert.Empty(t, layout.DependsOn)

	for _, name := range []string{"repo-app", "repo-lib"} {
		op := byID[name]
		require.NotNil(t, op)
		assert.Equal(t, concurrency.PriorityNormal, op.Priority)
		assert.Equal(t, []string{LayoutOperationID}, op.DependsOn)
		assert.Equal(t, 2, op.Retries)
		assert.Equal(t, time.Minute, op.Timeout)
	}

	warm := byID["warm-tools"]
	require.NotNil(t, warm)
	assert.Equal(t, concurrency.PriorityBackground, warm.Priority)
	assert.NotNil(t, warm.OnError, "tool warm-up must fail gracefully")
}

func TestInitClonesAndThenFetches(t *testing.T) {
	source := newSourceRepo(t)
	cfg := &config.Config{
		WorkspaceRoot:    filepath.Join(t.TempDir(), "ws"),
		DefaultRemote:    "origin",
		CloneTimeoutSecs: 60,
		Repositories: []config.Repository{
			{Name: "app", URL: source},
		},
	}
	resolver := NewResolver()

	result, err := Init(context.Background(), cfg, resolver)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.NotEmpty(t, result.RunID)

	repoResult := result.Results["repo-app"]
	require.NotNil(t, repoResult)
	assert.True(t, repoResult.Success)
	assert.Equal(t, "cloned", repoResult.Value)
	assert.DirExists(t, filepath.Join(cfg.WorkspaceRoot, "app", ".git"))

	// A second run over an existing clone must fetch instead.
	again, err := Init(context.Background(), cfg, resolver)
	require.NoError(t, err)
	repoResult = again.Results["repo-app"]
	require.NotNil(t, repoResult)
	assert.True(t, repoResult.Success)
	assert.Equal(t, "up to date", repoResult.Value)
}

func TestInitRetriesFailingRepoWithoutAborting(t *testing.T) {
	cfg := &config.Config{
		WorkspaceRoot:    filepath.Join(t.TempDir(), "ws"),
		DefaultRemote:    "origin",
		CloneTimeoutSecs: 60,
		RepoRetries:      1,
		Repositories: []config.Repository{
			{Name: "bad", URL: filepath.Join(t.TempDir(), "does-not-exist")},
		},
	}

	result, err := Init(context.Background(), cfg, NewResolver())
	require.NoError(t, err, "a failed repository is not fatal to the run")
	require.NotNil(t, result)

	repoResult := result.Results["repo-bad"]
	require.NotNil(t, repoResult)
	assert.False(t, repoResult.Success)
	assert.Equal(t, 2, repoResult.Attempts)

	layoutResult := result.Results[LayoutOperationID]
	require.NotNil(t, layoutResult)
	assert.True(t, layoutResult.Success, "the layout operation still succeeds")
}

func TestInitFailsWithoutWorkspaceRoot(t *testing.T) {
	cfg := &config.Config{
		DefaultRemote:    "origin",
		CloneTimeoutSecs: 60,
	}

	result, err := Init(context.Background(), cfg, NewResolver())
	require.Error(t, err, "a failing critical operation aborts the run")
	require.NotNil(t, result, "partial results are still returned")

	layoutResult := result.Results[LayoutOperationID]
	require.NotNil(t, layoutResult)
	assert.False(t, layoutResult.Success)
}

func TestResolverMemoizesLookups(t *testing.T) {
	toolDir := t.TempDir()
	toolPath := filepath.Join(toolDir, "stagehand-probe")
	require.NoError(t, os.WriteFile(toolPath, []byte("#!/bin/sh\n"), 0755))
	t.Setenv("PATH", toolDir)

	resolver := NewResolver()

	resolved, err := resolver.LookupTool("stagehand-probe")
	require.NoError(t, err)
	assert.Equal(t, toolPath, resolved)

	// Remove the binary: the cached resolution must survive.
	require.NoError(t, os.Remove(toolPath))
	resolved, err = resolver.LookupTool("stagehand-probe")
	require.NoError(t, err)
	assert.Equal(t, toolPath, resolved)

	resolver.Reset()
	_, err = resolver.LookupTool("stagehand-probe")
	assert.Error(t, err, "after a reset the lookup goes back to PATH")
}

func TestResolverMissingTool(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	resolver := NewResolver()
	_, err := resolver.LookupTool("no-such-tool")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-tool")
}
