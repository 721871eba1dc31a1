// Package workspace builds and runs the operation sets that prepare a
// developer workspace: directory layout, repository clones and updates, and
// tool warm-up. It supplies operation bodies to the concurrency package and
// consumes the returned result records.
package workspace

import (
	"path/filepath"
	"time"

	"stagehand/config"
)

// RepoSpec describes one repository to place in the workspace.
type RepoSpec struct {
	Name   string
	URL    string
	Branch string
	Path   string
}

// Spec is the fully resolved description of a workspace to prepare.
type Spec struct {
	Root         string
	Remote       string
	Repos        []RepoSpec
	RepoRetries  int
	CloneTimeout time.Duration
}

// SpecFromConfig resolves a configuration into a workspace spec, placing
// each repository under the workspace root by name.
func SpecFromConfig(cfg *config.Config) Spec {
	spec := Spec{
		Root:         cfg.WorkspaceRoot,
		Remote:       cfg.DefaultRemote,
		RepoRetries:  cfg.RepoRetries,
		CloneTimeout: cfg.CloneTimeout(),
	}
	for _, repo := range cfg.Repositories {
		spec.Repos = append(spec.Repos, RepoSpec{
			Name:   repo.Name,
			URL:    repo.URL,
			Branch: repo.Branch,
			Path:   filepath.Join(cfg.WorkspaceRoot, repo.Name),
		})
	}
	return spec
}
