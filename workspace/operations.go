package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"stagehand/concurrency"
	"stagehand/log"
)

// LayoutOperationID identifies the critical operation every repository
// operation depends on.
const LayoutOperationID = "workspace-layout"

// BuildInitOperations returns the dependency-ordered operation set for
// preparing the workspace described by spec. The layout operation is
// critical: nothing that assumes a validated workspace root runs before it
// fully resolves. Repository operations run concurrently once the layout is
// in place, and tool warm-up proceeds in the background as a best-effort.
func BuildInitOperations(spec Spec, resolver *Resolver) []*concurrency.Operation {
	ops := []*concurrency.Operation{
		{
			ID:          LayoutOperationID,
			Description: "create and validate the workspace root",
			Priority:    concurrency.PriorityCritical,
			Run: func(ctx context.Context) (interface{}, error) {
				if err := ensureLayout(spec.Root); err != nil {
					return nil, err
				}
				return spec.Root, nil
			},
		},
	}

	for _, repo := range spec.Repos {
		repo := repo
		ops = append(ops, &concurrency.Operation{
			ID:          "repo-" + repo.Name,
			Description: fmt.Sprintf("clone or update %s", repo.Name),
			Priority:    concurrency.PriorityNormal,
			DependsOn:   []string{LayoutOperationID},
			Retries:     spec.RepoRetries,
			Timeout:     spec.CloneTimeout,
			Run: func(ctx context.Context) (interface{}, error) {
				return syncRepo(ctx, spec.Remote, repo)
			},
		})
	}

	ops = append(ops, &concurrency.Operation{
		ID:          "warm-tools",
		Description: "resolve external tools ahead of use",
		Priority:    concurrency.PriorityBackground,
		Run: func(ctx context.Context) (interface{}, error) {
			path, err := resolver.LookupTool("git")
			if err != nil {
				return nil, err
			}
			return path, nil
		},
		OnError: func(err error) bool {
			log.WarningLog.Printf("tool warm-up failed, continuing: %v", err)
			return true
		},
	})

	return ops
}

// ensureLayout creates the workspace root and verifies it is a usable
// directory.
func ensureLayout(root string) error {
	if root == "" {
		return fmt.Errorf("workspace root is not configured")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("failed to create workspace root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("failed to stat workspace root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace root %s is not a directory", root)
	}
	return nil
}

// syncRepo clones the repository if it is not present, otherwise fetches
// from its remote. The returned value describes what was done.
func syncRepo(ctx context.Context, remote string, repo RepoSpec) (interface{}, error) {
	if existing, err := git.PlainOpen(repo.Path); err == nil {
		err := existing.FetchContext(ctx, &git.FetchOptions{RemoteName: remote})
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "up to date", nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", repo.Name, err)
		}
		return "fetched", nil
	}

	opts := &git.CloneOptions{
		URL:        repo.URL,
		RemoteName: remote,
	}
	if repo.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(repo.Branch)
		opts.SingleBranch = true
	}
	if _, err := git.PlainCloneContext(ctx, repo.Path, false, opts); err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", repo.Name, err)
	}
	return "cloned", nil
}
