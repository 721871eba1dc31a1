package concurrency

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"stagehand/log"
)

// ValidateRepositoryIntegrity reports whether the repository at path is in a
// readable, consistent state. The check is read-only: it computes the
// worktree status and lists references, and never mutates the repository.
// Callers run it after a batch of mutating operations and decide on
// remediation themselves.
func ValidateRepositoryIntegrity(path string) bool {
	repo, err := git.PlainOpen(path)
	if err != nil {
		log.WarningLog.Printf("integrity check: failed to open repository %s: %v", path, err)
		return false
	}

	worktree, err := repo.Worktree()
	if err != nil {
		log.WarningLog.Printf("integrity check: no worktree for %s: %v", path, err)
		return false
	}
	if _, err := worktree.Status(); err != nil {
		log.WarningLog.Printf("integrity check: status failed for %s: %v", path, err)
		return false
	}

	refs, err := repo.References()
	if err != nil {
		log.WarningLog.Printf("integrity check: listing references failed for %s: %v", path, err)
		return false
	}
	refCount := 0
	_ = refs.ForEach(func(ref *plumbing.Reference) error {
		refCount++
		return nil
	})
	log.DebugLog.Printf("integrity check passed for %s (%d references)", path, refCount)

	return true
}
