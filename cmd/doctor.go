package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"stagehand/concurrency"
	"stagehand/config"
)

// DoctorCommand creates the repository integrity sweep command.
func DoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the integrity of all workspace repositories",
		Long: `Run a read-only integrity check (worktree status and reference
listing) over every configured repository. Nothing is mutated; failures are
reported for the caller to remediate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			defer manager.Close()
			cfg := manager.Config()

			if len(cfg.Repositories) == 0 {
				fmt.Println("no repositories configured")
				return nil
			}

			ops := make([]concurrency.BatchOperation, 0, len(cfg.Repositories))
			for _, repo := range cfg.Repositories {
				path := filepath.Join(cfg.WorkspaceRoot, repo.Name)
				ops = append(ops, concurrency.BatchOperation{
					Name: repo.Name,
					Run: func(ctx context.Context) error {
						if !concurrency.ValidateRepositoryIntegrity(path) {
							return fmt.Errorf("integrity check failed for %s", path)
						}
						return nil
					},
				})
			}

			executor := concurrency.NewBatchExecutor(cfg.MaxConcurrency)
			result, err := executor.ExecuteParallel(cmd.Context(), ops)
			result.Name = "doctor"
			fmt.Println(renderBatchSummary([]*concurrency.BatchResult{result}))
			return err
		},
	}
	return cmd
}
