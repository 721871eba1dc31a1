package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"stagehand/config"
	"stagehand/workspace"
)

// InitCommand creates the workspace init command.
func InitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Prepare the configured workspace",
		Long: `Create the workspace root and clone or update every configured
repository. Repository operations run concurrently once the workspace
layout is validated; tool resolution proceeds in the background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			defer manager.Close()
			cfg := manager.Config()

			resolver := workspace.NewResolver()
			result, err := workspace.Init(cmd.Context(), cfg, resolver)
			if result != nil {
				fmt.Println(renderInitSummary(result))
			}
			return err
		},
	}
	return cmd
}
