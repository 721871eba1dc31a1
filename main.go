package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stagehand/cmd"
	"stagehand/log"
)

var (
	version = "0.1.0"

	rootCmd = &cobra.Command{
		Use:          "stagehand",
		Short:        "Stagehand - prepares developer workspaces",
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(c *cobra.Command, args []string) {
			fmt.Printf("stagehand version %s\n", version)
		},
	}
)

func init() {
	rootCmd.AddCommand(cmd.InitCommand())
	rootCmd.AddCommand(cmd.DoctorCommand())
	rootCmd.AddCommand(versionCmd)
}

func main() {
	log.Initialize()
	defer log.Close()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
