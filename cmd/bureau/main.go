package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor       bool
	workspaceFlag string
	projectFlag   string
)

var rootCmd = &cobra.Command{
	Use:           "bureau",
	Short:         "Content engine with versioned writing profiles",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "", "workspace scope (default workspace when empty)")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "project scope within the workspace")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(outputsCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(examplesCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
