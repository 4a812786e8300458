// Package main provides the entry point for the validator CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/UCL-RITS/Submitty/cmd/validator/commands"
	"github.com/UCL-RITS/Submitty/internal/server"
)

func main() {
	var settingsPath string

	rootCmd := &cobra.Command{
		Use:   "validator",
		Short: "Compare and grade student program output",
		Long: `validator compares student output against expected output and awards points.

Commands:
  compare   Compare two files once
  grade     Grade a submission directory against an assignment
  serve     Serve JSON-RPC requests on stdin/stdout
  history   Show the grade history of a test case`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "settings file (default: ./validator.yaml or ~/validator.yaml)")

	env := func() string { return settingsPath }
	rootCmd.AddCommand(commands.NewCompareCommand(env))
	rootCmd.AddCommand(commands.NewGradeCommand(env))
	rootCmd.AddCommand(commands.NewServeCommand(env))
	rootCmd.AddCommand(commands.NewHistoryCommand(env))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "validator %s (protocol %d)\n", server.EngineVersion, server.ProtocolVersion)
		},
	}
}
