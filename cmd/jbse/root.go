package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jbse",
	Short: "A symbolic executor for stack-based bytecode",
	Long: "jbse explores every feasible path of a bytecode method, keeping a\n" +
		"symbolic heap and path condition per path and pruning infeasible\n" +
		"branches through a decision procedure.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
