// Package cmd implements the loopkit CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "loopkit",
	Short: "loopkit: a tool-calling agent loop runtime",
	Long:  "loopkit runs goals through a reason-act loop: a reasoner plans, tools execute, results feed back until the goal is done or a budget runs out.",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(cronCmd)
	rootCmd.AddCommand(toolsCmd)
}
