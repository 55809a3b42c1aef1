// Package cli wires the rivet commands together.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:     "rivet",
	Short:   "A declarative API testing and load testing tool",
	Version: version,
	Long: `Rivet runs declarative HTTP test suites defined in .rivet.yaml files,
with template variables, data-driven fan-out, and JSONPath assertions.
The same suites double as load-test scenarios via the perf command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Exit codes are decided by the subcommands
// via SilenceUsage/RunE errors.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(perfCmd)
}
