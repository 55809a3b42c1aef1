package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/rivet/internal/config"
	"github.com/wesleyorama2/rivet/internal/output"
	"github.com/wesleyorama2/rivet/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run [file or directory]",
	Short: "Run test suites from .rivet.yaml files",
	Long: `Execute one suite file, or every *.rivet.yaml file under a directory
in filename order. Exits non-zero if any test fails.

Examples:
  rivet run api.rivet.yaml
  rivet run tests/ --parallel 4
  rivet run tests/ --env staging --grep login --bail`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runSuites(cmd, args[0])
	},
}

func runSuites(cmd *cobra.Command, target string) {
	env, _ := cmd.Flags().GetString("env")
	parallel, _ := cmd.Flags().GetInt("parallel")
	grep, _ := cmd.Flags().GetString("grep")
	bail, _ := cmd.Flags().GetBool("bail")
	ci, _ := cmd.Flags().GetBool("ci")
	noColor, _ := cmd.Flags().GetBool("no-color")
	timeoutStr, _ := cmd.Flags().GetString("timeout")

	timeout, err := config.ParseDuration(timeoutStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timeout: %v\n", err)
		os.Exit(1)
	}

	printer := output.NewPrinter(os.Stdout,
		output.WithCI(ci),
		output.WithNoColor(noColor || !output.IsTerminal()))

	r := runner.NewRunner(
		runner.WithTimeout(timeout),
		runner.WithParallel(parallel),
		runner.WithBail(bail),
		runner.WithFilter(grep),
		runner.WithEnv(env),
		runner.WithReporter(printer),
	)

	results, err := r.Run(context.Background(), target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !printer.RunSummary(results) {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().StringP("env", "e", "", "Environment name, exposed to templates as RIVET_ENV")
	runCmd.Flags().IntP("parallel", "p", 1, "Number of steps (or suites) to run concurrently")
	runCmd.Flags().StringP("grep", "g", "", "Only run steps whose name contains this substring")
	runCmd.Flags().Bool("bail", false, "Stop at the first failing step")
	runCmd.Flags().Bool("ci", false, "Plain line-oriented output for CI logs")
	runCmd.Flags().Bool("no-color", false, "Disable colored output")
	runCmd.Flags().StringP("timeout", "t", "30s", "Per-request timeout (e.g. 30s, 1m)")
}
