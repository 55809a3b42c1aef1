package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/rivet/internal/config"
	"github.com/wesleyorama2/rivet/internal/output"
	"github.com/wesleyorama2/rivet/internal/performance"
)

var perfCmd = &cobra.Command{
	Use:   "perf [file or directory]",
	Short: "Run a load test against a suite's test steps",
	Long: `Drive concurrent workers through the first suite found at the target,
round-robining its test steps for the configured duration.

Examples:
  rivet perf api.rivet.yaml --duration 1m --concurrent 10
  rivet perf api.rivet.yaml --duration 5m --rps 100 --pattern ramp-up --warmup 30s
  rivet perf api.rivet.yaml --duration 30s --pattern spike --output results.json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runPerf(cmd, args[0])
	},
}

func runPerf(cmd *cobra.Command, target string) {
	durationStr, _ := cmd.Flags().GetString("duration")
	rps, _ := cmd.Flags().GetInt("rps")
	concurrent, _ := cmd.Flags().GetInt("concurrent")
	warmupStr, _ := cmd.Flags().GetString("warmup")
	intervalStr, _ := cmd.Flags().GetString("report-interval")
	patternName, _ := cmd.Flags().GetString("pattern")
	env, _ := cmd.Flags().GetString("env")
	outputPath, _ := cmd.Flags().GetString("output")
	noColor, _ := cmd.Flags().GetBool("no-color")
	timeoutStr, _ := cmd.Flags().GetString("timeout")

	// Configuration errors fail fast, before any request is dispatched.
	duration, err := config.ParseDuration(durationStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid duration: %v\n", err)
		os.Exit(1)
	}
	warmup, err := config.ParseDuration(warmupStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid warmup: %v\n", err)
		os.Exit(1)
	}
	interval, err := config.ParseDuration(intervalStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid report interval: %v\n", err)
		os.Exit(1)
	}
	timeout, err := config.ParseDuration(timeoutStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timeout: %v\n", err)
		os.Exit(1)
	}
	pattern, err := performance.ParsePattern(patternName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if concurrent < 1 {
		fmt.Fprintln(os.Stderr, "Error: --concurrent must be at least 1")
		os.Exit(1)
	}

	if noColor || !output.IsTerminal() {
		color.NoColor = true
	}

	perf := performance.NewRunner(performance.RunnerConfig{
		Duration:       duration,
		Concurrency:    concurrent,
		TargetRPS:      rps,
		Warmup:         warmup,
		ReportInterval: interval,
		Pattern:        pattern,
		Env:            env,
		Timeout:        timeout,
		Out:            os.Stdout,
	})

	results, err := perf.Run(context.Background(), target)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if outputPath != "" {
		if err := writeResults(outputPath, results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Results written to %s\n", outputPath)
	}

	if !performance.Passed(results) {
		os.Exit(1)
	}
}

func writeResults(path string, results performance.Results) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func init() {
	perfCmd.Flags().StringP("duration", "d", "30s", "Total test duration (e.g. 30s, 5m)")
	perfCmd.Flags().Int("rps", 0, "Target requests per second (0 = unpaced)")
	perfCmd.Flags().IntP("concurrent", "c", 10, "Number of concurrent workers")
	perfCmd.Flags().String("warmup", "0s", "Warmup sleep before load starts")
	perfCmd.Flags().String("report-interval", "5s", "How often to print progress")
	perfCmd.Flags().String("pattern", "constant", "Load pattern: constant, ramp-up, or spike")
	perfCmd.Flags().StringP("env", "e", "", "Environment name, exposed to templates as RIVET_ENV")
	perfCmd.Flags().StringP("output", "o", "", "Write the final results as JSON to this file")
	perfCmd.Flags().Bool("no-color", false, "Disable colored output")
	perfCmd.Flags().String("timeout", "60s", "Per-request timeout")
}
