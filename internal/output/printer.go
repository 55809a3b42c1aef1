package output

import (
	"fmt"
	"io"
	"time"

	"github.com/wesleyorama2/rivet/internal/config"
	"github.com/wesleyorama2/rivet/internal/runner"
)

// Printer renders run events as they arrive. It implements runner.Reporter.
//
// In CI mode it emits plain, machine-greppable lines with no icons or color.
type Printer struct {
	out     io.Writer
	scheme  *ColorScheme
	noColor bool
	ci      bool
}

// PrinterOption configures a Printer.
type PrinterOption func(*Printer)

// WithNoColor disables colored output.
func WithNoColor(noColor bool) PrinterOption {
	return func(p *Printer) { p.noColor = noColor }
}

// WithCI switches to plain line-oriented output for CI logs.
func WithCI(ci bool) PrinterOption {
	return func(p *Printer) { p.ci = ci }
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, options ...PrinterOption) *Printer {
	p := &Printer{out: out}
	for _, option := range options {
		option(p)
	}
	if p.ci {
		p.noColor = true
	}
	if p.noColor {
		p.scheme = NoColorScheme()
	} else {
		p.scheme = DefaultColorScheme()
	}
	return p
}

// SuiteStart announces a suite before its first step runs.
func (p *Printer) SuiteStart(name string, suite *config.Suite) {
	if p.ci {
		fmt.Fprintf(p.out, "SUITE %s (%s)\n", suite.Name, name)
		return
	}

	fmt.Fprintf(p.out, "\n%s %s\n", p.scheme.SuiteName.Sprint(suite.Name), p.scheme.Timing.Sprintf("(%s)", name))
	if suite.Description != "" {
		fmt.Fprintf(p.out, "  %s\n", suite.Description)
	}
}

// StepResult prints one step outcome.
func (p *Printer) StepResult(result runner.TestResult) {
	if p.ci {
		status := "PASS"
		if !result.Passed {
			status = "FAIL"
		}
		fmt.Fprintf(p.out, "%s %s (%dms)", status, result.Name, result.Duration.Milliseconds())
		if result.Error != "" {
			fmt.Fprintf(p.out, ": %s", result.Error)
		}
		fmt.Fprintln(p.out)
		return
	}

	icon := PassIcon(p.noColor)
	if !result.Passed {
		icon = FailIcon(p.noColor)
	}
	fmt.Fprintf(p.out, "  %s %s %s\n", icon,
		p.scheme.StepName.Sprint(result.Name),
		p.scheme.Timing.Sprintf("(%s)", formatDuration(result.Duration)))
	if result.Error != "" {
		fmt.Fprintf(p.out, "      %s\n", p.scheme.ErrorText.Sprint(result.Error))
	}
}

// SuiteDone prints the per-suite tally.
func (p *Printer) SuiteDone(result runner.TestSuiteResult) {
	if p.ci {
		fmt.Fprintf(p.out, "SUITE DONE %s: %d passed, %d failed (%dms)\n",
			result.Name, result.Passed, result.Failed, result.Duration.Milliseconds())
		return
	}

	tally := p.scheme.Pass.Sprintf("%d passed", result.Passed)
	if result.Failed > 0 {
		tally += ", " + p.scheme.Fail.Sprintf("%d failed", result.Failed)
	}
	fmt.Fprintf(p.out, "  %s %s\n", tally, p.scheme.Timing.Sprintf("(%s)", formatDuration(result.Duration)))
}

// RunSummary prints the overall tally across suites and reports whether the
// whole run passed.
func (p *Printer) RunSummary(results []runner.TestSuiteResult) bool {
	var passed, failed int
	var total time.Duration
	for _, suite := range results {
		passed += suite.Passed
		failed += suite.Failed
		total += suite.Duration
	}

	if p.ci {
		fmt.Fprintf(p.out, "TOTAL: %d passed, %d failed across %d suites (%dms)\n",
			passed, failed, len(results), total.Milliseconds())
		return failed == 0
	}

	fmt.Fprintf(p.out, "\n%s ", p.scheme.Summary.Sprint("Summary:"))
	if failed == 0 {
		fmt.Fprintf(p.out, "%s across %d suites %s\n",
			p.scheme.Pass.Sprintf("%d passed", passed),
			len(results),
			p.scheme.Timing.Sprintf("(%s)", formatDuration(total)))
	} else {
		fmt.Fprintf(p.out, "%s, %s across %d suites %s\n",
			p.scheme.Pass.Sprintf("%d passed", passed),
			p.scheme.Fail.Sprintf("%d failed", failed),
			len(results),
			p.scheme.Timing.Sprintf("(%s)", formatDuration(total)))
	}
	return failed == 0
}

// formatDuration keeps step timings short: sub-second in ms, longer in
// seconds with one decimal.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
