package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/rivet/internal/config"
	"github.com/wesleyorama2/rivet/internal/runner"
)

func TestPrinterCIMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithCI(true))

	p.SuiteStart("smoke.rivet.yaml", &config.Suite{Name: "Smoke"})
	p.StepResult(runner.TestResult{Name: "health check", Passed: true, Duration: 42 * time.Millisecond})
	p.StepResult(runner.TestResult{
		Name:     "broken",
		Passed:   false,
		Duration: 10 * time.Millisecond,
		Error:    "expected status 200 but got 404",
	})
	p.SuiteDone(runner.TestSuiteResult{Name: "Smoke", Passed: 1, Failed: 1})

	out := buf.String()
	for _, want := range []string{
		"SUITE Smoke (smoke.rivet.yaml)",
		"PASS health check (42ms)",
		"FAIL broken (10ms): expected status 200 but got 404",
		"SUITE DONE Smoke: 1 passed, 1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("CI output must not contain ANSI escapes")
	}
}

func TestPrinterHumanMode(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithNoColor(true))

	p.SuiteStart("s.rivet.yaml", &config.Suite{Name: "Suite", Description: "does things"})
	p.StepResult(runner.TestResult{Name: "ok step", Passed: true, Duration: 1500 * time.Millisecond})
	p.SuiteDone(runner.TestSuiteResult{Name: "Suite", Passed: 1, Duration: 2 * time.Second})

	out := buf.String()
	for _, want := range []string{"Suite", "does things", "✓ ok step", "(1.5s)", "1 passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunSummaryVerdict(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, WithNoColor(true))

	ok := p.RunSummary([]runner.TestSuiteResult{
		{Name: "A", Passed: 2},
		{Name: "B", Passed: 1},
	})
	if !ok {
		t.Error("all-green run should report success")
	}

	buf.Reset()
	ok = p.RunSummary([]runner.TestSuiteResult{
		{Name: "A", Passed: 2, Failed: 1},
	})
	if ok {
		t.Error("run with failures should report failure")
	}
	if !strings.Contains(buf.String(), "1 failed") {
		t.Errorf("summary missing failure count:\n%s", buf.String())
	}
}
