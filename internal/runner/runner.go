package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wesleyorama2/rivet/internal/config"
)

// TestSuiteResult aggregates the step results of one suite run.
type TestSuiteResult struct {
	Name     string
	Results  []TestResult
	Duration time.Duration
	Passed   int
	Failed   int
}

// Reporter receives run events as they happen. Implementations must tolerate
// being called from the runner goroutine only; the runner never calls a
// reporter concurrently.
type Reporter interface {
	SuiteStart(name string, suite *config.Suite)
	StepResult(result TestResult)
	SuiteDone(result TestSuiteResult)
}

type nopReporter struct{}

func (nopReporter) SuiteStart(string, *config.Suite) {}
func (nopReporter) StepResult(TestResult)            {}
func (nopReporter) SuiteDone(TestSuiteResult)        {}

// Runner executes test suites loaded from .rivet.yaml files.
type Runner struct {
	exec     *Executor
	parallel int
	bail     bool
	filter   string
	env      string
	reporter Reporter
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout bounds each individual request.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Runner) { r.exec = NewExecutor(timeout) }
}

// WithParallel sets how many steps (or suites) run concurrently. Values
// below 1 are treated as sequential.
func WithParallel(n int) Option {
	return func(r *Runner) { r.parallel = n }
}

// WithBail stops the run at the first failed step.
func WithBail(bail bool) Option {
	return func(r *Runner) { r.bail = bail }
}

// WithFilter runs only test steps whose name contains the given substring.
func WithFilter(filter string) Option {
	return func(r *Runner) { r.filter = filter }
}

// WithEnv names the environment; it is exposed to templates as RIVET_ENV.
func WithEnv(env string) Option {
	return func(r *Runner) { r.env = env }
}

// WithReporter installs the event sink for live output.
func WithReporter(reporter Reporter) Option {
	return func(r *Runner) { r.reporter = reporter }
}

// NewRunner creates a runner with a 30 second request timeout, sequential
// execution, and no reporter.
func NewRunner(options ...Option) *Runner {
	r := &Runner{
		exec:     NewExecutor(30 * time.Second),
		parallel: 1,
		reporter: nopReporter{},
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Run loads the suite file or directory at target and executes every suite.
// It returns one result per suite. A non-nil error means an aggregate setup
// problem: the target or a dataset could not be loaded, and the run aborted.
func (r *Runner) Run(ctx context.Context, target string) ([]TestSuiteResult, error) {
	suites, err := config.LoadSuites(target)
	if err != nil {
		return nil, err
	}

	if r.parallel > 1 && len(suites) > 1 {
		return r.runSuitesParallel(ctx, suites)
	}

	results := make([]TestSuiteResult, 0, len(suites))
	for _, named := range suites {
		result, bailed, err := r.runSuite(ctx, named, r.parallel, r.reporter)
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if bailed {
			break
		}
	}
	return results, nil
}

// runSuitesParallel runs whole suites concurrently in chunks of r.parallel.
// Steps inside each suite run sequentially so two levels of fan-out never
// multiply. Events are replayed per suite after its chunk completes to keep
// output readable.
func (r *Runner) runSuitesParallel(ctx context.Context, suites []config.NamedSuite) ([]TestSuiteResult, error) {
	var results []TestSuiteResult

	for start := 0; start < len(suites); start += r.parallel {
		end := start + r.parallel
		if end > len(suites) {
			end = len(suites)
		}
		chunk := suites[start:end]

		type suiteOutcome struct {
			recorder *recordingReporter
			result   TestSuiteResult
			bailed   bool
			err      error
		}

		outcomes := make([]suiteOutcome, len(chunk))
		done := make(chan int, len(chunk))

		for i, named := range chunk {
			go func(i int, named config.NamedSuite) {
				recorder := &recordingReporter{}
				result, bailed, err := r.runSuite(ctx, named, 1, recorder)
				outcomes[i] = suiteOutcome{recorder, result, bailed, err}
				done <- i
			}(i, named)
		}
		for range chunk {
			<-done
		}

		bailed := false
		for _, outcome := range outcomes {
			outcome.recorder.replay(r.reporter)
			if outcome.err != nil {
				return results, outcome.err
			}
			results = append(results, outcome.result)
			bailed = bailed || outcome.bailed
		}
		if bailed {
			break
		}
	}
	return results, nil
}

// recordingReporter buffers events so parallel suites do not interleave.
type recordingReporter struct {
	events []func(Reporter)
}

func (r *recordingReporter) SuiteStart(name string, suite *config.Suite) {
	r.events = append(r.events, func(sink Reporter) { sink.SuiteStart(name, suite) })
}

func (r *recordingReporter) StepResult(result TestResult) {
	r.events = append(r.events, func(sink Reporter) { sink.StepResult(result) })
}

func (r *recordingReporter) SuiteDone(result TestSuiteResult) {
	r.events = append(r.events, func(sink Reporter) { sink.SuiteDone(result) })
}

func (r *recordingReporter) replay(sink Reporter) {
	for _, event := range r.events {
		event(sink)
	}
}

// runSuite executes one suite end to end. The returned bool reports whether a
// bail-triggering failure occurred; teardown still runs before it is returned.
// A non-nil error is an aggregate setup problem (the dataset could not be
// loaded) and aborts the suite without running teardown.
func (r *Runner) runSuite(ctx context.Context, named config.NamedSuite, parallel int, reporter Reporter) (TestSuiteResult, bool, error) {
	suite := named.Suite
	reporter.SuiteStart(named.Name, suite)

	start := time.Now()
	vars := r.buildContext(suite)

	var results []TestResult
	bailed := false

	setupResults, setupBailed := r.runSteps(ctx, suite.Setup, vars, named.Dir, 1, "Setup: ", reporter)
	results = append(results, setupResults...)

	if setupBailed {
		bailed = true
	} else if suite.Dataset != nil {
		rowResults, rowsBailed, err := r.runDataset(ctx, suite, named.Dir, vars, parallel, reporter)
		if err != nil {
			return TestSuiteResult{}, false, err
		}
		results = append(results, rowResults...)
		bailed = rowsBailed
	} else {
		testResults, testsBailed := r.runSteps(ctx, suite.Tests, vars, named.Dir, parallel, "", reporter)
		results = append(results, testResults...)
		bailed = testsBailed
	}

	// Teardown always runs, even after a bail.
	teardownResults, _ := r.runSteps(ctx, suite.Teardown, vars, named.Dir, 1, "Teardown: ", reporter)
	results = append(results, teardownResults...)

	result := TestSuiteResult{
		Name:     suite.Name,
		Results:  results,
		Duration: time.Since(start),
	}
	for _, step := range results {
		if step.Passed {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	reporter.SuiteDone(result)
	return result, bailed, nil
}

// buildContext assembles the variable context for one suite: the process
// environment, then the suite's own vars resolved against it, then the
// RIVET_ENV binding when an environment name is in play.
func (r *Runner) buildContext(suite *config.Suite) *Context {
	vars := NewContext().WithEnviron(os.Environ()).WithVars(suite.Vars)

	env := r.env
	if env == "" {
		env = suite.Env
	}
	if env != "" {
		vars.WithValue("RIVET_ENV", env)
	}
	return vars
}

// runDataset fans the suite's test steps out once per dataset row. A bail in
// one row skips all later rows. An unloadable dataset is an aggregate setup
// problem and aborts the run, not a per-step failure.
func (r *Runner) runDataset(ctx context.Context, suite *config.Suite, dir string, vars *Context, parallel int, reporter Reporter) ([]TestResult, bool, error) {
	rows, err := config.LoadDataset(config.ResolvePath(dir, suite.Dataset.File))
	if err != nil {
		return nil, false, fmt.Errorf("suite %s: %w", suite.Name, err)
	}

	if suite.Dataset.Parallel > 0 {
		parallel = suite.Dataset.Parallel
	}

	var results []TestResult
	for i, row := range rows {
		rowVars := vars.Clone().WithDataRow(row)
		prefix := fmt.Sprintf("[row %d] ", i+1)
		rowResults, bailed := r.runSteps(ctx, suite.Tests, rowVars, dir, parallel, prefix, reporter)
		results = append(results, rowResults...)
		if bailed {
			return results, true, nil
		}
	}
	return results, false, nil
}

// runSteps executes one step group, either sequentially or in concurrent
// chunks of size parallel. Concurrent chunks are always collected in full
// before a bail takes effect, so in-flight requests are never abandoned.
func (r *Runner) runSteps(ctx context.Context, steps []config.Step, vars *Context, dir string, parallel int, prefix string, reporter Reporter) ([]TestResult, bool) {
	filtered := r.filterSteps(steps)
	if len(filtered) == 0 {
		return nil, false
	}

	if parallel <= 1 {
		var results []TestResult
		for _, step := range filtered {
			result := r.exec.Execute(ctx, prefix+step.Name, step.Request, step.Expect, vars, dir)
			reporter.StepResult(result)
			results = append(results, result)
			if r.bail && !result.Passed {
				return results, true
			}
		}
		return results, false
	}

	var results []TestResult
	for start := 0; start < len(filtered); start += parallel {
		end := start + parallel
		if end > len(filtered) {
			end = len(filtered)
		}
		chunk := filtered[start:end]

		resultCh := make(chan TestResult, len(chunk))
		for _, step := range chunk {
			go func(step config.Step) {
				resultCh <- r.exec.Execute(ctx, prefix+step.Name, step.Request, step.Expect, vars.Clone(), dir)
			}(step)
		}

		chunkFailed := false
		for range chunk {
			result := <-resultCh
			reporter.StepResult(result)
			results = append(results, result)
			if !result.Passed {
				chunkFailed = true
			}
		}
		if r.bail && chunkFailed {
			return results, true
		}
	}
	return results, false
}

// filterSteps applies the substring name filter.
func (r *Runner) filterSteps(steps []config.Step) []config.Step {
	if r.filter == "" {
		return steps
	}
	var out []config.Step
	for _, step := range steps {
		if strings.Contains(step.Name, r.filter) {
			out = append(out, step)
		}
	}
	return out
}
