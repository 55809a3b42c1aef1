package performance

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/wesleyorama2/rivet/internal/config"
	"github.com/wesleyorama2/rivet/internal/runner"
)

// settleTime is how long the runner waits after the nominal stop before
// taking the authoritative metrics snapshot, so straggling requests land.
const settleTime = 2 * time.Second

// RunnerConfig holds the knobs for one performance run.
type RunnerConfig struct {
	Duration       time.Duration
	Concurrency    int
	TargetRPS      int // 0 means unpaced
	Warmup         time.Duration
	ReportInterval time.Duration
	Pattern        LoadPattern
	Env            string
	Timeout        time.Duration
	Out            io.Writer
}

// Runner drives a pool of workers against one suite's test steps and
// aggregates their outcomes.
type Runner struct {
	cfg RunnerConfig
}

// NewRunner creates a performance runner. Unset config fields get defaults:
// 1 worker, 60s request timeout, 5s report interval.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		// Longer than the functional-test default to tolerate load-induced
		// latency.
		cfg.Timeout = 60 * time.Second
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 5 * time.Second
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &Runner{cfg: cfg}
}

// Run loads the target and executes the load test against the first suite
// found. Additional suites at the target are ignored.
//
// The run stops when the duration timer fires or every worker has observed
// its own elapsed-time condition, whichever comes first. Workers are not
// cancelled at the timer: in-flight requests are abandoned and may or may
// not be recorded before the settle window closes.
func (r *Runner) Run(ctx context.Context, target string) (Results, error) {
	suites, err := config.LoadSuites(target)
	if err != nil {
		return Results{}, err
	}
	named := suites[0]
	suite := named.Suite

	if len(suite.Tests) == 0 {
		return Results{}, fmt.Errorf("suite %s has no test steps", suite.Name)
	}

	fmt.Fprintf(r.cfg.Out, "Load testing %s: %d workers, %v, %s pattern\n",
		suite.Name, r.cfg.Concurrency, r.cfg.Duration, r.cfg.Pattern)

	// Metrics start now, before warmup, so elapsed-time rates span the run.
	metrics := NewMetrics()

	if r.cfg.Warmup > 0 {
		fmt.Fprintf(r.cfg.Out, "Warming up for %v...\n", r.cfg.Warmup)
		time.Sleep(r.cfg.Warmup)
	}

	controller := NewController(r.cfg.Pattern, r.cfg.TargetRPS, r.cfg.Concurrency, r.cfg.Warmup)
	monitor := NewMonitor(metrics, controller, r.cfg.Duration, r.cfg.ReportInterval, r.cfg.Out)

	stopMonitor := make(chan struct{})
	go monitor.Run(stopMonitor)

	exec := runner.NewExecutor(r.cfg.Timeout)
	baseVars := runner.NewContext().WithEnviron(os.Environ()).WithVars(suite.Vars)
	if r.cfg.Env != "" {
		baseVars.WithValue("RIVET_ENV", r.cfg.Env)
	}

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, exec, controller, metrics, suite, named.Dir, baseVars.Clone())
		}()
	}

	allDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(allDone)
	}()

	timer := time.NewTimer(r.cfg.Duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-allDone:
	case <-ctx.Done():
	}

	close(stopMonitor)
	time.Sleep(settleTime)

	results := metrics.CalculateResults()
	monitor.PrintFinalSummary(results)
	return results, nil
}

// worker loops for the configured duration, round-robining through the
// suite's test steps and recording each outcome. Pacing comes from the load
// controller plus a fixed minimal pause between iterations.
func (r *Runner) worker(ctx context.Context, exec *runner.Executor, controller *Controller, metrics *Metrics, suite *config.Suite, dir string, vars *runner.Context) {
	start := time.Now()
	step := 0

	for time.Since(start) < r.cfg.Duration {
		if ctx.Err() != nil {
			return
		}

		current := suite.Tests[step%len(suite.Tests)]
		step++

		result := exec.Execute(ctx, current.Name, current.Request, current.Expect, vars, dir)
		if result.ResponseStatus == 0 {
			metrics.RecordConnectionError()
		} else {
			// Body-less requests still cost roughly a hundred bytes of
			// request line and headers on the wire.
			sent := int64(len(current.Request.Body))
			if sent == 0 {
				sent = 100
			}
			metrics.Record(current.Name, result.Duration, result.ResponseStatus,
				sent, int64(len(result.ResponseBody)), !result.Passed)
		}

		if delay := controller.RequestDelay(); delay > 0 {
			time.Sleep(delay)
		}
		time.Sleep(time.Millisecond)
	}
}
