package performance

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Monitor prints periodic progress snapshots while workers run, then the
// final summary. It reads the shared metrics without pausing workers.
type Monitor struct {
	metrics    *Metrics
	controller *Controller
	duration   time.Duration
	interval   time.Duration
	out        io.Writer
	start      time.Time
}

// NewMonitor creates a monitor reporting every interval for a run of the
// given total duration.
func NewMonitor(metrics *Metrics, controller *Controller, duration, interval time.Duration, out io.Writer) *Monitor {
	return &Monitor{
		metrics:    metrics,
		controller: controller,
		duration:   duration,
		interval:   interval,
		out:        out,
		start:      time.Now(),
	}
}

// Run prints a snapshot on every tick until stop is closed. Call it in its
// own goroutine.
func (m *Monitor) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.printSnapshot()
		}
	}
}

func (m *Monitor) printSnapshot() {
	elapsed := time.Since(m.start)
	results := m.metrics.CalculateResults()

	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Fprintf(m.out, "%s %s | %s | %.1f req/s (target %.0f) | %d reqs, %d errors | p50 %dms p95 %dms p99 %dms\n",
		progressBar(elapsed, m.duration, 20),
		elapsed.Round(time.Second),
		cyan(m.controller.PhaseDescription(elapsed)),
		results.RequestsPerSecond,
		m.controller.TargetRPS(),
		results.TotalRequests,
		results.FailedRequests,
		results.P50.Duration().Milliseconds(),
		results.P95.Duration().Milliseconds(),
		results.P99.Duration().Milliseconds(),
	)
}

// progressBar renders elapsed/total as a fixed-width bar.
func progressBar(elapsed, total time.Duration, width int) string {
	if total <= 0 {
		return "[" + strings.Repeat("=", width) + "]"
	}
	filled := int(float64(width) * float64(elapsed) / float64(total))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// successThreshold is the minimum success rate for a passing verdict.
const successThreshold = 0.95

// Passed reports the overall verdict for a run.
func Passed(results Results) bool {
	return results.SuccessRate >= successThreshold
}

// PrintFinalSummary writes the end-of-run report.
func (m *Monitor) PrintFinalSummary(results Results) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(m.out, "\n%s\n", bold("Performance Test Results"))
	fmt.Fprintf(m.out, "  Duration:          %v\n", results.Elapsed.Duration().Round(time.Millisecond))
	fmt.Fprintf(m.out, "  Total requests:    %d\n", results.TotalRequests)
	fmt.Fprintf(m.out, "  Successful:        %d\n", results.SuccessfulRequests)
	fmt.Fprintf(m.out, "  Failed:            %d (%d connection errors)\n", results.FailedRequests, results.ConnectionErrors)
	fmt.Fprintf(m.out, "  Throughput:        %.1f req/s\n", results.RequestsPerSecond)
	fmt.Fprintf(m.out, "  Bytes sent/recv:   %d / %d\n", results.BytesSent, results.BytesReceived)

	fmt.Fprintf(m.out, "\n%s\n", bold("Response Times"))
	fmt.Fprintf(m.out, "  min %dms | avg %dms | p50 %dms | p90 %dms | p95 %dms | p99 %dms | max %dms\n",
		results.MinResponseTime.Duration().Milliseconds(),
		results.AvgResponseTime.Duration().Milliseconds(),
		results.P50.Duration().Milliseconds(),
		results.P90.Duration().Milliseconds(),
		results.P95.Duration().Milliseconds(),
		results.P99.Duration().Milliseconds(),
		results.MaxResponseTime.Duration().Milliseconds(),
	)

	if len(results.StatusCodes) > 0 {
		fmt.Fprintf(m.out, "\n%s\n", bold("Status Codes"))
		codes := make([]int, 0, len(results.StatusCodes))
		for code := range results.StatusCodes {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(m.out, "  %d: %d\n", code, results.StatusCodes[code])
		}
	}

	if len(results.Steps) > 0 {
		fmt.Fprintf(m.out, "\n%s\n", bold("Per-Step Latency"))
		for _, step := range results.Steps {
			fmt.Fprintf(m.out, "  %-30s %6d reqs | mean %dms | p50 %dms | p95 %dms | p99 %dms\n",
				step.Name, step.Count,
				step.Mean.Duration().Milliseconds(),
				step.P50.Duration().Milliseconds(),
				step.P95.Duration().Milliseconds(),
				step.P99.Duration().Milliseconds(),
			)
		}
	}

	fmt.Fprintln(m.out)
	if Passed(results) {
		fmt.Fprintf(m.out, "%s success rate %.1f%%\n", green("PASS"), results.SuccessRate*100)
	} else {
		fmt.Fprintf(m.out, "%s success rate %.1f%% (below %.0f%%)\n", red("FAIL"), results.SuccessRate*100, successThreshold*100)
	}
}
