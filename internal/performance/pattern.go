// Package performance implements the load-testing mode: a time-indexed load
// controller, a mutex-guarded metrics aggregate with HDR per-step histograms,
// a periodic progress monitor, and the worker-pool runner that drives them.
package performance

import (
	"fmt"
	"time"
)

// LoadPattern is the time-varying shape of the target request rate.
type LoadPattern int

const (
	// PatternConstant holds the target rate for the whole run.
	PatternConstant LoadPattern = iota

	// PatternRampUp scales the rate linearly from zero to the base rate over
	// the warmup window, then holds.
	PatternRampUp

	// PatternSpike doubles the base rate for the first 5 seconds of every
	// 30-second cycle.
	PatternSpike
)

const (
	spikeCycle    = 30 * time.Second
	spikeDuration = 5 * time.Second
	spikeFactor   = 2.0
)

// ParsePattern maps a CLI pattern name to a LoadPattern. It fails fast on
// unknown names so no request is ever dispatched under a misconfigured run.
func ParsePattern(name string) (LoadPattern, error) {
	switch name {
	case "constant":
		return PatternConstant, nil
	case "ramp-up", "rampup":
		return PatternRampUp, nil
	case "spike":
		return PatternSpike, nil
	default:
		return PatternConstant, fmt.Errorf("unknown load pattern %q (want constant, ramp-up, or spike)", name)
	}
}

func (p LoadPattern) String() string {
	switch p {
	case PatternRampUp:
		return "ramp-up"
	case PatternSpike:
		return "spike"
	default:
		return "constant"
	}
}

// Controller computes the target request rate as a pure function of elapsed
// time. Apart from the fixed start timestamp it holds no mutable state, so it
// is safe to share across workers without locking.
type Controller struct {
	pattern     LoadPattern
	targetRPS   int // 0 means no explicit target was configured
	concurrency int
	warmup      time.Duration
	start       time.Time
}

// NewController creates a controller. targetRPS of zero means "unpaced":
// workers run back-to-back and the reported target falls back to
// concurrency x 10.
func NewController(pattern LoadPattern, targetRPS, concurrency int, warmup time.Duration) *Controller {
	return &Controller{
		pattern:     pattern,
		targetRPS:   targetRPS,
		concurrency: concurrency,
		warmup:      warmup,
		start:       time.Now(),
	}
}

func (c *Controller) baseRPS() float64 {
	if c.targetRPS > 0 {
		return float64(c.targetRPS)
	}
	return float64(c.concurrency * 10)
}

// TargetRPS returns the current target rate for the pattern.
func (c *Controller) TargetRPS() float64 {
	return c.TargetRPSAt(time.Since(c.start))
}

// TargetRPSAt returns the target rate at a given elapsed offset. Exposed
// separately from TargetRPS so pattern shapes can be checked deterministically.
func (c *Controller) TargetRPSAt(elapsed time.Duration) float64 {
	base := c.baseRPS()

	switch c.pattern {
	case PatternRampUp:
		if c.warmup > 0 && elapsed < c.warmup {
			return base * (float64(elapsed) / float64(c.warmup))
		}
		return base
	case PatternSpike:
		if elapsed%spikeCycle < spikeDuration {
			return base * spikeFactor
		}
		return base
	default:
		return base
	}
}

// RequestDelay returns the per-iteration pause a worker should take. It is
// zero when no explicit target RPS was configured: unpaced workers are
// bounded only by the HTTP round trip.
//
// Each worker computes this independently from the global target, so
// aggregate throughput scales with worker count and only approximates the
// configured rate.
func (c *Controller) RequestDelay() time.Duration {
	return c.RequestDelayAt(time.Since(c.start))
}

// RequestDelayAt is the deterministic form of RequestDelay.
func (c *Controller) RequestDelayAt(elapsed time.Duration) time.Duration {
	if c.targetRPS <= 0 {
		return 0
	}

	rps := c.TargetRPSAt(elapsed)
	if rps < 1 {
		rps = 1
	}
	// Whole-millisecond resolution, truncating.
	return time.Duration(1000/rps) * time.Millisecond
}

// PhaseDescription names the pattern phase at an elapsed offset, for the
// progress monitor.
func (c *Controller) PhaseDescription(elapsed time.Duration) string {
	switch c.pattern {
	case PatternRampUp:
		if c.warmup > 0 && elapsed < c.warmup {
			pct := float64(elapsed) / float64(c.warmup) * 100
			return fmt.Sprintf("ramping up (%.0f%%)", pct)
		}
		return "steady"
	case PatternSpike:
		if elapsed%spikeCycle < spikeDuration {
			return "spike"
		}
		return "steady"
	default:
		return "steady"
	}
}
