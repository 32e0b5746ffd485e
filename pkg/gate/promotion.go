// Package gate implements the promotion gate checked when the augmentation
// FSM sits in the promote stage.
package gate

import (
	"fmt"

	"autonomy/pkg/canary"
)

// Config is the promotion gate's thresholds.
type Config struct {
	MinimumRecentCycles int
	MaximumErrorRate    float64
	MinimumEvalScore    float64
}

// DefaultConfig returns the spec's defaults.
func DefaultConfig() Config {
	return Config{MinimumRecentCycles: 3, MaximumErrorRate: 0.2, MinimumEvalScore: 0.6}
}

// Inputs summarizes the facts the gate evaluates.
type Inputs struct {
	VerifiedCandidateCount int
	RecentCycleCount       int
	ErrorRate              float64
	CanaryStatus           canary.Status
	EvalScore              float64
}

// Result is the outcome of Check.
type Result struct {
	Passed bool
	Reason string
}

// Check evaluates the promotion gate. Passes iff a verified candidate
// exists, enough recent cycles have run, the error rate and eval score
// clear their thresholds, and the canary did not regress.
func Check(in Inputs, cfg Config) Result {
	if in.VerifiedCandidateCount <= 0 {
		return Result{Reason: "no verified candidates"}
	}
	if in.RecentCycleCount < cfg.MinimumRecentCycles {
		return Result{Reason: fmt.Sprintf("insufficient recent cycles (%d < %d)", in.RecentCycleCount, cfg.MinimumRecentCycles)}
	}
	if in.ErrorRate > cfg.MaximumErrorRate {
		return Result{Reason: fmt.Sprintf("error rate %.4f exceeds maximum %.4f", in.ErrorRate, cfg.MaximumErrorRate)}
	}
	if in.CanaryStatus == canary.StatusRegressed {
		return Result{Reason: "canary regressed"}
	}
	if in.EvalScore < cfg.MinimumEvalScore {
		return Result{Reason: fmt.Sprintf("eval score %.4f below minimum %.4f", in.EvalScore, cfg.MinimumEvalScore)}
	}
	return Result{Passed: true, Reason: "promotion gate satisfied"}
}
