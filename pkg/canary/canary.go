// Package canary implements the error-rate and latency-regression check
// that gates promotion of verified candidates.
package canary

import (
	"fmt"
	"math"
	"sort"

	"autonomy/pkg/state"
)

// Status is the outcome of a canary evaluation.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusRegressed Status = "regressed"
)

// Metrics are the canary evaluator's inputs. Non-finite/negative inputs
// clamp to 0.
type Metrics struct {
	ErrorRate               float64
	MaxErrorRate            float64
	LatencyP95Ms            float64
	BaselineLatencyP95Ms    float64
	MaxLatencyRegressionPct float64
}

func clampNonNegativeFinite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Result is the evaluated canary outcome.
type Result struct {
	Status Status
	Reason string
}

// Evaluate runs the canary check. Error-rate exceedance regresses with
// shouldRollback; otherwise a latency regression beyond
// maxLatencyRegressionPct regresses; otherwise healthy.
func Evaluate(m Metrics) Result {
	m.ErrorRate = clampNonNegativeFinite(m.ErrorRate)
	m.MaxErrorRate = clampNonNegativeFinite(m.MaxErrorRate)
	m.LatencyP95Ms = clampNonNegativeFinite(m.LatencyP95Ms)
	m.BaselineLatencyP95Ms = clampNonNegativeFinite(m.BaselineLatencyP95Ms)
	m.MaxLatencyRegressionPct = clampNonNegativeFinite(m.MaxLatencyRegressionPct)

	if m.ErrorRate > m.MaxErrorRate {
		return Result{Status: StatusRegressed, Reason: fmt.Sprintf("error rate %.4f exceeds threshold %.4f", m.ErrorRate, m.MaxErrorRate)}
	}
	if m.BaselineLatencyP95Ms > 0 {
		regressionPct := (m.LatencyP95Ms - m.BaselineLatencyP95Ms) / m.BaselineLatencyP95Ms * 100
		if regressionPct > m.MaxLatencyRegressionPct {
			return Result{Status: StatusRegressed, Reason: fmt.Sprintf("p95 latency regressed %.1f%% vs threshold %.1f%%", regressionPct, m.MaxLatencyRegressionPct)}
		}
	}
	return Result{Status: StatusHealthy, Reason: "within error-rate and latency thresholds"}
}

// DeriveFromCycles computes canary Metrics from the last up-to-5 non-skipped
// cycle records when explicit metrics are absent: errorRate = error/total,
// p95 from sorted durations, baseline = median.
func DeriveFromCycles(cycles []state.CycleRecord, maxErrorRate, maxLatencyRegressionPct float64) Metrics {
	var recent []state.CycleRecord
	for i := len(cycles) - 1; i >= 0 && len(recent) < 5; i-- {
		if cycles[i].Status == "skipped" {
			continue
		}
		recent = append(recent, cycles[i])
	}

	if len(recent) == 0 {
		return Metrics{MaxErrorRate: maxErrorRate, MaxLatencyRegressionPct: maxLatencyRegressionPct}
	}

	errored := 0
	durations := make([]int64, 0, len(recent))
	for _, c := range recent {
		if c.Status == "error" {
			errored++
		}
		durations = append(durations, c.DurationMs)
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	return Metrics{
		ErrorRate:               float64(errored) / float64(len(recent)),
		MaxErrorRate:            maxErrorRate,
		LatencyP95Ms:            percentile(durations, 0.95),
		BaselineLatencyP95Ms:    percentile(durations, 0.5),
		MaxLatencyRegressionPct: maxLatencyRegressionPct,
	}
}

func percentile(sorted []int64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx])
}

// ApplyRegression demotes every verified candidate to rejected.
func ApplyRegression(candidates []state.SkillCandidate, nowMs int64) []state.SkillCandidate {
	out := append([]state.SkillCandidate{}, candidates...)
	for i := range out {
		if out[i].Status == state.CandidateVerified {
			out[i].Status = state.CandidateRejected
			out[i].UpdatedAt = nowMs
		}
	}
	return out
}
