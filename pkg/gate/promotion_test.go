package gate_test

import (
	"strings"
	"testing"

	"autonomy/pkg/canary"
	"autonomy/pkg/gate"
)

func TestCheckPassesWhenAllConditionsMet(t *testing.T) {
	r := gate.Check(gate.Inputs{
		VerifiedCandidateCount: 1,
		RecentCycleCount:       3,
		ErrorRate:              0.1,
		CanaryStatus:           canary.StatusHealthy,
		EvalScore:              0.8,
	}, gate.DefaultConfig())
	if !r.Passed {
		t.Errorf("Passed = false, want true; reason=%q", r.Reason)
	}
}

func TestCheckFailsWithoutVerifiedCandidate(t *testing.T) {
	r := gate.Check(gate.Inputs{VerifiedCandidateCount: 0, RecentCycleCount: 3, EvalScore: 0.8}, gate.DefaultConfig())
	if r.Passed {
		t.Error("Passed = true, want false")
	}
	if !strings.Contains(r.Reason, "no verified candidates") {
		t.Errorf("Reason = %q, want to contain %q", r.Reason, "no verified candidates")
	}
}

func TestCheckFailsOnInsufficientCycles(t *testing.T) {
	r := gate.Check(gate.Inputs{VerifiedCandidateCount: 1, RecentCycleCount: 1, EvalScore: 0.8}, gate.DefaultConfig())
	if r.Passed {
		t.Error("Passed = true, want false")
	}
	if !strings.Contains(r.Reason, "insufficient recent cycles") {
		t.Errorf("Reason = %q, want to contain %q", r.Reason, "insufficient recent cycles")
	}
}

func TestCheckFailsOnExcessiveErrorRate(t *testing.T) {
	r := gate.Check(gate.Inputs{VerifiedCandidateCount: 1, RecentCycleCount: 3, ErrorRate: 0.9, EvalScore: 0.8}, gate.DefaultConfig())
	if r.Passed {
		t.Error("Passed = true, want false")
	}
	if !strings.Contains(r.Reason, "error rate") {
		t.Errorf("Reason = %q, want to contain %q", r.Reason, "error rate")
	}
}

func TestCheckFailsOnCanaryRegression(t *testing.T) {
	r := gate.Check(gate.Inputs{VerifiedCandidateCount: 1, RecentCycleCount: 3, CanaryStatus: canary.StatusRegressed, EvalScore: 0.8}, gate.DefaultConfig())
	if r.Passed {
		t.Error("Passed = true, want false")
	}
	if !strings.Contains(r.Reason, "canary regressed") {
		t.Errorf("Reason = %q, want to contain %q", r.Reason, "canary regressed")
	}
}

func TestCheckFailsOnLowEvalScore(t *testing.T) {
	r := gate.Check(gate.Inputs{VerifiedCandidateCount: 1, RecentCycleCount: 3, EvalScore: 0.1}, gate.DefaultConfig())
	if r.Passed {
		t.Error("Passed = true, want false")
	}
	if !strings.Contains(r.Reason, "eval score") {
		t.Errorf("Reason = %q, want to contain %q", r.Reason, "eval score")
	}
}
