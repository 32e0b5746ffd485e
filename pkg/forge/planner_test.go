package forge_test

import (
	"testing"

	"autonomy/pkg/forge"
	"autonomy/pkg/state"
)

func TestPlanCreatesCandidateFromOpenGap(t *testing.T) {
	gaps := []state.Gap{
		{ID: "g1", Key: "queue.overflow", Title: "queue overflow", Category: state.CategoryReliability, Status: state.GapOpen, Score: 80},
	}
	candidates := forge.Plan(gaps, nil, 1000)
	if len(candidates) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(candidates))
	}
	if candidates[0].SourceGapID != "g1" {
		t.Errorf("SourceGapID = %q, want %q", candidates[0].SourceGapID, "g1")
	}
	if candidates[0].Status != state.CandidateCandidate {
		t.Errorf("Status = %s, want %s", candidates[0].Status, state.CandidateCandidate)
	}
	found := false
	for _, c := range candidates[0].Safety.Constraints {
		if c == "includes a timeout/retry resilience test" {
			found = true
		}
	}
	if !found {
		t.Errorf("Constraints = %v, want to contain %q", candidates[0].Safety.Constraints, "includes a timeout/retry resilience test")
	}
}

func TestPlanSkipsGapsAlreadyBacked(t *testing.T) {
	gaps := []state.Gap{{ID: "g1", Key: "k1", Status: state.GapOpen, Score: 50}}
	existing := []state.SkillCandidate{{ID: "c1", SourceGapID: "g1", Status: state.CandidateVerified}}
	candidates := forge.Plan(gaps, existing, 1000)
	if len(candidates) != 1 {
		t.Fatalf("len(candidates) = %d, want 1", len(candidates))
	}
	if candidates[0].ID != "c1" {
		t.Errorf("ID = %q, want %q", candidates[0].ID, "c1")
	}
}

func TestPlanLimitsNewCandidatesPerCall(t *testing.T) {
	var gaps []state.Gap
	for i := 0; i < 10; i++ {
		gaps = append(gaps, state.Gap{ID: string(rune('a' + i)), Key: string(rune('a' + i)), Status: state.GapOpen, Score: 10})
	}
	candidates := forge.Plan(gaps, nil, 1000)
	if len(candidates) != 5 {
		t.Errorf("len(candidates) = %d, want 5", len(candidates))
	}
}

func TestPlanSortsByPriorityDescending(t *testing.T) {
	gaps := []state.Gap{
		{ID: "low", Key: "low", Status: state.GapOpen, Score: 10},
		{ID: "high", Key: "high", Status: state.GapOpen, Score: 90},
	}
	candidates := forge.Plan(gaps, nil, 1000)
	if len(candidates) != 2 {
		t.Fatalf("len(candidates) = %d, want 2", len(candidates))
	}
	if candidates[0].Priority < candidates[1].Priority {
		t.Errorf("expected candidates sorted by descending priority, got %v then %v", candidates[0].Priority, candidates[1].Priority)
	}
}

func TestPlanIsDeterministicForFixedSnapshot(t *testing.T) {
	gaps := []state.Gap{
		{ID: "g1", Key: "k1", Status: state.GapOpen, Score: 40},
		{ID: "g2", Key: "k2", Status: state.GapOpen, Score: 40},
	}
	a := forge.Plan(gaps, nil, 1000)
	b := forge.Plan(gaps, nil, 1000)
	if len(a) != len(b) {
		t.Fatalf("len(a) = %d, len(b) = %d, want equal", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].SourceGapID != b[i].SourceGapID || a[i].Priority != b[i].Priority {
			t.Errorf("plan not deterministic at index %d: a=%+v b=%+v", i, a[i], b[i])
		}
	}
}
