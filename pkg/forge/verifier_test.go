package forge_test

import (
	"testing"

	"autonomy/pkg/forge"
	"autonomy/pkg/state"
)

func candidateFor(dir, name string) state.SkillCandidate {
	return state.SkillCandidate{
		ID:     "c1",
		Name:   name,
		Status: state.CandidatePlanned,
		Safety: state.SafetyProfile{ExecutionClass: state.ClassReversibleWrite, Constraints: []string{"runs only against the agent's own workspace"}},
		Tests:  []string{"unit test covering the primary success path"},
	}
}

func TestVerifySucceedsWhenArtifactMatchesDeclaration(t *testing.T) {
	dir := t.TempDir()
	c := candidateFor(dir, "autonomy-test-skill")
	synthesized, err := forge.Synthesize([]state.SkillCandidate{c}, dir, 1000)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	out, reports := forge.Verify(synthesized, dir, 2000)
	if len(reports) != 1 {
		t.Fatalf("len(reports) = %d, want 1", len(reports))
	}
	if !reports[0].Verified {
		t.Errorf("Verified = false, want true; failures=%v", reports[0].Failures)
	}
	if out[0].Status != state.CandidateVerified {
		t.Errorf("Status = %s, want %s", out[0].Status, state.CandidateVerified)
	}
}

func TestVerifyFailsWhenArtifactMissing(t *testing.T) {
	dir := t.TempDir()
	c := candidateFor(dir, "autonomy-missing-skill")
	out, reports := forge.Verify([]state.SkillCandidate{c}, dir, 1000)
	if len(reports) != 1 {
		t.Fatalf("len(reports) = %d, want 1", len(reports))
	}
	if reports[0].Verified {
		t.Error("Verified = true, want false")
	}
	if !containsFailure(reports[0].Failures, forge.FailArtifactMissing) {
		t.Errorf("Failures = %v, want to contain %v", reports[0].Failures, forge.FailArtifactMissing)
	}
	if out[0].Status != state.CandidateRejected {
		t.Errorf("Status = %s, want %s", out[0].Status, state.CandidateRejected)
	}
}

func TestVerifyFailsWhenConstraintDropped(t *testing.T) {
	dir := t.TempDir()
	c := candidateFor(dir, "autonomy-drift-skill")
	synthesized, err := forge.Synthesize([]state.SkillCandidate{c}, dir, 1000)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	synthesized[0].Safety.Constraints = append(synthesized[0].Safety.Constraints, "a constraint never written to the artifact")
	_, reports := forge.Verify(synthesized, dir, 2000)
	if reports[0].Verified {
		t.Error("Verified = true, want false")
	}
	if !containsFailure(reports[0].Failures, forge.FailMissingConstraint) {
		t.Errorf("Failures = %v, want to contain %v", reports[0].Failures, forge.FailMissingConstraint)
	}
}

func TestVerifyLimitsPerCall(t *testing.T) {
	dir := t.TempDir()
	var candidates []state.SkillCandidate
	for i := 0; i < 7; i++ {
		candidates = append(candidates, candidateFor(dir, string(rune('a'+i))))
	}
	_, reports := forge.Verify(candidates, dir, 1000)
	if len(reports) != 5 {
		t.Errorf("len(reports) = %d, want 5", len(reports))
	}
}

func containsFailure(failures []forge.FailureCode, want forge.FailureCode) bool {
	for _, f := range failures {
		if f == want {
			return true
		}
	}
	return false
}
