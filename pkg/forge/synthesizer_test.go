package forge_test

import (
	"os"
	"strings"
	"testing"

	"autonomy/pkg/forge"
	"autonomy/pkg/state"
)

func TestSynthesizeWritesArtifactAndMarksPlanned(t *testing.T) {
	dir := t.TempDir()
	candidates := []state.SkillCandidate{
		{ID: "c1", Name: "autonomy-fix-queue", Intent: "fix queue overflow", Status: state.CandidateCandidate,
			Safety: state.SafetyProfile{ExecutionClass: state.ClassReversibleWrite, Constraints: []string{"runs only against the agent's own workspace"}},
			Tests:  []string{"unit test covering the primary success path"}},
	}
	out, err := forge.Synthesize(candidates, dir, 1000)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if out[0].Status != state.CandidatePlanned {
		t.Errorf("Status = %s, want %s", out[0].Status, state.CandidatePlanned)
	}
	if out[0].UpdatedAt != 1000 {
		t.Errorf("UpdatedAt = %d, want 1000", out[0].UpdatedAt)
	}

	content, err := os.ReadFile(forge.ArtifactPath(dir, "autonomy-fix-queue"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "## Purpose") {
		t.Errorf("artifact missing %q section", "## Purpose")
	}
	if !strings.Contains(string(content), "runs only against the agent's own workspace") {
		t.Errorf("artifact missing constraint text")
	}
}

func TestSynthesizeIsIdempotentForUnchangedInput(t *testing.T) {
	dir := t.TempDir()
	candidates := []state.SkillCandidate{
		{ID: "c1", Name: "autonomy-fix-queue", Intent: "fix queue overflow", Status: state.CandidateCandidate,
			Safety: state.SafetyProfile{ExecutionClass: state.ClassReversibleWrite, Constraints: []string{"c1"}},
			Tests:  []string{"t1"}},
	}
	first, err := forge.Synthesize(candidates, dir, 1000)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	path := forge.ArtifactPath(dir, "autonomy-fix-queue")
	before, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	second, err := forge.Synthesize(first, dir, 2000)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if second[0].Status != state.CandidatePlanned {
		t.Errorf("Status = %s, want %s", second[0].Status, state.CandidatePlanned)
	}
	if second[0].UpdatedAt != 1000 {
		t.Errorf("UpdatedAt = %d, want 1000 (should not change when artifact content is unchanged)", second[0].UpdatedAt)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Errorf("ModTime changed from %v to %v, want unchanged", before.ModTime(), after.ModTime())
	}
}

func TestSynthesizeLimitsPerCall(t *testing.T) {
	dir := t.TempDir()
	var candidates []state.SkillCandidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates, state.SkillCandidate{
			ID: string(rune('a' + i)), Name: string(rune('a' + i)), Status: state.CandidateCandidate,
		})
	}
	out, err := forge.Synthesize(candidates, dir, 1000)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	planned := 0
	for _, c := range out {
		if c.Status == state.CandidatePlanned {
			planned++
		}
	}
	if planned != 3 {
		t.Errorf("planned = %d, want 3", planned)
	}
}
