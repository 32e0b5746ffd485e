package forge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"autonomy/pkg/state"
)

// artifactFrontmatter is the machine-readable header embedded at the top of
// every synthesized skill artifact, ahead of the human-readable markdown
// body. The verifier parses this back out rather than grepping prose.
type artifactFrontmatter struct {
	Name           string   `yaml:"name"`
	ExecutionClass string   `yaml:"execution_class"`
	Constraints    []string `yaml:"constraints"`
	Tests          []string `yaml:"tests"`
}

const maxSynthesizePerCall = 3

// SynthesisDir is the workspace-relative directory generated skill
// artifacts are written under.
const SynthesisDir = "skills/autonomy-generated"

// ArtifactPath returns the markdown artifact path for a candidate name.
func ArtifactPath(workspaceDir string, name string) string {
	return filepath.Join(workspaceDir, SynthesisDir, slug(name)+".md")
}

// Synthesize writes a markdown artifact for up to maxSynthesizePerCall
// candidate/planned candidates and marks them planned. UpdatedAt is set to
// nowMs when the artifact was (re)written or the candidate was not yet
// planned. Writes are idempotent for unchanged inputs: an artifact whose
// content already matches is left untouched (mtime and content unchanged),
// and an already-planned candidate keeps its UpdatedAt.
func Synthesize(candidates []state.SkillCandidate, workspaceDir string, nowMs int64) ([]state.SkillCandidate, error) {
	out := append([]state.SkillCandidate{}, candidates...)
	processed := 0
	for i := range out {
		if processed >= maxSynthesizePerCall {
			break
		}
		c := &out[i]
		if c.Status != state.CandidateCandidate && c.Status != state.CandidatePlanned {
			continue
		}
		processed++

		content := renderArtifact(*c)
		path := ArtifactPath(workspaceDir, c.Name)
		changed, err := writeIfChanged(path, content)
		if err != nil {
			return out, fmt.Errorf("forge: synthesize %s: %w", c.Name, err)
		}
		if changed || c.Status != state.CandidatePlanned {
			c.Status = state.CandidatePlanned
			c.UpdatedAt = nowMs
		}
	}
	return out, nil
}

func renderArtifact(c state.SkillCandidate) string {
	var b strings.Builder
	fm := artifactFrontmatter{
		Name:           c.Name,
		ExecutionClass: string(c.Safety.ExecutionClass),
		Constraints:    c.Safety.Constraints,
		Tests:          c.Tests,
	}
	encoded, err := yaml.Marshal(fm)
	if err == nil {
		b.WriteString("---\n")
		b.Write(encoded)
		b.WriteString("---\n\n")
	}
	fmt.Fprintf(&b, "# %s\n\n", c.Name)
	b.WriteString("## Purpose\n\n")
	fmt.Fprintf(&b, "%s\n\n", c.Intent)
	b.WriteString("## Safety constraints\n\n")
	for _, constraint := range c.Safety.Constraints {
		fmt.Fprintf(&b, "- %s\n", constraint)
	}
	b.WriteString("\n## Verification checklist\n\n")
	for _, test := range c.Tests {
		fmt.Fprintf(&b, "- %s\n", test)
	}
	b.WriteString("\n## Operational guidance\n\n")
	fmt.Fprintf(&b, "Execution class: %s. Apply only after canary evaluation passes and promotion gates are satisfied.\n", c.Safety.ExecutionClass)
	return b.String()
}

func writeIfChanged(path, content string) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil {
		if string(existing) == content {
			return false, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
