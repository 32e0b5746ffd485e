package forge

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"autonomy/pkg/state"
)

const maxVerifyPerCall = 5

// FailureCode is a machine-readable verification failure reason.
type FailureCode string

const (
	FailArtifactMissing    FailureCode = "artifact_missing"
	FailMissingSection     FailureCode = "missing_section"
	FailMissingConstraint  FailureCode = "missing_constraint"
	FailMissingTest        FailureCode = "missing_test"
	FailFrontmatterInvalid FailureCode = "frontmatter_invalid"
)

// Report is the per-candidate verification outcome.
type Report struct {
	CandidateID string
	Verified    bool
	Failures    []FailureCode
}

var requiredSections = []string{"## Purpose", "## Safety constraints", "## Verification checklist"}

// Verify checks up to maxVerifyPerCall planned candidates against their
// generated artifact: the YAML frontmatter must round-trip to the
// candidate's name and execution class, the three section headers must be
// present, and every declared constraint and test must appear literally.
// Candidates become verified on success, rejected on failure.
func Verify(candidates []state.SkillCandidate, workspaceDir string, nowMs int64) ([]state.SkillCandidate, []Report) {
	out := append([]state.SkillCandidate{}, candidates...)
	var reports []Report
	checked := 0
	for i := range out {
		if checked >= maxVerifyPerCall {
			break
		}
		c := &out[i]
		if c.Status != state.CandidatePlanned {
			continue
		}
		checked++

		report := Report{CandidateID: c.ID}
		path := ArtifactPath(workspaceDir, c.Name)
		content, err := os.ReadFile(path)
		if err != nil {
			report.Failures = append(report.Failures, FailArtifactMissing)
			c.Status = state.CandidateRejected
			c.UpdatedAt = nowMs
			reports = append(reports, report)
			continue
		}
		text := string(content)

		if fm, ok := parseFrontmatter(text); !ok || fm.Name != c.Name || fm.ExecutionClass != string(c.Safety.ExecutionClass) {
			report.Failures = append(report.Failures, FailFrontmatterInvalid)
		}

		for _, section := range requiredSections {
			if !strings.Contains(text, section) {
				report.Failures = append(report.Failures, FailMissingSection)
			}
		}
		for _, constraint := range c.Safety.Constraints {
			if !strings.Contains(text, constraint) {
				report.Failures = append(report.Failures, FailMissingConstraint)
			}
		}
		for _, test := range c.Tests {
			if !strings.Contains(text, test) {
				report.Failures = append(report.Failures, FailMissingTest)
			}
		}

		if len(report.Failures) == 0 {
			report.Verified = true
			c.Status = state.CandidateVerified
		} else {
			c.Status = state.CandidateRejected
		}
		c.UpdatedAt = nowMs
		reports = append(reports, report)
	}
	return out, reports
}

// parseFrontmatter extracts and decodes the YAML header written by
// renderArtifact. ok is false if the artifact has no well-formed
// "---\n...\n---\n" block at its start.
func parseFrontmatter(text string) (artifactFrontmatter, bool) {
	var fm artifactFrontmatter
	if !strings.HasPrefix(text, "---\n") {
		return fm, false
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return fm, false
	}
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return fm, false
	}
	return fm, true
}
