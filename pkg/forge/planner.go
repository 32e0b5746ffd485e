// Package forge implements the Skill Forge: the planner, synthesizer, and
// verifier that move a skill candidate through candidate -> planned ->
// verified/rejected.
package forge

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"autonomy/pkg/proto"
	"autonomy/pkg/state"
)

const maxNewCandidatesPerCall = 5

var baseSafetyConstraints = []string{
	"runs only against the agent's own workspace",
	"no destructive filesystem or network actions without operator approval",
}

var categoryConstraints = map[state.GapCategory]string{
	state.CategorySafety:      "includes a policy-deny regression test",
	state.CategoryReliability: "includes a timeout/retry resilience test",
}

var baseTests = []string{
	"unit test covering the primary success path",
	"unit test covering the declared safety constraints",
	"verification script confirms declared tests are literally present",
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "candidate"
	}
	return s
}

// Plan generates up to maxNewCandidatesPerCall new candidates, one per open
// gap that does not already back a candidate, then merges with existing
// candidates sorted by priority desc, createdAt asc, id asc and truncated
// to state.MaxCandidates. Output is bytewise deterministic for a fixed gap
// snapshot.
func Plan(gaps []state.Gap, existing []state.SkillCandidate, nowMs int64) []state.SkillCandidate {
	backed := make(map[string]bool, len(existing))
	for _, c := range existing {
		backed[c.SourceGapID] = true
	}

	open := make([]state.Gap, 0, len(gaps))
	for _, g := range gaps {
		if g.Status == state.GapOpen && !backed[g.ID] {
			open = append(open, g)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		if open[i].Score != open[j].Score {
			return open[i].Score > open[j].Score
		}
		return open[i].Key < open[j].Key
	})
	if len(open) > maxNewCandidatesPerCall {
		open = open[:maxNewCandidatesPerCall]
	}

	merged := append([]state.SkillCandidate{}, existing...)
	for _, g := range open {
		c := planOne(g, nowMs)
		if len(c.Safety.Constraints) == 0 {
			continue // rejects candidates lacking explicit safety constraints
		}
		merged = append(merged, c)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Priority != merged[j].Priority {
			return merged[i].Priority > merged[j].Priority
		}
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt < merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > state.MaxCandidates {
		merged = merged[:state.MaxCandidates]
	}
	return merged
}

func planOne(g state.Gap, nowMs int64) state.SkillCandidate {
	titleOrKey := g.Title
	if titleOrKey == "" {
		titleOrKey = g.Key
	}
	if titleOrKey == "" {
		titleOrKey = g.ID
	}

	constraints := append([]string{}, baseSafetyConstraints...)
	if extra, ok := categoryConstraints[g.Category]; ok {
		constraints = append(constraints, extra)
	}

	priority := int(math.Max(1, math.Floor(float64(g.Score))))

	return state.SkillCandidate{
		ID:          proto.ShortHash(g.Key),
		SourceGapID: g.ID,
		Name:        fmt.Sprintf("autonomy-%s", slug(titleOrKey)),
		Intent:      fmt.Sprintf("Address gap: %s", titleOrKey),
		Status:      state.CandidateCandidate,
		Priority:    priority,
		CreatedAt:   nowMs,
		UpdatedAt:   nowMs,
		Safety: state.SafetyProfile{
			ExecutionClass: state.ClassReversibleWrite,
			Constraints:    constraints,
		},
		Tests: append([]string{}, baseTests...),
	}
}
