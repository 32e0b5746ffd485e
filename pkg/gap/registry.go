// Package gap maintains the ranked capability-gap set derived from
// discovery signals.
package gap

import (
	"math"
	"sort"

	"autonomy/pkg/proto"
	"autonomy/pkg/signal"
	"autonomy/pkg/state"
)

// Upsert folds signals into gaps: existing gaps are blended and bumped,
// unmatched signals create new open gaps. The result is sorted by
// descending score, then descending lastSeenAt, then ascending key, and
// truncated to state.MaxGaps.
func Upsert(gaps []state.Gap, signals []signal.Signal, nowMs int64) []state.Gap {
	byKey := make(map[string]int, len(gaps))
	for i, g := range gaps {
		byKey[g.Key] = i
	}

	for _, sg := range signals {
		key := sg.DedupeKey
		if idx, ok := byKey[key]; ok {
			g := &gaps[idx]
			g.Title = sg.Title
			g.Category = sg.Category
			g.LastSource = sg.Source
			g.Occurrences++
			if sg.Ts > g.LastSeenAt {
				g.LastSeenAt = sg.Ts
			}
			g.Severity = 0.65*g.Severity + 0.35*sg.Severity
			g.Confidence = 0.7*g.Confidence + 0.3*sg.Confidence
			g.Evidence = appendEvidence(g.Evidence, sg.Title)
			g.Score = score(g.Severity, g.Confidence, g.LastSeenAt, g.Occurrences, nowMs)
			continue
		}
		g := state.Gap{
			ID:          proto.ShortHash(key),
			Key:         key,
			Title:       sg.Title,
			Category:    sg.Category,
			Status:      state.GapOpen,
			Severity:    sg.Severity,
			Confidence:  sg.Confidence,
			Occurrences: 1,
			FirstSeenAt: sg.Ts,
			LastSeenAt:  sg.Ts,
			LastSource:  sg.Source,
			Evidence:    []string{sg.Title},
		}
		g.Score = score(g.Severity, g.Confidence, g.LastSeenAt, g.Occurrences, nowMs)
		gaps = append(gaps, g)
		byKey[key] = len(gaps) - 1
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].Score != gaps[j].Score {
			return gaps[i].Score > gaps[j].Score
		}
		if gaps[i].LastSeenAt != gaps[j].LastSeenAt {
			return gaps[i].LastSeenAt > gaps[j].LastSeenAt
		}
		return gaps[i].Key < gaps[j].Key
	})
	if len(gaps) > state.MaxGaps {
		gaps = gaps[:state.MaxGaps]
	}
	return gaps
}

func appendEvidence(evidence []string, item string) []string {
	evidence = append(evidence, item)
	if len(evidence) > state.MaxGapEvidence {
		evidence = evidence[len(evidence)-state.MaxGapEvidence:]
	}
	return evidence
}

func score(severity, confidence float64, lastSeenAtMs int64, occurrences int, nowMs int64) int {
	freshnessHours := float64(nowMs-lastSeenAtMs) / 3_600_000
	recency := clip(24-freshnessHours, 0, 24)
	occBonus := math.Min(20, float64(occurrences))
	raw := 0.55*severity + 0.25*confidence*100 + 0.2*recency + 0.5*occBonus
	return int(math.Round(raw))
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Open returns the subset of gaps with status open.
func Open(gaps []state.Gap) []state.Gap {
	var out []state.Gap
	for _, g := range gaps {
		if g.Status == state.GapOpen {
			out = append(out, g)
		}
	}
	return out
}
