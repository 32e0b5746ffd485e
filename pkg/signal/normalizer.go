// Package signal classifies inbound events into discovery signals consumed
// by the gap registry.
package signal

import (
	"strings"

	"autonomy/pkg/proto"
	"autonomy/pkg/state"
)

// Signal is a classified discovery signal derived from one event.
type Signal struct {
	ID         string
	DedupeKey  string
	Title      string
	Category   state.GapCategory
	Severity   float64
	Confidence float64
	Ts         int64
	Source     string
}

type rule struct {
	match      func(t string) bool
	category   state.GapCategory
	severity   float64
	confidence float64
}

// classification table, first match wins.
var rules = []rule{
	{prefix("queue."), state.CategoryReliability, 85, 0.9},
	{prefix("task.stale."), state.CategoryCapability, 70, 0.85},
	{prefix("review."), state.CategoryQuality, 40, 0.6},
	{contains("security", "policy"), state.CategorySafety, 90, 0.8},
	{contains("timeout", "error", "failed"), state.CategoryReliability, 75, 0.8},
	{contains("latency"), state.CategoryLatency, 65, 0.65},
	{contains("cost", "budget"), state.CategoryCost, 55, 0.7},
}

func prefix(p string) func(string) bool {
	return func(t string) bool { return strings.HasPrefix(t, p) }
}

func contains(subs ...string) func(string) bool {
	return func(t string) bool {
		for _, s := range subs {
			if strings.Contains(t, s) {
				return true
			}
		}
		return false
	}
}

func classify(eventType string) (state.GapCategory, float64, float64) {
	t := strings.ToLower(eventType)
	for _, r := range rules {
		if r.match(t) {
			return r.category, r.severity, r.confidence
		}
	}
	return state.CategoryUnknown, 30, 0.4
}

// Normalize maps each event to at most one signal per dedupe key, using the
// fixed type-prefix classification table.
func Normalize(events []proto.Event) []Signal {
	seen := make(map[string]bool, len(events))
	out := make([]Signal, 0, len(events))
	for _, ev := range events {
		key := ev.EffectiveDedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true

		category, severity, confidence := classify(ev.Type)
		out = append(out, Signal{
			ID:         proto.ShortHash(key),
			DedupeKey:  key,
			Title:      titleFor(ev),
			Category:   category,
			Severity:   severity,
			Confidence: confidence,
			Ts:         ev.Ts,
			Source:     string(ev.Source),
		})
	}
	return out
}

func titleFor(ev proto.Event) string {
	if ev.Payload != nil {
		if t, ok := ev.Payload["title"].(string); ok && strings.TrimSpace(t) != "" {
			return t
		}
	}
	return strings.ReplaceAll(ev.Type, ".", " ")
}
