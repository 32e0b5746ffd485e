// Package testkit provides fixture builders for the autonomy engine's test
// suites: an isolated temp-dir store, a fixed clock, and AgentState/Event
// constructors, keeping every test deterministic (no wall-clock reads).
package testkit

import (
	"testing"
	"time"

	"autonomy/pkg/proto"
	"autonomy/pkg/state"
	"autonomy/pkg/store"
)

// FixedClock returns a stable time.Time for deterministic tests.
func FixedClock() time.Time {
	return time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
}

// NewStore returns a Store rooted at a fresh t.TempDir().
func NewStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(t.TempDir())
}

// NewAgentState returns a default AgentState for agentId at FixedClock.
func NewAgentState(agentId string) state.AgentState {
	now := FixedClock()
	return state.New(agentId, state.Defaults{Mission: "test mission"}, now.UnixMilli(), state.DayKey(now))
}

// NewEvent builds an Event with sensible test defaults, overridable via the
// returned value.
func NewEvent(source proto.EventSource, eventType, dedupeKey string) proto.Event {
	return proto.Event{
		ID:        proto.NewID(),
		Source:    source,
		Type:      eventType,
		Ts:        FixedClock().UnixMilli(),
		DedupeKey: dedupeKey,
	}
}

// NewGap builds an open Gap fixture with the given key/title/score inputs.
func NewGap(key, title string, severity, confidence float64) state.Gap {
	now := FixedClock().UnixMilli()
	return state.Gap{
		ID:          proto.ShortHash(key),
		Key:         key,
		Title:       title,
		Category:    state.CategoryCapability,
		Status:      state.GapOpen,
		Severity:    severity,
		Confidence:  confidence,
		Occurrences: 1,
		FirstSeenAt: now,
		LastSeenAt:  now,
	}
}

// NewCandidate builds a SkillCandidate fixture with the given status, linked
// to gapId.
func NewCandidate(gapId, name string, status state.CandidateStatus) state.SkillCandidate {
	now := FixedClock().UnixMilli()
	return state.SkillCandidate{
		ID:          proto.ShortHash(name),
		SourceGapID: gapId,
		Name:        name,
		Intent:      "Address gap: " + name,
		Status:      status,
		Priority:    10,
		CreatedAt:   now,
		UpdatedAt:   now,
		Safety: state.SafetyProfile{
			ExecutionClass: state.ClassReversibleWrite,
			Constraints:    []string{"runs only against the agent's own workspace"},
		},
		Tests: []string{"unit test covering the primary success path"},
	}
}
