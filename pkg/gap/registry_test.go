package gap_test

import (
	"fmt"
	"testing"

	"autonomy/pkg/gap"
	"autonomy/pkg/signal"
	"autonomy/pkg/state"
)

func TestUpsertCreatesNewGap(t *testing.T) {
	signals := []signal.Signal{
		{DedupeKey: "k1", Title: "queue backlog", Category: state.CategoryReliability, Severity: 85, Confidence: 0.9, Ts: 1000, Source: "queue"},
	}
	gaps := gap.Upsert(nil, signals, 2000)
	if len(gaps) != 1 {
		t.Fatalf("len(gaps) = %d, want 1", len(gaps))
	}
	if gaps[0].Key != "k1" {
		t.Errorf("Key = %q, want %q", gaps[0].Key, "k1")
	}
	if gaps[0].Occurrences != 1 {
		t.Errorf("Occurrences = %d, want 1", gaps[0].Occurrences)
	}
	if gaps[0].Status != state.GapOpen {
		t.Errorf("Status = %s, want %s", gaps[0].Status, state.GapOpen)
	}
}

func TestUpsertBlendsExistingGap(t *testing.T) {
	existing := []state.Gap{
		{ID: "g1", Key: "k1", Severity: 50, Confidence: 0.5, Occurrences: 1, LastSeenAt: 500},
	}
	signals := []signal.Signal{
		{DedupeKey: "k1", Title: "queue backlog again", Category: state.CategoryReliability, Severity: 90, Confidence: 1.0, Ts: 1500, Source: "queue"},
	}
	gaps := gap.Upsert(existing, signals, 2000)
	if len(gaps) != 1 {
		t.Fatalf("len(gaps) = %d, want 1", len(gaps))
	}
	if gaps[0].Occurrences != 2 {
		t.Errorf("Occurrences = %d, want 2", gaps[0].Occurrences)
	}
	wantSeverity := 0.65*50 + 0.35*90
	if diff := gaps[0].Severity - wantSeverity; diff > 0.001 || diff < -0.001 {
		t.Errorf("Severity = %v, want %v", gaps[0].Severity, wantSeverity)
	}
	wantConfidence := 0.7*0.5 + 0.3*1.0
	if diff := gaps[0].Confidence - wantConfidence; diff > 0.001 || diff < -0.001 {
		t.Errorf("Confidence = %v, want %v", gaps[0].Confidence, wantConfidence)
	}
	if gaps[0].LastSeenAt != 1500 {
		t.Errorf("LastSeenAt = %d, want 1500", gaps[0].LastSeenAt)
	}
}

func TestUpsertSortsByScoreDescending(t *testing.T) {
	signals := []signal.Signal{
		{DedupeKey: "low", Title: "low prio", Category: state.CategoryQuality, Severity: 10, Confidence: 0.3, Ts: 1000},
		{DedupeKey: "high", Title: "high prio", Category: state.CategorySafety, Severity: 95, Confidence: 0.95, Ts: 1000},
	}
	gaps := gap.Upsert(nil, signals, 1000)
	if len(gaps) != 2 {
		t.Fatalf("len(gaps) = %d, want 2", len(gaps))
	}
	if gaps[0].Key != "high" {
		t.Errorf("gaps[0].Key = %q, want %q", gaps[0].Key, "high")
	}
	if gaps[0].Score < gaps[1].Score {
		t.Errorf("expected gaps sorted by descending score, got %v then %v", gaps[0].Score, gaps[1].Score)
	}
}

func TestUpsertTruncatesToMaxGaps(t *testing.T) {
	signals := make([]signal.Signal, 0, state.MaxGaps+20)
	for i := 0; i < state.MaxGaps+20; i++ {
		signals = append(signals, signal.Signal{DedupeKey: fmt.Sprintf("k-%d", i), Severity: float64(i % 100), Confidence: 0.5, Ts: int64(i)})
	}
	gaps := gap.Upsert(nil, signals, 10000)
	if len(gaps) > state.MaxGaps {
		t.Errorf("len(gaps) = %d, want <= %d", len(gaps), state.MaxGaps)
	}
}

func TestOpenFiltersByStatus(t *testing.T) {
	gaps := []state.Gap{
		{Key: "a", Status: state.GapOpen},
		{Key: "b", Status: state.GapAddressed},
	}
	open := gap.Open(gaps)
	if len(open) != 1 {
		t.Fatalf("len(open) = %d, want 1", len(open))
	}
	if open[0].Key != "a" {
		t.Errorf("open[0].Key = %q, want %q", open[0].Key, "a")
	}
}
