package orchestrator_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"autonomy/internal/orchestrator"
	"autonomy/internal/testkit"
	"autonomy/pkg/config"
	"autonomy/pkg/proto"
	"autonomy/pkg/state"
)

func newOrchestrator(t *testing.T, clock *time.Time) (*orchestrator.Orchestrator, string) {
	t.Helper()
	s := testkit.NewStore(t)
	cfg := config.Default()
	cfg.Metrics.Enabled = false
	o := orchestrator.New(s, cfg)
	o.Now = func() time.Time { return *clock }
	return o, t.TempDir()
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func runCycle(t *testing.T, o *orchestrator.Orchestrator, agentID, workspace string, overrides config.Overrides, status string) (*orchestrator.Prepared, *orchestrator.Skipped) {
	t.Helper()
	prepared, skipped, err := o.Prepare(context.Background(), orchestrator.PrepareParams{
		AgentID: agentID, WorkspaceDir: workspace, Overrides: overrides,
	})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if skipped != nil {
		return nil, skipped
	}
	if err := o.Finalize(orchestrator.FinalizeParams{
		AgentID: agentID, WorkspaceDir: workspace, State: prepared.State,
		Status: status, Summary: "cycle", Events: prepared.Events,
		Drops: orchestrator.FinalizeDrops{Duplicates: prepared.DroppedDuplicates, Invalid: prepared.DroppedInvalid, Overflow: prepared.DroppedOverflow},
		Remaining: prepared.RemainingEvents, LockToken: prepared.LockToken, CycleStartedAt: prepared.CycleStartedAt,
	}); err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	return prepared, nil
}

func TestPrepareSkipsWhenPaused(t *testing.T) {
	clock := testkit.FixedClock()
	o, ws := newOrchestrator(t, &clock)

	_, skipped := runCycle(t, o, "agent-paused", ws, config.Overrides{Paused: boolPtr(true)}, "ok")
	if skipped == nil {
		t.Fatal("expected cycle to be skipped while paused")
	}
	if !strings.Contains(skipped.Reason, "paused") {
		t.Errorf("Reason = %q, want to contain %q", skipped.Reason, "paused")
	}

	_, skipped2, err := o.Prepare(context.Background(), orchestrator.PrepareParams{AgentID: "agent-paused", WorkspaceDir: ws})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if skipped2 == nil {
		t.Error("expected second Prepare to also skip while paused")
	}
}

func TestBudgetExhaustionAutoPausesThenResumesNextDay(t *testing.T) {
	clock := testkit.FixedClock()
	o, ws := newOrchestrator(t, &clock)

	_, skipped := runCycle(t, o, "agent-budget", ws, config.Overrides{DailyCycleBudget: intPtr(1)}, "ok")
	if skipped != nil {
		t.Fatalf("expected first cycle to run, got skipped: %v", skipped)
	}

	_, skipped2, err := o.Prepare(context.Background(), orchestrator.PrepareParams{AgentID: "agent-budget", WorkspaceDir: ws})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if skipped2 == nil {
		t.Fatal("expected second cycle to be skipped once budget is exhausted")
	}
	if !skipped2.State.Paused {
		t.Error("expected state to be paused after budget exhaustion")
	}
	if skipped2.State.PauseReason != state.PauseBudget {
		t.Errorf("PauseReason = %s, want %s", skipped2.State.PauseReason, state.PauseBudget)
	}

	clock = clock.AddDate(0, 0, 1)
	prepared, skipped3, err := o.Prepare(context.Background(), orchestrator.PrepareParams{AgentID: "agent-budget", WorkspaceDir: ws})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if skipped3 != nil {
		t.Fatalf("expected cycle on next day to run, got skipped: %v", skipped3)
	}
	if prepared.State.Paused {
		t.Error("expected state to be unpaused on next day")
	}
}

func TestConsecutiveErrorsAutoPause(t *testing.T) {
	clock := testkit.FixedClock()
	o, ws := newOrchestrator(t, &clock)

	_, skipped := runCycle(t, o, "agent-errors", ws, config.Overrides{MaxConsecutiveErrors: intPtr(2)}, "error")
	if skipped != nil {
		t.Fatalf("expected first cycle to run, got skipped: %v", skipped)
	}
	clock = clock.Add(time.Minute)
	_, skipped2 := runCycle(t, o, "agent-errors", ws, config.Overrides{}, "error")
	if skipped2 != nil {
		t.Fatalf("expected second cycle to run, got skipped: %v", skipped2)
	}

	clock = clock.Add(time.Minute)
	_, skipped3, err := o.Prepare(context.Background(), orchestrator.PrepareParams{AgentID: "agent-errors", WorkspaceDir: ws})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if skipped3 == nil {
		t.Fatal("expected cycle to be skipped after consecutive errors")
	}
	if skipped3.State.PauseReason != state.PauseErrors {
		t.Errorf("PauseReason = %s, want %s", skipped3.State.PauseReason, state.PauseErrors)
	}
}

func TestErrorPauseAutoResumesAfterCooldown(t *testing.T) {
	clock := testkit.FixedClock()
	o, ws := newOrchestrator(t, &clock)

	runCycle(t, o, "agent-cooldown", ws, config.Overrides{MaxConsecutiveErrors: intPtr(1), ErrorPauseMinutes: intPtr(5)}, "error")

	clock = clock.Add(time.Minute)
	_, skipped, err := o.Prepare(context.Background(), orchestrator.PrepareParams{AgentID: "agent-cooldown", WorkspaceDir: ws})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if skipped == nil {
		t.Fatal("expected cycle to be skipped during cooldown")
	}

	clock = clock.Add(10 * time.Minute)
	prepared, skipped2, err := o.Prepare(context.Background(), orchestrator.PrepareParams{AgentID: "agent-cooldown", WorkspaceDir: ws})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if skipped2 != nil {
		t.Fatalf("expected cycle after cooldown to run, got skipped: %v", skipped2)
	}
	if prepared.State.Paused {
		t.Error("expected state to be unpaused after cooldown")
	}
}

func TestStaleTaskSignalOnlyFiresOncePerDay(t *testing.T) {
	clock := testkit.FixedClock()
	o, ws := newOrchestrator(t, &clock)
	s := o.Store

	defaults := state.Defaults{Mission: "m"}
	st, err := s.LoadState("agent-stale", defaults, clock)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	st.Safety.StaleTaskHours = 1
	st.Tasks = []state.Task{{ID: "t1", Title: "blocked task", Status: state.TaskBlocked, CreatedAt: clock.UnixMilli() - 10*3600_000, UpdatedAt: clock.UnixMilli() - 10*3600_000}}
	if err := s.SaveState("agent-stale", st); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	prepared, skipped := runCycle(t, o, "agent-stale", ws, config.Overrides{}, "ok")
	if skipped != nil {
		t.Fatalf("expected cycle to run, got skipped: %v", skipped)
	}
	found := false
	for _, ev := range prepared.Events {
		if ev.Type == "autonomy.task.stale.blocked" {
			found = true
		}
	}
	if !found {
		t.Error("expected a stale-task signal on first cycle")
	}

	clock = clock.Add(time.Hour)
	prepared2, skipped2 := runCycle(t, o, "agent-stale", ws, config.Overrides{}, "ok")
	if skipped2 != nil {
		t.Fatalf("expected second cycle to run, got skipped: %v", skipped2)
	}
	for _, ev := range prepared2.Events {
		if ev.Type == "autonomy.task.stale.blocked" {
			t.Error("stale signal should not repeat same day")
		}
	}
}

func TestPromotionGateDeniesWithoutVerifiedCandidate(t *testing.T) {
	clock := testkit.FixedClock()
	o, ws := newOrchestrator(t, &clock)
	s := o.Store

	st, err := s.LoadState("agent-promote", state.Defaults{Mission: "m"}, clock)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	st.Augmentation.Stage = state.StagePromote
	st.Augmentation.StageEnteredAt = clock.UnixMilli()
	st.RecentCycles = []state.CycleRecord{
		{Ts: clock.UnixMilli(), Status: "ok", DurationMs: 10},
		{Ts: clock.UnixMilli(), Status: "ok", DurationMs: 10},
		{Ts: clock.UnixMilli(), Status: "ok", DurationMs: 10},
	}
	if err := s.SaveState("agent-promote", st); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	prepared, skipped, err := o.Prepare(context.Background(), orchestrator.PrepareParams{AgentID: "agent-promote", WorkspaceDir: ws})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if skipped != nil {
		t.Fatalf("expected cycle to run, got skipped: %v", skipped)
	}
	if prepared.State.Augmentation.Stage != state.StagePromote {
		t.Errorf("stage = %s, want %s (must not advance past a denied gate)", prepared.State.Augmentation.Stage, state.StagePromote)
	}

	denied := false
	entries, err := s.ReadLedger("agent-promote", 0, 0)
	if err != nil {
		t.Fatalf("ReadLedger() error = %v", err)
	}
	for _, e := range entries {
		if e.EventType == "policy_denied" {
			if !strings.Contains(e.Summary, "no verified candidates") {
				t.Errorf("Summary = %q, want to contain %q", e.Summary, "no verified candidates")
			}
			denied = true
		}
	}
	if !denied {
		t.Error("expected a policy_denied ledger entry")
	}
}

func TestQueueDedupeAcrossDrain(t *testing.T) {
	clock := testkit.FixedClock()
	o, ws := newOrchestrator(t, &clock)
	s := o.Store

	st, err := s.LoadState("agent-dedupe", state.Defaults{Mission: "m"}, clock)
	if err != nil {
		t.Fatalf("LoadState() error = %v", err)
	}
	if err := s.SaveState("agent-dedupe", st); err != nil {
		t.Fatalf("SaveState() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := s.EnqueueEvent("agent-dedupe", testkit.NewEvent(proto.SourceManual, "task.created", "dup-1"), clock); err != nil {
			t.Fatalf("EnqueueEvent() error = %v", err)
		}
	}

	prepared, skipped, err := o.Prepare(context.Background(), orchestrator.PrepareParams{AgentID: "agent-dedupe", WorkspaceDir: ws})
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if skipped != nil {
		t.Fatalf("expected cycle to run, got skipped: %v", skipped)
	}
	if prepared.DroppedDuplicates != 2 {
		t.Errorf("DroppedDuplicates = %d, want 2", prepared.DroppedDuplicates)
	}
}
