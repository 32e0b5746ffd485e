// Package orchestrator binds the store, signal normalizer, gap registry,
// phase machine, policy runtime, Skill Forge, canary evaluator, promotion
// gates, long-horizon eval, and ledger into one Prepare/Finalize cycle.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"autonomy/pkg/autometrics"
	"autonomy/pkg/canary"
	"autonomy/pkg/config"
	"autonomy/pkg/evalscore"
	"autonomy/pkg/forge"
	"autonomy/pkg/gap"
	"autonomy/pkg/gate"
	"autonomy/pkg/ledger"
	"autonomy/pkg/logx"
	"autonomy/pkg/phase"
	"autonomy/pkg/policy"
	"autonomy/pkg/proto"
	"autonomy/pkg/readindex"
	"autonomy/pkg/signal"
	"autonomy/pkg/state"
	"autonomy/pkg/store"
	"autonomy/pkg/tokencount"
)

var log = logx.NewLogger("orchestrator").WithDomain("orchestrator")

// SignalHook is the optional plugin callout invoked once per cycle. It must
// be deterministic under replay given identical inputs and ordering, and is
// bounded by the caller's own context.
type SignalHook func(ctx context.Context, agentId, workspaceDir string, stage state.Stage, nowMs int64, known []proto.Event) ([]proto.Event, error)

// Orchestrator binds every core component into one Prepare/Finalize cycle.
type Orchestrator struct {
	Store     *store.Store
	Metrics   autometrics.Recorder
	Estimator *tokencount.Estimator
	ReadIndex *readindex.Index
	Policy    policy.Config
	Gate      gate.Config
	Hook      SignalHook
	Now       func() time.Time
}

// New returns an Orchestrator wired from cfg, backed by s.
func New(s *store.Store, cfg config.Config) *Orchestrator {
	var metrics autometrics.Recorder = autometrics.Noop{}
	if cfg.Metrics.Enabled {
		metrics = autometrics.NewPrometheusRecorder()
	}
	var idx *readindex.Index
	if cfg.ReadIndex.Enabled {
		if opened, err := readindex.Open(cfg.ReadIndex.Path); err == nil {
			idx = opened
		} else {
			log.Warn("read index disabled: %v", err)
		}
	}
	return &Orchestrator{
		Store:     s,
		Metrics:   metrics,
		Estimator: tokencount.New(),
		ReadIndex: idx,
		Policy: policy.Config{
			DenyActions:                      cfg.Policy.DenyActions,
			AllowActions:                     cfg.Policy.AllowActions,
			DestructiveRequiresApproval:      cfg.Policy.DestructiveRequiresApproval,
			ReversibleWriteRequiresApproval:  cfg.Policy.ReversibleWriteRequiresApproval,
			ApprovalTTLMs:                    cfg.Policy.ApprovalTTLMs,
			PolicyVersion:                    cfg.Policy.PolicyVersion,
		},
		Gate: gate.Config{
			MinimumRecentCycles: cfg.Gate.MinimumRecentCycles,
			MaximumErrorRate:    cfg.Gate.MaximumErrorRate,
			MinimumEvalScore:    cfg.Gate.MinimumEvalScore,
		},
		Now: time.Now,
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// PrepareParams is the input to Prepare.
type PrepareParams struct {
	AgentID      string
	WorkspaceDir string
	Overrides    config.Overrides
}

// Prepared is the successful outcome of Prepare.
type Prepared struct {
	State             state.AgentState
	Events            []proto.Event
	DroppedDuplicates int
	DroppedInvalid    int
	DroppedOverflow   int
	RemainingEvents   int
	CycleStartedAt    int64
	LockToken         string
}

// Skipped is returned when Prepare declines to run a cycle.
type Skipped struct {
	Reason string
	State  state.AgentState
}

// Prepare runs steps 1-13 of the autonomy cycle: load, auto-resume, budget
// check, acquire the run-lock, drain the queue, advance the Skill Forge and
// canary evaluator, resolve and gate the next stage, and persist.
func (o *Orchestrator) Prepare(ctx context.Context, p PrepareParams) (*Prepared, *Skipped, error) {
	now := o.now()
	nowMs := now.UnixMilli()
	dayKey := state.DayKey(now)

	defaults := state.Defaults{
		GoalsFile: "AUTONOMY_GOALS.md",
		TasksFile: "AUTONOMY_TASKS.md",
		LogFile:   "AUTONOMY_LOG.md",
	}
	if p.Overrides.Mission != nil {
		defaults.Mission = *p.Overrides.Mission
	}

	st, err := o.Store.LoadState(p.AgentID, defaults, now)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: load state: %w", err)
	}
	applyOverrides(&st, p.Overrides, nowMs)
	state.Normalize(&st, nowMs, dayKey)

	// Auto-resume rules.
	resumeEvent := ""
	if st.Paused && st.PauseReason == state.PauseBudget {
		dayRolled := st.Budget.DayKey == dayKey && st.Budget.CyclesUsed == 0 && st.Budget.TokensUsed == 0
		if st.Safety.AutoResumeOnNewDayBudgetPause && dayRolled {
			state.Resume(&st)
			resumeEvent = "budget-window-rollover"
		}
	}
	if st.Paused && st.PauseReason == state.PauseErrors {
		elapsedMin := float64(nowMs-st.PausedAt) / 60000
		if elapsedMin >= float64(st.Safety.ErrorPauseMinutes) {
			state.Resume(&st)
			resumeEvent = "error-cooldown-elapsed"
		}
	}
	if st.Paused {
		if err := o.Store.SaveState(p.AgentID, st); err != nil {
			return nil, nil, fmt.Errorf("orchestrator: save paused state: %w", err)
		}
		return nil, &Skipped{Reason: fmt.Sprintf("autonomy paused (%s)", st.PauseReason), State: st}, nil
	}

	if budgetExhausted(&st) {
		if st.Safety.AutoPauseOnBudgetExhausted {
			state.Pause(&st, state.PauseBudget, nowMs)
		}
		if err := o.Store.SaveState(p.AgentID, st); err != nil {
			return nil, nil, fmt.Errorf("orchestrator: save budget-exhausted state: %w", err)
		}
		return nil, &Skipped{Reason: "autonomy daily budget exhausted", State: st}, nil
	}

	lockToken, err := o.Store.AcquireLock(p.AgentID, now)
	if err != nil {
		return nil, &Skipped{Reason: "autonomy run already in progress", State: st}, nil
	}
	succeeded := false
	defer func() {
		if !succeeded {
			o.Store.ReleaseLock(p.AgentID, lockToken)
		}
	}()

	if err := ensureWorkspaceFiles(o.Store, p.WorkspaceDir, st); err != nil {
		return nil, nil, fmt.Errorf("orchestrator: ensure workspace files: %w", err)
	}

	drain, err := o.Store.DrainEvents(p.AgentID, &st, st.MaxActionsPerRun, now)
	if err != nil {
		return nil, nil, fmt.Errorf("orchestrator: drain events: %w", err)
	}
	events := drain.Events
	events = append(events, syntheticEvents(&st, drain, now, dayKey)...)
	if resumeEvent != "" {
		events = append(events, proto.Event{ID: proto.NewID(), Source: proto.SourceManual, Type: "autonomy.resume", Ts: nowMs, Payload: map[string]any{"reason": resumeEvent}})
	}

	if o.Hook != nil {
		extra, err := o.Hook(ctx, p.AgentID, p.WorkspaceDir, st.Augmentation.Stage, nowMs, events)
		if err != nil {
			log.Warn("agent %s: signal hook failed: %v", p.AgentID, err)
		} else {
			events = append(events, extra...)
		}
	}

	for _, ev := range events {
		st.RecentEvents = append(st.RecentEvents, ev.Type)
	}
	if len(st.RecentEvents) > state.MaxRecentEvents {
		st.RecentEvents = st.RecentEvents[len(st.RecentEvents)-state.MaxRecentEvents:]
	}

	lg := ledger.New(o.Store, p.AgentID).WithMirror(o.ReadIndex)

	signals := signal.Normalize(events)
	st.Augmentation.Gaps = gap.Upsert(st.Augmentation.Gaps, signals, nowMs)

	o.runForge(&st, p.AgentID, p.WorkspaceDir, nowMs, lg, now)

	applied, action := policy.ConsumeApprovalGrant(&st, events, o.Policy, nowMs)
	if applied {
		if _, err := o.Store.EnqueueEvent(p.AgentID, proto.Event{Source: proto.SourceManual, Type: "autonomy.approval.applied", Payload: map[string]any{"action": action}}, now); err != nil {
			log.Warn("agent %s: enqueue approval.applied failed: %v", p.AgentID, err)
		}
	}

	nextStage := phase.ResolveNextStage(st.Augmentation.Stage, phase.Inputs{
		HasOpenGap:            len(gap.Open(st.Augmentation.Gaps)) > 0,
		HasCandidateOrPlanned: hasStatus(st.Augmentation.Candidates, state.CandidateCandidate, state.CandidatePlanned),
		HasVerified:           hasStatus(st.Augmentation.Candidates, state.CandidateVerified),
	})

	if st.Augmentation.Stage == state.StagePromote && nextStage == state.StageObserve {
		result := gate.Check(gate.Inputs{
			VerifiedCandidateCount: countStatus(st.Augmentation.Candidates, state.CandidateVerified),
			RecentCycleCount:       len(st.RecentCycles),
			ErrorRate:              errorRate(st.RecentCycles),
			CanaryStatus:           lastCanaryStatus(&st),
			EvalScore:              derefOr(st.Augmentation.LastEvalScore, 0),
		}, o.Gate)
		if !result.Passed {
			o.denyAndFreeze(&st, p.AgentID, lg, now, result.Reason)
			o.Metrics.ObservePolicyDenial(p.AgentID, string(st.Augmentation.Stage), result.Reason)
			nextStage = st.Augmentation.Stage
		}
	} else if nextStage != st.Augmentation.Stage {
		class := phase.ExecutionClassForStage(nextStage)
		approved := policy.IsApproved(&st, string(nextStage), nowMs)
		decision := policy.Evaluate(fmt.Sprintf("autonomy.stage.%s", nextStage), class, o.Policy, approved)
		if !decision.Allowed {
			o.denyAndFreeze(&st, p.AgentID, lg, now, decision.Reason)
			o.Metrics.ObservePolicyDenial(p.AgentID, string(st.Augmentation.Stage), decision.Reason)
			nextStage = st.Augmentation.Stage
		}
	}

	if nextStage != st.Augmentation.Stage {
		from := st.Augmentation.Stage
		durationMs := nowMs - st.Augmentation.StageEnteredAt
		phase.TransitionStage(&st.Augmentation, nextStage, "resolved by cycle", nowMs)
		o.Metrics.ObserveStageTransition(p.AgentID, string(from), string(nextStage))
		if _, err := lg.Append(ledger.PhaseExitEntry(from, "orchestrator", fmt.Sprintf("exited %s after %dms", from, durationMs)), now); err != nil {
			log.Warn("agent %s: ledger phase_exit failed: %v", p.AgentID, err)
		}
		if _, err := lg.Append(ledger.PhaseEnterEntry(nextStage, "orchestrator", fmt.Sprintf("entered %s", nextStage)), now); err != nil {
			log.Warn("agent %s: ledger phase_enter failed: %v", p.AgentID, err)
		}
		if _, err := o.Store.EnqueueEvent(p.AgentID, proto.Event{Source: proto.SourceManual, Type: "autonomy.phase.exit", Payload: map[string]any{"stage": string(from)}}, now); err != nil {
			log.Warn("agent %s: enqueue phase.exit failed: %v", p.AgentID, err)
		}
		if _, err := o.Store.EnqueueEvent(p.AgentID, proto.Event{Source: proto.SourceManual, Type: "autonomy.phase.enter", Payload: map[string]any{"stage": string(nextStage)}}, now); err != nil {
			log.Warn("agent %s: enqueue phase.enter failed: %v", p.AgentID, err)
		}
		if _, err := o.Store.EnqueueEvent(p.AgentID, proto.Event{Source: proto.SourceManual, Type: "autonomy.diagnostic.stage_transition", Payload: map[string]any{
			"lane": "autonomy", "durationMs": durationMs, "from": string(from), "to": string(nextStage),
		}}, now); err != nil {
			log.Warn("agent %s: enqueue stage transition diagnostic failed: %v", p.AgentID, err)
		}
	}

	if err := o.Store.SaveState(p.AgentID, st); err != nil {
		return nil, nil, fmt.Errorf("orchestrator: save state: %w", err)
	}

	succeeded = true
	return &Prepared{
		State:             st,
		Events:            events,
		DroppedDuplicates: drain.DroppedDuplicates,
		DroppedInvalid:    drain.DroppedInvalid,
		DroppedOverflow:   drain.DroppedOverflow,
		RemainingEvents:   drain.Remaining,
		CycleStartedAt:    nowMs,
		LockToken:         lockToken,
	}, nil, nil
}

func (o *Orchestrator) runForge(st *state.AgentState, agentId string, workspaceDir string, nowMs int64, lg *ledger.Ledger, now time.Time) {
	switch st.Augmentation.Stage {
	case state.StageDesign:
		st.Augmentation.Candidates = forge.Plan(st.Augmentation.Gaps, st.Augmentation.Candidates, nowMs)
	case state.StageSynthesize:
		if out, err := forge.Synthesize(st.Augmentation.Candidates, workspaceDir, nowMs); err == nil {
			st.Augmentation.Candidates = out
		} else {
			log.Warn("synthesize failed: %v", err)
		}
	case state.StageVerify:
		out, _ := forge.Verify(st.Augmentation.Candidates, workspaceDir, nowMs)
		st.Augmentation.Candidates = out
	case state.StageCanary:
		metrics := canary.DeriveFromCycles(st.RecentCycles, o.Gate.MaximumErrorRate, 50)
		result := canary.Evaluate(metrics)
		if result.Status == canary.StatusRegressed {
			st.Augmentation.Candidates = canary.ApplyRegression(st.Augmentation.Candidates, nowMs)
			if _, err := lg.Append(ledger.RollbackEntry(result.Reason), now); err != nil {
				log.Warn("ledger rollback append failed: %v", err)
			}
			o.Metrics.ObserveRollback(agentId)
		} else {
			if _, err := lg.Append(ledger.PromotionEntry(result.Reason), now); err != nil {
				log.Warn("ledger promotion append failed: %v", err)
			}
			o.Metrics.ObservePromotion(agentId)
		}
	case state.StagePromote:
		score := computeEvalScore(st)
		st.Augmentation.LastEvalScore = &score
		st.Augmentation.LastEvalAt = nowMs
	}
}

func (o *Orchestrator) denyAndFreeze(st *state.AgentState, agentId string, lg *ledger.Ledger, now time.Time, reason string) {
	if _, err := o.Store.EnqueueEvent(agentId, proto.Event{Source: proto.SourceManual, Type: "autonomy.augmentation.policy.denied", Payload: map[string]any{"reason": reason}}, now); err != nil {
		log.Warn("agent %s: enqueue policy denial failed: %v", agentId, err)
	}
	if _, err := lg.Append(ledger.PolicyDeniedEntry(st.Augmentation.Stage, reason), now); err != nil {
		log.Warn("agent %s: ledger policy_denied failed: %v", agentId, err)
	}
}

// FinalizeParams is the input to Finalize.
type FinalizeParams struct {
	AgentID      string
	WorkspaceDir string
	State        state.AgentState
	Status       string // ok | error | skipped
	Summary      string
	Err          string
	Events       []proto.Event
	Drops        FinalizeDrops
	Remaining    int
	UsageTokens  *int
	LockToken    string
	CycleStartedAt int64
}

// FinalizeDrops mirrors the drop counts returned by Prepare, passed back in.
type FinalizeDrops struct {
	Duplicates int
	Invalid    int
	Overflow   int
}

// Finalize records the cycle outcome, updates budgets and metrics, may
// auto-pause on consecutive errors, appends the workspace log, saves state,
// and always releases the run-lock.
func (o *Orchestrator) Finalize(p FinalizeParams) error {
	defer o.Store.ReleaseLock(p.AgentID, p.LockToken)

	now := o.now()
	nowMs := now.UnixMilli()
	st := p.State

	durationMs := nowMs - p.CycleStartedAt
	st.RecentCycles = append(st.RecentCycles, state.CycleRecord{Ts: nowMs, Status: p.Status, DurationMs: durationMs})
	if len(st.RecentCycles) > state.MaxRecentCycles {
		st.RecentCycles = st.RecentCycles[len(st.RecentCycles)-state.MaxRecentCycles:]
	}

	st.Metrics.Cycles++
	switch p.Status {
	case "ok":
		st.Metrics.OK++
		st.Metrics.ConsecutiveErrors = 0
	case "error":
		st.Metrics.Error++
		st.Metrics.ConsecutiveErrors++
		st.Metrics.LastError = p.Err
	case "skipped":
		st.Metrics.Skipped++
	}
	st.Metrics.LastCycleAt = nowMs

	if p.Status != "skipped" {
		tokens := o.Estimator.EstimateOrUse(p.UsageTokens, p.Summary)
		st.Budget.TokensUsed += tokens
		st.Budget.CyclesUsed++
	}

	if st.Metrics.ConsecutiveErrors >= st.Safety.MaxConsecutiveErrors && !st.Paused {
		state.Pause(&st, state.PauseErrors, nowMs)
	}

	o.Metrics.ObserveCycle(p.AgentID, p.Status, time.Duration(durationMs)*time.Millisecond)
	o.Metrics.ObserveBudget(p.AgentID, st.Budget.TokensUsed, st.Budget.CyclesUsed)
	if o.ReadIndex != nil {
		o.ReadIndex.MirrorCycle(p.AgentID, nowMs, p.Status, durationMs)
	}

	digest := make([]EventLite, 0, len(p.Events))
	for _, ev := range p.Events {
		digest = append(digest, EventLite{Type: ev.Type, Source: string(ev.Source)})
	}
	block := renderLogBlock(now, p.Status, p.Summary, p.Err, len(p.Events),
		drainCounts{duplicates: p.Drops.Duplicates, invalid: p.Drops.Invalid, overflow: p.Drops.Overflow},
		p.Remaining, st.Budget.TokensUsed, st.Budget.CyclesUsed, digestEvents(digest))
	logPath := store.WorkspacePath(p.WorkspaceDir, st.LogFile)
	if err := o.Store.AppendWorkspaceLog(logPath, block); err != nil {
		log.Warn("agent %s: append workspace log failed: %v", p.AgentID, err)
	}

	return o.Store.SaveState(p.AgentID, st)
}

func applyOverrides(st *state.AgentState, o config.Overrides, nowMs int64) {
	if o.Mission != nil {
		st.Mission = *o.Mission
	}
	if o.GoalsFile != nil {
		st.GoalsFile = *o.GoalsFile
	}
	if o.TasksFile != nil {
		st.TasksFile = *o.TasksFile
	}
	if o.LogFile != nil {
		st.LogFile = *o.LogFile
	}
	if o.MaxActionsPerRun != nil {
		st.MaxActionsPerRun = *o.MaxActionsPerRun
	}
	if o.DedupeWindowMinutes != nil {
		st.DedupeWindowMs = *o.DedupeWindowMinutes * 60_000
	}
	if o.MaxQueuedEvents != nil {
		st.MaxQueuedEvents = *o.MaxQueuedEvents
	}
	if o.DailyTokenBudget != nil {
		st.Safety.DailyTokenBudget = o.DailyTokenBudget
	}
	if o.DailyCycleBudget != nil {
		st.Safety.DailyCycleBudget = o.DailyCycleBudget
	}
	if o.MaxConsecutiveErrors != nil {
		st.Safety.MaxConsecutiveErrors = *o.MaxConsecutiveErrors
	}
	if o.AutoPauseOnBudgetExhausted != nil {
		st.Safety.AutoPauseOnBudgetExhausted = *o.AutoPauseOnBudgetExhausted
	}
	if o.AutoResumeOnNewDayBudgetPause != nil {
		st.Safety.AutoResumeOnNewDayBudgetPause = *o.AutoResumeOnNewDayBudgetPause
	}
	if o.ErrorPauseMinutes != nil {
		st.Safety.ErrorPauseMinutes = *o.ErrorPauseMinutes
	}
	if o.StaleTaskHours != nil {
		st.Safety.StaleTaskHours = *o.StaleTaskHours
	}
	if o.EmitDailyReviewEvents != nil {
		st.Safety.EmitDailyReviewEvents = *o.EmitDailyReviewEvents
	}
	if o.EmitWeeklyReviewEvents != nil {
		st.Safety.EmitWeeklyReviewEvents = *o.EmitWeeklyReviewEvents
	}
	if o.Paused != nil {
		if *o.Paused {
			state.Pause(st, state.PauseManual, nowMs)
		} else {
			state.Resume(st)
		}
	}
}

func budgetExhausted(st *state.AgentState) bool {
	if st.Safety.DailyCycleBudget != nil && st.Budget.CyclesUsed >= *st.Safety.DailyCycleBudget {
		return true
	}
	if st.Safety.DailyTokenBudget != nil && st.Budget.TokensUsed >= *st.Safety.DailyTokenBudget {
		return true
	}
	return false
}

func ensureWorkspaceFiles(s *store.Store, workspaceDir string, st state.AgentState) error {
	if err := store.EnsureWorkspaceFile(store.WorkspacePath(workspaceDir, st.GoalsFile), goalsTemplate); err != nil {
		return err
	}
	if err := store.EnsureWorkspaceFile(store.WorkspacePath(workspaceDir, st.TasksFile), tasksTemplate); err != nil {
		return err
	}
	return store.EnsureWorkspaceFile(store.WorkspacePath(workspaceDir, st.LogFile), logTemplate)
}

func syntheticEvents(st *state.AgentState, drain store.DrainResult, now time.Time, dayKey string) []proto.Event {
	nowMs := now.UnixMilli()
	var out []proto.Event
	out = append(out, proto.Event{ID: proto.NewID(), Source: proto.SourceCron, Type: "cron.tick", Ts: nowMs})

	if drain.DroppedOverflow > 0 {
		out = append(out, proto.Event{ID: proto.NewID(), Source: proto.SourceCron, Type: "autonomy.queue.overflow", Ts: nowMs, Payload: map[string]any{"count": drain.DroppedOverflow}})
	}
	if drain.DroppedInvalid > 0 {
		out = append(out, proto.Event{ID: proto.NewID(), Source: proto.SourceCron, Type: "autonomy.queue.invalid", Ts: nowMs, Payload: map[string]any{"count": drain.DroppedInvalid}})
	}

	if st.Safety.EmitDailyReviewEvents && st.Review.LastDailyKey != dayKey {
		out = append(out, proto.Event{ID: proto.NewID(), Source: proto.SourceCron, Type: "autonomy.review.daily", Ts: nowMs})
		st.Review.LastDailyKey = dayKey
	}
	weekKey := state.WeekKey(now)
	if st.Safety.EmitWeeklyReviewEvents && st.Review.LastWeeklyKey != weekKey {
		out = append(out, proto.Event{ID: proto.NewID(), Source: proto.SourceCron, Type: "autonomy.review.weekly", Ts: nowMs})
		st.Review.LastWeeklyKey = weekKey
	}

	staleThresholdMs := int64(st.Safety.StaleTaskHours) * 3_600_000
	for _, task := range st.Tasks {
		if task.Status != state.TaskBlocked && task.Status != state.TaskInProgress {
			continue
		}
		if nowMs-task.UpdatedAt < staleThresholdMs {
			continue
		}
		if st.TaskSignals[task.ID] == dayKey {
			continue
		}
		out = append(out, proto.Event{ID: proto.NewID(), Source: proto.SourceCron, Type: staleTaskEventType(task.Status), Ts: nowMs, Payload: map[string]any{"taskId": task.ID}})
		st.TaskSignals[task.ID] = dayKey
	}
	return out
}

func hasStatus(candidates []state.SkillCandidate, statuses ...state.CandidateStatus) bool {
	want := make(map[state.CandidateStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	for _, c := range candidates {
		if want[c.Status] {
			return true
		}
	}
	return false
}

func countStatus(candidates []state.SkillCandidate, status state.CandidateStatus) int {
	n := 0
	for _, c := range candidates {
		if c.Status == status {
			n++
		}
	}
	return n
}

func errorRate(cycles []state.CycleRecord) float64 {
	if len(cycles) == 0 {
		return 0
	}
	errored := 0
	for _, c := range cycles {
		if c.Status == "error" {
			errored++
		}
	}
	return float64(errored) / float64(len(cycles))
}

func lastCanaryStatus(st *state.AgentState) canary.Status {
	metrics := canary.DeriveFromCycles(st.RecentCycles, 1, 50)
	return canary.Evaluate(metrics).Status
}

func derefOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

func computeEvalScore(st *state.AgentState) float64 {
	return evalscore.Score(evalscore.DefaultScenarios(), evalscore.Inputs{
		VerifiedCandidates: countStatus(st.Augmentation.Candidates, state.CandidateVerified),
		RecentErrorRate:    errorRate(st.RecentCycles),
		BlockedTasks:       countBlockedTasks(st.Tasks),
	})
}

func countBlockedTasks(tasks []state.Task) int {
	n := 0
	for _, t := range tasks {
		if t.Status == state.TaskBlocked {
			n++
		}
	}
	return n
}
