package state

// Defaults carries the operator-supplied fields used to seed a brand new
// AgentState on first load. Every field is optional; omitted fields fall
// back to the fixed defaults below.
type Defaults struct {
	Mission          string
	GoalsFile        string
	TasksFile        string
	LogFile          string
	MaxActionsPerRun *int
	DedupeWindowMs   *int
	MaxQueuedEvents  *int
	Safety           *SafetyPolicy
}

const (
	defaultMaxActionsPerRun = 5
	defaultDedupeWindowMs   = 15 * 60 * 1000
	defaultMaxQueuedEvents  = 100

	minMaxActionsPerRun = 1
	maxMaxActionsPerRun = 20
	minDedupeWindowMs   = 60_000
	maxDedupeWindowMs   = 86_400_000
	minMaxQueuedEvents  = 1
	maxMaxQueuedEvents  = 500

	minConsecutiveErrors = 1
	maxConsecutiveErrors = 100
	defaultErrorPauseMin = 30
	minErrorPauseMin     = 1
	maxErrorPauseMin     = 1440
	defaultStaleTaskHrs  = 24
	minStaleTaskHrs      = 1
	maxStaleTaskHrs      = 720
)

// DedupePruneMultiplier is the tunable constant governing how far past
// dedupeWindowMs an entry survives in the dedupe map before being pruned.
// The source multiplier is undocumented; treated here as a fixed constant
// per the open question in the design notes.
const DedupePruneMultiplier = 3

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func defaultSafety() SafetyPolicy {
	return SafetyPolicy{
		MaxConsecutiveErrors:          10,
		AutoPauseOnBudgetExhausted:    true,
		AutoResumeOnNewDayBudgetPause: true,
		ErrorPauseMinutes:             defaultErrorPauseMin,
		StaleTaskHours:                defaultStaleTaskHrs,
		EmitDailyReviewEvents:         true,
		EmitWeeklyReviewEvents:        true,
	}
}

// New builds a fully-populated, invariant-satisfying AgentState for agentId
// from d, the shape returned when the store has no prior document on disk.
func New(agentId string, d Defaults, nowMs int64, dayKey string) AgentState {
	s := AgentState{
		Version: 1,
		AgentID: agentId,
		Mission: d.Mission,

		GoalsFile: firstNonEmpty(d.GoalsFile, "AUTONOMY_GOALS.md"),
		TasksFile: firstNonEmpty(d.TasksFile, "AUTONOMY_TASKS.md"),
		LogFile:   firstNonEmpty(d.LogFile, "AUTONOMY_LOG.md"),

		MaxActionsPerRun: defaultMaxActionsPerRun,
		DedupeWindowMs:   defaultDedupeWindowMs,
		MaxQueuedEvents:  defaultMaxQueuedEvents,

		Safety: defaultSafety(),
		Budget: Budget{DayKey: dayKey},
		Review: Review{},

		Augmentation: Augmentation{
			Stage:          StageDiscover,
			StageEnteredAt: nowMs,
		},

		Approvals:   map[string]Approval{},
		TaskSignals: map[string]string{},
		Dedupe:      map[string]int64{},

		Goals:        []Goal{},
		Tasks:        []Task{},
		RecentEvents: []string{},
		RecentCycles: []CycleRecord{},
	}
	if d.MaxActionsPerRun != nil {
		s.MaxActionsPerRun = clampInt(*d.MaxActionsPerRun, minMaxActionsPerRun, maxMaxActionsPerRun)
	}
	if d.DedupeWindowMs != nil {
		s.DedupeWindowMs = clampInt(*d.DedupeWindowMs, minDedupeWindowMs, maxDedupeWindowMs)
	}
	if d.MaxQueuedEvents != nil {
		s.MaxQueuedEvents = clampInt(*d.MaxQueuedEvents, minMaxQueuedEvents, maxMaxQueuedEvents)
	}
	if d.Safety != nil {
		s.Safety = *d.Safety
	}
	Normalize(&s, nowMs, dayKey)
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Normalize coerces a loaded-or-constructed AgentState into an
// invariant-satisfying shape: clamps tunables, fills nil maps/slices,
// truncates bounded collections to their caps, refreshes the budget window
// for dayKey, and clears pause metadata when paused is false.
func Normalize(s *AgentState, nowMs int64, dayKey string) {
	if s.Version == 0 {
		s.Version = 1
	}
	s.MaxActionsPerRun = clampInt(orDefault(s.MaxActionsPerRun, defaultMaxActionsPerRun), minMaxActionsPerRun, maxMaxActionsPerRun)
	s.DedupeWindowMs = clampInt(orDefault(s.DedupeWindowMs, defaultDedupeWindowMs), minDedupeWindowMs, maxDedupeWindowMs)
	s.MaxQueuedEvents = clampInt(orDefault(s.MaxQueuedEvents, defaultMaxQueuedEvents), minMaxQueuedEvents, maxMaxQueuedEvents)

	s.Safety.MaxConsecutiveErrors = clampInt(orDefault(s.Safety.MaxConsecutiveErrors, 10), minConsecutiveErrors, maxConsecutiveErrors)
	s.Safety.ErrorPauseMinutes = clampInt(orDefault(s.Safety.ErrorPauseMinutes, defaultErrorPauseMin), minErrorPauseMin, maxErrorPauseMin)
	s.Safety.StaleTaskHours = clampInt(orDefault(s.Safety.StaleTaskHours, defaultStaleTaskHrs), minStaleTaskHrs, maxStaleTaskHrs)

	if s.GoalsFile == "" {
		s.GoalsFile = "AUTONOMY_GOALS.md"
	}
	if s.TasksFile == "" {
		s.TasksFile = "AUTONOMY_TASKS.md"
	}
	if s.LogFile == "" {
		s.LogFile = "AUTONOMY_LOG.md"
	}

	if s.Approvals == nil {
		s.Approvals = map[string]Approval{}
	}
	if s.TaskSignals == nil {
		s.TaskSignals = map[string]string{}
	}
	if s.Dedupe == nil {
		s.Dedupe = map[string]int64{}
	}
	if s.Goals == nil {
		s.Goals = []Goal{}
	}
	if s.Tasks == nil {
		s.Tasks = []Task{}
	}
	if s.RecentEvents == nil {
		s.RecentEvents = []string{}
	}
	if s.RecentCycles == nil {
		s.RecentCycles = []CycleRecord{}
	}
	if s.Augmentation.Gaps == nil {
		s.Augmentation.Gaps = []Gap{}
	}
	if s.Augmentation.Candidates == nil {
		s.Augmentation.Candidates = []SkillCandidate{}
	}
	if s.Augmentation.ActiveExperiments == nil {
		s.Augmentation.ActiveExperiments = []string{}
	}
	if s.Augmentation.Transitions == nil {
		s.Augmentation.Transitions = []Transition{}
	}
	if s.Augmentation.Stage == "" {
		s.Augmentation.Stage = StageDiscover
	}

	truncateCaps(s)

	pruneWindow := int64(s.DedupeWindowMs) * DedupePruneMultiplier
	for k, ts := range s.Dedupe {
		if nowMs-ts > pruneWindow {
			delete(s.Dedupe, k)
		}
	}
	if len(s.Dedupe) > MaxDedupeEntries {
		evictOldest(s.Dedupe, len(s.Dedupe)-MaxDedupeEntries)
	}

	if s.Budget.DayKey != dayKey {
		s.Budget.DayKey = dayKey
		s.Budget.CyclesUsed = 0
		s.Budget.TokensUsed = 0
	}

	if !s.Paused {
		s.PauseReason = PauseNone
		s.PausedAt = 0
	}
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func truncateCaps(s *AgentState) {
	if len(s.Augmentation.Gaps) > MaxGaps {
		s.Augmentation.Gaps = s.Augmentation.Gaps[:MaxGaps]
	}
	if len(s.Augmentation.Candidates) > MaxCandidates {
		s.Augmentation.Candidates = s.Augmentation.Candidates[:MaxCandidates]
	}
	if len(s.Augmentation.ActiveExperiments) > MaxActiveExperiments {
		s.Augmentation.ActiveExperiments = s.Augmentation.ActiveExperiments[len(s.Augmentation.ActiveExperiments)-MaxActiveExperiments:]
	}
	if len(s.Augmentation.Transitions) > MaxTransitions {
		s.Augmentation.Transitions = s.Augmentation.Transitions[len(s.Augmentation.Transitions)-MaxTransitions:]
	}
	if len(s.Goals) > MaxGoals {
		s.Goals = s.Goals[len(s.Goals)-MaxGoals:]
	}
	if len(s.Tasks) > MaxTasks {
		s.Tasks = s.Tasks[len(s.Tasks)-MaxTasks:]
	}
	if len(s.RecentEvents) > MaxRecentEvents {
		s.RecentEvents = s.RecentEvents[len(s.RecentEvents)-MaxRecentEvents:]
	}
	if len(s.RecentCycles) > MaxRecentCycles {
		s.RecentCycles = s.RecentCycles[len(s.RecentCycles)-MaxRecentCycles:]
	}
}

// evictOldest removes the n entries with the smallest timestamp from m.
func evictOldest(m map[string]int64, n int) {
	for i := 0; i < n; i++ {
		var oldestKey string
		var oldestTs int64
		first := true
		for k, ts := range m {
			if first || ts < oldestTs {
				oldestKey, oldestTs, first = k, ts, false
			}
		}
		if first {
			return
		}
		delete(m, oldestKey)
	}
}

// Pause applies reason to s at now.
func Pause(s *AgentState, reason PauseReason, nowMs int64) {
	s.Paused = true
	s.PauseReason = reason
	s.PausedAt = nowMs
}

// Resume clears pause metadata on s.
func Resume(s *AgentState) {
	s.Paused = false
	s.PauseReason = PauseNone
	s.PausedAt = 0
}
