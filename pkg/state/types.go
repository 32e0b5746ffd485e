// Package state defines the durable per-agent document persisted by the
// autonomy engine: tunables, safety policy, the augmentation FSM snapshot,
// gaps, candidates, and the bounded ring-buffers of recent activity.
package state

// PauseReason explains why an agent is currently paused.
type PauseReason string

const (
	PauseNone   PauseReason = ""
	PauseManual PauseReason = "manual"
	PauseBudget PauseReason = "budget"
	PauseErrors PauseReason = "errors"
)

// Stage is one position in the nine-stage augmentation FSM.
type Stage string

const (
	StageDiscover  Stage = "discover"
	StageDesign    Stage = "design"
	StageSynthesize Stage = "synthesize"
	StageVerify    Stage = "verify"
	StageCanary    Stage = "canary"
	StagePromote   Stage = "promote"
	StageObserve   Stage = "observe"
	StageLearn     Stage = "learn"
	StageRetire    Stage = "retire"
)

// ExecutionClass is the risk band assigned to a stage or candidate action.
type ExecutionClass string

const (
	ClassReadOnly        ExecutionClass = "read_only"
	ClassReversibleWrite ExecutionClass = "reversible_write"
	ClassDestructive     ExecutionClass = "destructive"
)

// GapCategory classifies the nature of a capability gap.
type GapCategory string

const (
	CategoryCapability GapCategory = "capability"
	CategoryQuality    GapCategory = "quality"
	CategoryReliability GapCategory = "reliability"
	CategorySafety     GapCategory = "safety"
	CategoryCost       GapCategory = "cost"
	CategoryLatency    GapCategory = "latency"
	CategoryUnknown    GapCategory = "unknown"
)

// GapStatus is the lifecycle status of a gap.
type GapStatus string

const (
	GapOpen       GapStatus = "open"
	GapPlanned    GapStatus = "planned"
	GapAddressed  GapStatus = "addressed"
	GapSuppressed GapStatus = "suppressed"
)

// CandidateStatus is the lifecycle status of a skill candidate.
type CandidateStatus string

const (
	CandidateCandidate CandidateStatus = "candidate"
	CandidatePlanned   CandidateStatus = "planned"
	CandidateVerified  CandidateStatus = "verified"
	CandidateRejected  CandidateStatus = "rejected"
)

// Ring-buffer / map caps enforced throughout the core. Named so every
// truncation site cites the same constant instead of a magic number.
const (
	MaxGaps              = 200
	MaxCandidates        = 250
	MaxActiveExperiments = 100
	MaxTransitions       = 200
	MaxDedupeEntries     = 5000
	MaxGoals             = 500
	MaxTasks             = 2000
	MaxRecentEvents      = 50
	MaxRecentCycles      = 50
	MaxGapEvidence       = 10
)

// Gap is a recurring, ranked indication that the agent lacks capability,
// quality, reliability, safety, cost, or latency coverage in some area.
type Gap struct {
	ID          string      `json:"id"`
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	Category    GapCategory `json:"category"`
	Status      GapStatus   `json:"status"`
	Severity    float64     `json:"severity"`
	Confidence  float64     `json:"confidence"`
	Score       int         `json:"score"`
	Occurrences int         `json:"occurrences"`
	FirstSeenAt int64       `json:"firstSeenAt"`
	LastSeenAt  int64       `json:"lastSeenAt"`
	LastSource  string      `json:"lastSource"`
	Evidence    []string    `json:"evidence,omitempty"`
}

// SafetyProfile is the risk envelope attached to a skill candidate.
type SafetyProfile struct {
	ExecutionClass ExecutionClass `json:"executionClass"`
	Constraints    []string       `json:"constraints,omitempty"`
}

// SkillCandidate is a proposed new skill linked to one gap.
type SkillCandidate struct {
	ID           string          `json:"id"`
	SourceGapID  string          `json:"sourceGapId"`
	Name         string          `json:"name"`
	Intent       string          `json:"intent"`
	Status       CandidateStatus `json:"status"`
	Priority     int             `json:"priority"`
	CreatedAt    int64           `json:"createdAt"`
	UpdatedAt    int64           `json:"updatedAt"`
	Safety       SafetyProfile   `json:"safety"`
	Tests        []string        `json:"tests,omitempty"`
}

// Transition is one recorded FSM move.
type Transition struct {
	From   Stage  `json:"from"`
	To     Stage  `json:"to"`
	Ts     int64  `json:"ts"`
	Reason string `json:"reason"`
}

// Approval is an operator-granted, time-boxed clearance for one action.
type Approval struct {
	Action     string `json:"action"`
	ApprovedAt int64  `json:"approvedAt"`
	ExpiresAt  int64  `json:"expiresAt"`
	Source     string `json:"source"`
}

// Augmentation is the FSM snapshot plus the bounded collections it drives.
type Augmentation struct {
	Stage               Stage            `json:"stage"`
	StageEnteredAt      int64            `json:"stageEnteredAt"`
	LastTransitionAt    int64            `json:"lastTransitionAt"`
	LastTransitionReason string          `json:"lastTransitionReason"`
	PhaseRunCount       int              `json:"phaseRunCount"`
	PolicyVersion       int              `json:"policyVersion"`
	LastEvalScore       *float64         `json:"lastEvalScore,omitempty"`
	LastEvalAt          int64            `json:"lastEvalAt,omitempty"`
	Gaps                []Gap            `json:"gaps"`
	Candidates          []SkillCandidate `json:"candidates"`
	ActiveExperiments   []string         `json:"activeExperiments"`
	Transitions         []Transition     `json:"transitions"`
}

// SafetyPolicy bounds how aggressively an agent may act and auto-recover.
type SafetyPolicy struct {
	DailyTokenBudget              *int `json:"dailyTokenBudget,omitempty"`
	DailyCycleBudget              *int `json:"dailyCycleBudget,omitempty"`
	MaxConsecutiveErrors          int  `json:"maxConsecutiveErrors"`
	AutoPauseOnBudgetExhausted    bool `json:"autoPauseOnBudgetExhausted"`
	AutoResumeOnNewDayBudgetPause bool `json:"autoResumeOnNewDayBudgetPause"`
	ErrorPauseMinutes             int  `json:"errorPauseMinutes"`
	StaleTaskHours                int  `json:"staleTaskHours"`
	EmitDailyReviewEvents         bool `json:"emitDailyReviewEvents"`
	EmitWeeklyReviewEvents        bool `json:"emitWeeklyReviewEvents"`
}

// Budget tracks the rolling UTC-day usage window.
type Budget struct {
	DayKey     string `json:"dayKey"`
	CyclesUsed int    `json:"cyclesUsed"`
	TokensUsed int    `json:"tokensUsed"`
}

// Review tracks the last emitted periodic-review keys.
type Review struct {
	LastDailyKey  string `json:"lastDailyKey"`
	LastWeeklyKey string `json:"lastWeeklyKey"`
}

// Metrics is the cumulative cycle outcome counters.
type Metrics struct {
	Cycles            int    `json:"cycles"`
	OK                int    `json:"ok"`
	Error             int    `json:"error"`
	Skipped           int    `json:"skipped"`
	ConsecutiveErrors int    `json:"consecutiveErrors"`
	LastCycleAt       int64  `json:"lastCycleAt,omitempty"`
	LastError         string `json:"lastError,omitempty"`
}

// Goal is one workspace-visible objective line.
type Goal struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// TaskStatus is the lifecycle status of a workspace task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskDone       TaskStatus = "done"
)

// Task is one workspace-visible unit of work tracked for staleness.
type Task struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	CreatedAt int64      `json:"createdAt"`
	UpdatedAt int64      `json:"updatedAt"`
}

// CycleRecord is one bounded history entry of a completed cycle.
type CycleRecord struct {
	Ts         int64  `json:"ts"`
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
}

// AgentState is the single logical document persisted per agent.
type AgentState struct {
	Version int `json:"version"`

	AgentID string `json:"agentId"`
	Mission string `json:"mission"`

	Paused      bool        `json:"paused"`
	PauseReason PauseReason `json:"pauseReason,omitempty"`
	PausedAt    int64       `json:"pausedAt,omitempty"`

	GoalsFile string `json:"goalsFile"`
	TasksFile string `json:"tasksFile"`
	LogFile   string `json:"logFile"`

	MaxActionsPerRun int `json:"maxActionsPerRun"`
	DedupeWindowMs   int `json:"dedupeWindowMs"`
	MaxQueuedEvents  int `json:"maxQueuedEvents"`

	Safety SafetyPolicy `json:"safety"`
	Budget Budget       `json:"budget"`
	Review Review       `json:"review"`

	Augmentation Augmentation `json:"augmentation"`

	Approvals   map[string]Approval `json:"approvals"`
	TaskSignals map[string]string   `json:"taskSignals"`
	Dedupe      map[string]int64    `json:"dedupe"`

	Goals        []Goal        `json:"goals"`
	Tasks        []Task        `json:"tasks"`
	RecentEvents []string      `json:"recentEvents"`
	RecentCycles []CycleRecord `json:"recentCycles"`

	Metrics Metrics `json:"metrics"`
}
