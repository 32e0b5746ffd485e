// Package config defines the autonomy engine's versioned configuration: a
// single explicit-field record plus a companion Overrides record that
// Prepare merges onto stored tunables. Replaces ad-hoc property bags with
// a single struct and a mutex-guarded, atomically-updated global, in the
// style of the teacher's pkg/config.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

const SchemaVersion = 1

// MetricsConfig toggles Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool `json:"enabled"`
}

// ReadIndexConfig toggles the optional SQLite mirror.
type ReadIndexConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// PolicyConfig mirrors pkg/policy.Config for JSON persistence.
type PolicyConfig struct {
	DenyActions                     []string `json:"denyActions"`
	AllowActions                    []string `json:"allowActions"`
	DestructiveRequiresApproval     bool     `json:"destructiveRequiresApproval"`
	ReversibleWriteRequiresApproval bool     `json:"reversibleWriteRequiresApproval"`
	ApprovalTTLMs                   int64    `json:"approvalTtlMs"`
	PolicyVersion                   int      `json:"policyVersion"`
}

// GateConfig mirrors pkg/gate.Config for JSON persistence.
type GateConfig struct {
	MinimumRecentCycles int     `json:"minimumRecentCycles"`
	MaximumErrorRate    float64 `json:"maximumErrorRate"`
	MinimumEvalScore    float64 `json:"minimumEvalScore"`
}

// Config is the top-level, versioned configuration document.
type Config struct {
	SchemaVersion int             `json:"schemaVersion"`
	StateRoot     string          `json:"stateRoot"`
	Metrics       MetricsConfig   `json:"metrics"`
	ReadIndex     ReadIndexConfig `json:"readIndex"`
	Policy        PolicyConfig    `json:"policy"`
	Gate          GateConfig      `json:"gate"`
}

// Overrides is the "partial overrides" record accepted by Prepare: every
// field optional, every field independently defaultable. Mirrors the
// configuration knobs listed in the orchestrator's external interface.
type Overrides struct {
	Mission                       *string
	GoalsFile                     *string
	TasksFile                     *string
	LogFile                       *string
	MaxActionsPerRun              *int
	DedupeWindowMinutes           *int
	MaxQueuedEvents               *int
	DailyTokenBudget              *int
	DailyCycleBudget              *int
	MaxConsecutiveErrors          *int
	AutoPauseOnBudgetExhausted    *bool
	AutoResumeOnNewDayBudgetPause *bool
	ErrorPauseMinutes             *int
	StaleTaskHours                *int
	EmitDailyReviewEvents         *bool
	EmitWeeklyReviewEvents        *bool
	Paused                        *bool
}

func Default() Config {
	return Config{
		SchemaVersion: SchemaVersion,
		StateRoot:     "./.autonomy-state",
		Metrics:       MetricsConfig{Enabled: true},
		ReadIndex:     ReadIndexConfig{Enabled: false},
		Policy: PolicyConfig{
			DestructiveRequiresApproval: true,
			ApprovalTTLMs:               24 * 60 * 60 * 1000,
			PolicyVersion:               1,
		},
		Gate: GateConfig{MinimumRecentCycles: 3, MaximumErrorRate: 0.2, MinimumEvalScore: 0.6},
	}
}

var (
	mu      sync.RWMutex
	current = Default()
)

// Get returns a copy of the current global configuration.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// SetForTesting overwrites the global configuration, for test isolation.
func SetForTesting(c Config) {
	mu.Lock()
	defer mu.Unlock()
	current = c
}

// Load reads cfg from path, applying defaults for any zero-value section.
// If path does not exist, the default configuration is written there and
// returned.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		c := Default()
		return c, Save(path, c)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	c := Default()
	if err := json.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	applyDefaults(&c)
	mu.Lock()
	current = c
	mu.Unlock()
	return c, nil
}

// Save persists c as pretty JSON to path.
func Save(path string, c Config) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	mu.Lock()
	current = c
	mu.Unlock()
	return nil
}

func applyDefaults(c *Config) {
	if c.SchemaVersion == 0 {
		c.SchemaVersion = SchemaVersion
	}
	if c.StateRoot == "" {
		c.StateRoot = "./.autonomy-state"
	}
	if c.Policy.ApprovalTTLMs == 0 {
		c.Policy.ApprovalTTLMs = 24 * 60 * 60 * 1000
	}
	if c.Gate.MinimumRecentCycles == 0 {
		c.Gate.MinimumRecentCycles = 3
	}
	if c.Gate.MaximumErrorRate == 0 {
		c.Gate.MaximumErrorRate = 0.2
	}
	if c.Gate.MinimumEvalScore == 0 {
		c.Gate.MinimumEvalScore = 0.6
	}
}

// UpdatePolicy atomically replaces the policy section.
func UpdatePolicy(p PolicyConfig) {
	mu.Lock()
	defer mu.Unlock()
	current.Policy = p
}

// UpdateGate atomically replaces the promotion gate section.
func UpdateGate(g GateConfig) {
	mu.Lock()
	defer mu.Unlock()
	current.Gate = g
}
