// Package policy enforces allow/deny decisions by execution class, with
// operator-granted approvals consulted and consumed from the event queue.
package policy

import (
	"autonomy/pkg/proto"
	"autonomy/pkg/state"
)

// Config is the policy section of the runtime configuration.
type Config struct {
	DenyActions                   []string
	AllowActions                  []string
	DestructiveRequiresApproval   bool
	ReversibleWriteRequiresApproval bool
	ApprovalTTLMs                 int64
	PolicyVersion                 int
}

// DefaultConfig returns the spec's default policy: destructive requires
// approval, reversible_write does not.
func DefaultConfig() Config {
	return Config{
		DestructiveRequiresApproval:     true,
		ReversibleWriteRequiresApproval: false,
		ApprovalTTLMs:                   24 * 60 * 60 * 1000,
		PolicyVersion:                   1,
	}
}

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed        bool
	Reason         string
	ApprovalLevel  string
	PolicyVersion  int
	ExecutionClass state.ExecutionClass
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// Evaluate decides whether action (of the given execution class) may
// proceed, first-match-wins: explicit deny, explicit allow for read_only,
// destructive-without-approval deny, reversible_write-without-approval
// deny, otherwise allow.
func Evaluate(action string, class state.ExecutionClass, cfg Config, approvedByOperator bool) Decision {
	d := Decision{ExecutionClass: class, PolicyVersion: cfg.PolicyVersion}

	if contains(cfg.DenyActions, action) {
		d.Reason = "action explicitly denied"
		return d
	}
	if contains(cfg.AllowActions, action) && class == state.ClassReadOnly {
		d.Allowed = true
		d.Reason = "action explicitly allowed"
		return d
	}
	if class == state.ClassDestructive && cfg.DestructiveRequiresApproval && !approvedByOperator {
		d.Reason = "destructive action requires operator approval"
		d.ApprovalLevel = "required"
		return d
	}
	if class == state.ClassReversibleWrite && cfg.ReversibleWriteRequiresApproval && !approvedByOperator {
		d.Reason = "reversible write requires operator approval"
		d.ApprovalLevel = "required"
		return d
	}
	d.Allowed = true
	d.Reason = "allowed"
	return d
}

// IsApproved reports whether st has a live, unexpired approval for action.
func IsApproved(st *state.AgentState, action string, nowMs int64) bool {
	a, ok := st.Approvals[action]
	if !ok {
		return false
	}
	return a.ExpiresAt > nowMs
}

// ConsumeApprovalGrant applies a matching autonomy.approval.grant event to
// st.Approvals and returns true if one was applied, along with the approved
// action name.
func ConsumeApprovalGrant(st *state.AgentState, events []proto.Event, cfg Config, nowMs int64) (applied bool, action string) {
	for _, ev := range events {
		if ev.Type != "autonomy.approval.grant" {
			continue
		}
		act, _ := ev.Payload["action"].(string)
		if act == "" {
			continue
		}
		source, _ := ev.Payload["source"].(string)
		st.Approvals[act] = state.Approval{
			Action:     act,
			ApprovedAt: nowMs,
			ExpiresAt:  nowMs + cfg.ApprovalTTLMs,
			Source:     source,
		}
		return true, act
	}
	return false, ""
}
