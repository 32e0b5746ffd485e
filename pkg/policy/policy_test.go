package policy_test

import (
	"testing"

	"autonomy/pkg/policy"
	"autonomy/pkg/proto"
	"autonomy/pkg/state"
)

func TestEvaluateExplicitDenyWins(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.DenyActions = []string{"delete_repo"}
	cfg.AllowActions = []string{"delete_repo"}

	d := policy.Evaluate("delete_repo", state.ClassReadOnly, cfg, true)
	if d.Allowed {
		t.Fatal("expected explicit deny to win over explicit allow")
	}
	if d.Reason != "action explicitly denied" {
		t.Errorf("Reason = %q, want %q", d.Reason, "action explicitly denied")
	}
}

func TestEvaluateExplicitAllowReadOnly(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.AllowActions = []string{"list_files"}

	d := policy.Evaluate("list_files", state.ClassReadOnly, cfg, false)
	if !d.Allowed {
		t.Error("expected explicitly allowed read-only action to be allowed")
	}
}

func TestEvaluateDestructiveRequiresApproval(t *testing.T) {
	cfg := policy.DefaultConfig()

	d := policy.Evaluate("rm_workspace", state.ClassDestructive, cfg, false)
	if d.Allowed {
		t.Error("expected destructive action without approval to be denied")
	}
	if d.ApprovalLevel != "required" {
		t.Errorf("ApprovalLevel = %q, want %q", d.ApprovalLevel, "required")
	}

	approved := policy.Evaluate("rm_workspace", state.ClassDestructive, cfg, true)
	if !approved.Allowed {
		t.Error("expected destructive action with approval to be allowed")
	}
}

func TestEvaluateReversibleWriteDefaultAllowed(t *testing.T) {
	cfg := policy.DefaultConfig()
	d := policy.Evaluate("write_file", state.ClassReversibleWrite, cfg, false)
	if !d.Allowed {
		t.Error("expected reversible write to default-allow")
	}
}

func TestEvaluateReversibleWriteCanRequireApproval(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.ReversibleWriteRequiresApproval = true

	d := policy.Evaluate("write_file", state.ClassReversibleWrite, cfg, false)
	if d.Allowed {
		t.Error("expected reversible write to require approval once configured")
	}

	d2 := policy.Evaluate("write_file", state.ClassReversibleWrite, cfg, true)
	if !d2.Allowed {
		t.Error("expected approved reversible write to be allowed")
	}
}

func TestIsApproved(t *testing.T) {
	st := &state.AgentState{Approvals: map[string]state.Approval{
		"rm_workspace": {Action: "rm_workspace", ExpiresAt: 2000},
	}}
	if !policy.IsApproved(st, "rm_workspace", 1000) {
		t.Error("expected approval to hold before expiry")
	}
	if policy.IsApproved(st, "rm_workspace", 3000) {
		t.Error("expected approval to have expired")
	}
	if policy.IsApproved(st, "other", 1000) {
		t.Error("expected unrelated action to have no approval")
	}
}

func TestConsumeApprovalGrant(t *testing.T) {
	st := &state.AgentState{Approvals: map[string]state.Approval{}}
	cfg := policy.DefaultConfig()
	events := []proto.Event{
		{Type: "task.created"},
		{Type: "autonomy.approval.grant", Payload: map[string]interface{}{"action": "rm_workspace", "source": "operator"}},
	}

	applied, action := policy.ConsumeApprovalGrant(st, events, cfg, 1000)
	if !applied {
		t.Fatal("expected a matching approval.grant event to be applied")
	}
	if action != "rm_workspace" {
		t.Errorf("action = %q, want %q", action, "rm_workspace")
	}
	if want := int64(1000 + cfg.ApprovalTTLMs); st.Approvals["rm_workspace"].ExpiresAt != want {
		t.Errorf("ExpiresAt = %d, want %d", st.Approvals["rm_workspace"].ExpiresAt, want)
	}
	if st.Approvals["rm_workspace"].Source != "operator" {
		t.Errorf("Source = %q, want %q", st.Approvals["rm_workspace"].Source, "operator")
	}
}

func TestConsumeApprovalGrantNoneFound(t *testing.T) {
	st := &state.AgentState{Approvals: map[string]state.Approval{}}
	cfg := policy.DefaultConfig()
	applied, _ := policy.ConsumeApprovalGrant(st, []proto.Event{{Type: "task.created"}}, cfg, 1000)
	if applied {
		t.Error("expected no approval to be applied when no grant event is present")
	}
}
