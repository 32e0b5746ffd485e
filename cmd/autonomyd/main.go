// Command autonomyd runs a single autonomy Prepare/Finalize cycle for one
// agent against a workspace directory. It is a minimal demonstration
// entrypoint, not a scheduler, RPC server, or operator CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"autonomy/internal/orchestrator"
	"autonomy/pkg/config"
	"autonomy/pkg/store"
)

func main() {
	agentID := flag.String("agent", "", "agent id to run a cycle for")
	workspaceDir := flag.String("workspace", ".", "workspace directory for goals/tasks/log files")
	stateRoot := flag.String("state-root", "", "state root directory (overrides AUTONOMY_STATE_ROOT)")
	mission := flag.String("mission", "", "mission text for a newly-created agent")
	flag.Parse()

	if *agentID == "" {
		fmt.Fprintln(os.Stderr, "autonomyd: -agent is required")
		os.Exit(2)
	}

	root := *stateRoot
	if root == "" {
		root = os.Getenv("AUTONOMY_STATE_ROOT")
	}
	if root == "" {
		root = "./.autonomy-state"
	}

	cfg := config.Default()
	cfg.StateRoot = root
	s := store.New(root)
	orch := orchestrator.New(s, cfg)

	overrides := config.Overrides{}
	if *mission != "" {
		overrides.Mission = mission
	}

	ctx := context.Background()
	prepared, skipped, err := orch.Prepare(ctx, orchestrator.PrepareParams{
		AgentID:      *agentID,
		WorkspaceDir: *workspaceDir,
		Overrides:    overrides,
	})
	if err != nil {
		log.Fatalf("autonomyd: prepare: %v", err)
	}
	if skipped != nil {
		fmt.Printf("skipped: %s\n", skipped.Reason)
		return
	}

	fmt.Printf("agent %s: stage=%s processed=%d dropped(dup=%d,invalid=%d,overflow=%d) remaining=%d\n",
		*agentID, prepared.State.Augmentation.Stage, len(prepared.Events),
		prepared.DroppedDuplicates, prepared.DroppedInvalid, prepared.DroppedOverflow, prepared.RemainingEvents)

	if err := orch.Finalize(orchestrator.FinalizeParams{
		AgentID:        *agentID,
		WorkspaceDir:   *workspaceDir,
		State:          prepared.State,
		Status:         "ok",
		Summary:        "demonstration cycle completed",
		Events:         prepared.Events,
		Drops:          orchestrator.FinalizeDrops{Duplicates: prepared.DroppedDuplicates, Invalid: prepared.DroppedInvalid, Overflow: prepared.DroppedOverflow},
		Remaining:      prepared.RemainingEvents,
		LockToken:      prepared.LockToken,
		CycleStartedAt: prepared.CycleStartedAt,
	}); err != nil {
		log.Fatalf("autonomyd: finalize: %v", err)
	}
}
