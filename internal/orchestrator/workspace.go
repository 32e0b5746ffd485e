package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"autonomy/pkg/state"
)

const goalsTemplate = "# Autonomy Goals\n\nNo goals recorded yet.\n"
const tasksTemplate = "# Autonomy Tasks\n\nNo tasks recorded yet.\n"
const logTemplate = "# Autonomy Log\n\n"

func renderLogBlock(now time.Time, status string, summary, errMsg string, processed int, drops drainCounts, remaining int, budgetTokens, budgetCycles int, eventDigest []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s — %s\n\n", now.UTC().Format(time.RFC3339), status)
	if summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n\n", summary)
	}
	if errMsg != "" {
		fmt.Fprintf(&b, "Error: %s\n\n", errMsg)
	}
	fmt.Fprintf(&b, "Processed events: %d\n", processed)
	fmt.Fprintf(&b, "Dropped — duplicates: %d, invalid: %d, overflow: %d\n", drops.duplicates, drops.invalid, drops.overflow)
	fmt.Fprintf(&b, "Remaining queue depth: %d\n", remaining)
	fmt.Fprintf(&b, "Daily budget usage — tokens: %d, cycles: %d\n", budgetTokens, budgetCycles)
	if len(eventDigest) > 0 {
		b.WriteString("Events:\n")
		for _, d := range eventDigest {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}
	b.WriteString("\n")
	return b.String()
}

type drainCounts struct {
	duplicates int
	invalid    int
	overflow   int
}

func digestEvents(events []EventLite) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, fmt.Sprintf("%s (%s)", e.Type, e.Source))
	}
	return out
}

// EventLite is the minimal event shape the workspace log digests, avoiding
// a dependency on proto from this file.
type EventLite struct {
	Type   string
	Source string
}

func staleTaskEventType(status state.TaskStatus) string {
	return "autonomy.task.stale." + string(status)
}
