// Package phase implements the nine-stage augmentation finite state machine
// and its legal-transition, next-stage, and execution-class rules as pure
// functions.
package phase

import "autonomy/pkg/state"

// order is the fixed cycle every stage advances through.
var order = []state.Stage{
	state.StageDiscover,
	state.StageDesign,
	state.StageSynthesize,
	state.StageVerify,
	state.StageCanary,
	state.StagePromote,
	state.StageObserve,
	state.StageLearn,
	state.StageRetire,
}

func indexOf(s state.Stage) int {
	for i, v := range order {
		if v == s {
			return i
		}
	}
	return -1
}

func successor(s state.Stage) state.Stage {
	i := indexOf(s)
	if i < 0 {
		return state.StageDiscover
	}
	return order[(i+1)%len(order)]
}

// IsLegalTransition reports whether moving from 'from' to 'to' is allowed:
// staying put, or advancing to the immediate successor in the fixed cycle.
func IsLegalTransition(from, to state.Stage) bool {
	return to == from || to == successor(from)
}

// TransitionStage moves aug to "to" at now with reason if legal, recording a
// transition entry (capped at state.MaxTransitions) and updating stage
// timestamps. Returns false without mutating aug if the transition is illegal.
func TransitionStage(aug *state.Augmentation, to state.Stage, reason string, nowMs int64) bool {
	if !IsLegalTransition(aug.Stage, to) {
		return false
	}
	from := aug.Stage
	aug.Stage = to
	if to != from {
		aug.StageEnteredAt = nowMs
	}
	aug.LastTransitionAt = nowMs
	aug.LastTransitionReason = reason
	aug.Transitions = append(aug.Transitions, state.Transition{From: from, To: to, Ts: nowMs, Reason: reason})
	if len(aug.Transitions) > state.MaxTransitions {
		aug.Transitions = aug.Transitions[len(aug.Transitions)-state.MaxTransitions:]
	}
	return true
}

// Inputs summarizes the facts ResolveNextStage needs about current state.
type Inputs struct {
	HasOpenGap           bool
	HasCandidateOrPlanned bool
	HasVerified          bool
}

// ResolveNextStage chooses the next stage given the current stage and inputs.
func ResolveNextStage(current state.Stage, in Inputs) state.Stage {
	switch current {
	case state.StageDiscover:
		if in.HasOpenGap {
			return state.StageDesign
		}
		return state.StageDiscover
	case state.StageDesign:
		if in.HasCandidateOrPlanned {
			return state.StageSynthesize
		}
		return state.StageDiscover
	case state.StageSynthesize:
		if in.HasCandidateOrPlanned {
			return state.StageVerify
		}
		return state.StageDiscover
	case state.StageVerify:
		if in.HasVerified {
			return state.StageCanary
		}
		return state.StageDiscover
	case state.StageCanary:
		if in.HasVerified {
			return state.StagePromote
		}
		return state.StageDiscover
	case state.StagePromote:
		return state.StageObserve
	case state.StageObserve:
		return state.StageLearn
	case state.StageLearn:
		return state.StageRetire
	case state.StageRetire:
		return state.StageDiscover
	default:
		return state.StageDiscover
	}
}

// ExecutionClassForStage maps a stage to its risk band.
func ExecutionClassForStage(s state.Stage) state.ExecutionClass {
	switch s {
	case state.StagePromote, state.StageRetire:
		return state.ClassDestructive
	case state.StageSynthesize, state.StageVerify, state.StageCanary:
		return state.ClassReversibleWrite
	default:
		return state.ClassReadOnly
	}
}
