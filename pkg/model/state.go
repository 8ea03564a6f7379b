package model

import (
	"fmt"
	"strings"
)

// ExperimentState represents the lifecycle state of an experiment's run.
type ExperimentState string

const (
	StateNew       ExperimentState = "NEW"
	StateSubmitted ExperimentState = "SUBMITTED"
	StateRunning   ExperimentState = "RUNNING"
	StateSucceeded ExperimentState = "SUCCEEDED"
	StateFailed    ExperimentState = "FAILED"
	StateKilled    ExperimentState = "KILLED"
	StateUnknown   ExperimentState = "UNKNOWN"
)

// AllStates lists every experiment state, in lifecycle order.
var AllStates = []ExperimentState{
	StateNew, StateSubmitted, StateRunning,
	StateSucceeded, StateFailed, StateKilled, StateUnknown,
}

// String returns the string representation of the state.
func (s ExperimentState) String() string {
	return string(s)
}

// ParseState converts a string into an ExperimentState, case-insensitively.
func ParseState(s string) (ExperimentState, error) {
	candidate := ExperimentState(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range AllStates {
		if candidate == st {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown experiment state %q", s)
}

// IsTerminal returns true if the experiment is in a final state.
func (s ExperimentState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateKilled:
		return true
	}
	return false
}

// IsLive returns true if the experiment has a job the backend may still be
// tracking.
func (s ExperimentState) IsLive() bool {
	switch s {
	case StateSubmitted, StateRunning, StateUnknown:
		return true
	}
	return false
}

// ValidTransitions defines the forward edges of the experiment state machine.
// Two transitions are handled out of band: any state may move to NEW on an
// explicit reset, and any state may move to UNKNOWN when polling fails
// repeatedly.
var ValidTransitions = map[ExperimentState][]ExperimentState{
	StateNew:       {StateSubmitted},
	StateSubmitted: {StateRunning, StateSucceeded, StateFailed, StateKilled},
	StateRunning:   {StateSucceeded, StateFailed, StateKilled},
	StateUnknown:   {StateSubmitted, StateRunning, StateSucceeded, StateFailed, StateKilled},
}

// CanTransitionTo returns true if moving from the current state to next is a
// valid transition.
func (s ExperimentState) CanTransitionTo(next ExperimentState) bool {
	if next == StateNew || next == StateUnknown {
		return true
	}
	for _, allowed := range ValidTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
