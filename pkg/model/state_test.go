package model

import "testing"

func TestStateIsTerminal(t *testing.T) {
	terminal := []ExperimentState{StateSucceeded, StateFailed, StateKilled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []ExperimentState{StateNew, StateSubmitted, StateRunning, StateUnknown}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from, to ExperimentState
		ok       bool
	}{
		{StateNew, StateSubmitted, true},
		{StateSubmitted, StateRunning, true},
		{StateSubmitted, StateSucceeded, true}, // no ordering guarantee on RUNNING
		{StateRunning, StateSucceeded, true},
		{StateRunning, StateFailed, true},
		{StateRunning, StateKilled, true},
		{StateSucceeded, StateRunning, false},
		{StateFailed, StateSucceeded, false},
		{StateNew, StateRunning, false},
		// Reset and poll-failure edges are valid from anywhere.
		{StateSucceeded, StateNew, true},
		{StateRunning, StateUnknown, true},
		// UNKNOWN recovers to whatever a successful poll reports.
		{StateUnknown, StateRunning, true},
		{StateUnknown, StateFailed, true},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestRecordTransition(t *testing.T) {
	rec := NewRecord(ExperimentSpec{"lr": 0.01}, "/tmp/exp")

	if rec.State != StateNew {
		t.Fatalf("fresh record state = %s, want NEW", rec.State)
	}
	if err := rec.Transition(StateSubmitted); err != nil {
		t.Fatalf("NEW -> SUBMITTED: %v", err)
	}
	if err := rec.Transition(StateSucceeded); err != nil {
		t.Fatalf("SUBMITTED -> SUCCEEDED: %v", err)
	}
	if err := rec.Transition(StateRunning); err == nil {
		t.Fatal("SUCCEEDED -> RUNNING should be rejected")
	}
	if rec.State != StateSucceeded {
		t.Fatalf("record mutated by rejected transition: %s", rec.State)
	}
}

func TestRecordReset(t *testing.T) {
	rec := NewRecord(ExperimentSpec{"lr": 0.01}, "/tmp/exp")
	rec.State = StateFailed
	rec.JobHandle = "job-123"
	rec.Message = "exit code 1"

	rec.Reset()

	if rec.State != StateNew {
		t.Errorf("state after reset = %s, want NEW", rec.State)
	}
	if rec.JobHandle != "" {
		t.Errorf("job handle not cleared on reset: %q", rec.JobHandle)
	}
	if rec.Message != "" {
		t.Errorf("message not cleared on reset: %q", rec.Message)
	}
}
