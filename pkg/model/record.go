package model

import (
	"time"
)

// ExperimentRecord is the durable local state of one experiment. The launch
// coordinator is the only writer; the status aggregator and result reader
// only read it.
type ExperimentRecord struct {
	ID      string          `json:"id"`
	Spec    ExperimentSpec  `json:"spec"`
	SaveDir string          `json:"save_dir"`
	State   ExperimentState `json:"state"`

	// JobHandle is the backend-assigned reference for the current run, empty
	// when no job has been submitted or after a reset. It is opaque to this
	// package.
	JobHandle string `json:"job_handle,omitempty"`

	// Message carries the last error or status note attached to the record,
	// e.g. why a run was marked FAILED or UNKNOWN.
	Message string `json:"message,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord creates a fresh record in state NEW for the given spec.
func NewRecord(spec ExperimentSpec, saveDir string) *ExperimentRecord {
	return &ExperimentRecord{
		ID:        spec.ID(),
		Spec:      spec,
		SaveDir:   saveDir,
		State:     StateNew,
		UpdatedAt: time.Now().UTC(),
	}
}

// Transition moves the record to next if the transition is valid and stamps
// UpdatedAt. Invalid transitions leave the record untouched.
func (r *ExperimentRecord) Transition(next ExperimentState) error {
	if r.State == next {
		r.UpdatedAt = time.Now().UTC()
		return nil
	}
	if !r.State.CanTransitionTo(next) {
		return &InvalidTransitionError{ID: r.ID, From: r.State, To: next}
	}
	r.State = next
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Reset returns the record to NEW and clears the job handle. Explicitly
// user-triggered; this is the only backward transition.
func (r *ExperimentRecord) Reset() {
	r.State = StateNew
	r.JobHandle = ""
	r.Message = ""
	r.UpdatedAt = time.Now().UTC()
}
