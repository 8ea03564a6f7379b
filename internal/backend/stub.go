package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tesfaldet/haven/pkg/model"
)

// Stub is an in-memory Backend for tests and dry runs. It tracks every call,
// including the maximum number of submissions in flight at once, so tests can
// assert on idempotence and concurrency bounds.
type Stub struct {
	mu      sync.Mutex
	jobs    map[JobHandle]model.ExperimentState
	logs    map[JobHandle]string
	nextJob int

	submitCalls int
	statusCalls int
	killCalls   int

	inFlight    int
	maxInFlight int

	// SubmitErr, StatusErr and KillErr, when set, fail the corresponding
	// call for every experiment.
	SubmitErr error
	StatusErr error
	KillErr   error

	// FailSubmitFor fails Submit only for job specs whose rendered command
	// contains the given substring (typically an experiment id).
	FailSubmitFor string

	// SubmitState is the state newly submitted jobs start in.
	SubmitState model.ExperimentState

	// Gate, when non-nil, is closed by the test to release all in-flight
	// Submit calls; used to observe concurrent submissions.
	Gate chan struct{}
}

// NewStub creates a Stub whose jobs start as SUBMITTED.
func NewStub() *Stub {
	return &Stub{
		jobs:        make(map[JobHandle]model.ExperimentState),
		logs:        make(map[JobHandle]string),
		SubmitState: model.StateSubmitted,
	}
}

// Submit records the call and returns a fresh handle.
func (s *Stub) Submit(ctx context.Context, spec JobSpec) (JobHandle, error) {
	s.mu.Lock()
	s.submitCalls++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	gate := s.Gate
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			s.mu.Lock()
			s.inFlight--
			s.mu.Unlock()
			return "", wrap("submit", "", ctx.Err())
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	if s.SubmitErr != nil {
		return "", wrap("submit", "", s.SubmitErr)
	}
	if s.FailSubmitFor != "" && strings.Contains(spec.RunCommand, s.FailSubmitFor) {
		return "", wrap("submit", "", fmt.Errorf("submission rejected for %s", s.FailSubmitFor))
	}

	s.nextJob++
	handle := JobHandle(fmt.Sprintf("job-%d", s.nextJob))
	s.jobs[handle] = s.SubmitState
	s.logs[handle] = "stub log for " + string(handle) + "\n"
	return handle, nil
}

// Status reports the stored job state.
func (s *Stub) Status(_ context.Context, handle JobHandle) (model.ExperimentState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++

	if s.StatusErr != nil {
		return "", wrap("status", handle, s.StatusErr)
	}
	state, ok := s.jobs[handle]
	if !ok {
		return "", wrap("status", handle, ErrNotFound)
	}
	return state, nil
}

// Logs returns the stored log text.
func (s *Stub) Logs(_ context.Context, handle JobHandle) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.logs[handle]
	if !ok {
		return "", wrap("logs", handle, ErrNotFound)
	}
	return text, nil
}

// Kill marks the job cancelled.
func (s *Stub) Kill(_ context.Context, handle JobHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.killCalls++

	if s.KillErr != nil {
		return wrap("kill", handle, s.KillErr)
	}
	if _, ok := s.jobs[handle]; !ok {
		return wrap("kill", handle, ErrNotFound)
	}
	s.jobs[handle] = model.StateKilled
	return nil
}

// SetState overrides a job's state, simulating backend-side progress.
func (s *Stub) SetState(handle JobHandle, state model.ExperimentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[handle] = state
}

// SetAllStates moves every known job to state.
func (s *Stub) SetAllStates(state model.ExperimentState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h := range s.jobs {
		s.jobs[h] = state
	}
}

// Forget drops a job, simulating a backend whose state was wiped.
func (s *Stub) Forget(handle JobHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, handle)
}

// SubmitCalls returns the number of Submit calls seen.
func (s *Stub) SubmitCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitCalls
}

// StatusCalls returns the number of Status calls seen.
func (s *Stub) StatusCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls
}

// KillCalls returns the number of Kill calls seen.
func (s *Stub) KillCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killCalls
}

// MaxInFlight returns the peak number of simultaneous Submit calls.
func (s *Stub) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}
