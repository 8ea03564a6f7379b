// Package backend is the capability boundary to the remote orchestrator that
// actually runs experiment jobs. The launch coordinator only ever calls the
// four operations below and treats job handles as opaque tokens.
package backend

import (
	"context"

	"github.com/tesfaldet/haven/pkg/model"
)

// JobHandle is an opaque backend-assigned reference to a submitted job.
type JobHandle string

// JobSpec describes one job submission.
type JobSpec struct {
	// RunCommand is the fully rendered command the job executes.
	RunCommand string `json:"run_command"`

	Image  string `json:"image"`
	Volume string `json:"volume,omitempty"`

	Resources Resources `json:"resources"`

	// ResourceBid and Restartable are forwarded to the orchestrator's
	// placement layer.
	ResourceBid float64 `json:"resource_bid,omitempty"`
	Restartable bool    `json:"restartable,omitempty"`

	// RequestToken makes the submission safe to retry: the orchestrator
	// dedupes submissions carrying the same token.
	RequestToken string `json:"request_token"`
}

// Resources is the job's resource request.
type Resources struct {
	GPUCount int `json:"gpu_count,omitempty"`
	CPUCount int `json:"cpu_count,omitempty"`
	MemoryGB int `json:"memory_gb,omitempty"`
}

// Backend is the orchestrator capability used by the launch coordinator.
//
// Submit must be safe to retry with the same RequestToken. Status returns a
// transient error (retryable, see IsTransient) distinct from a terminal
// FAILED state. Logs and Kill report ErrNotFound for handles the backend no
// longer knows.
type Backend interface {
	Submit(ctx context.Context, spec JobSpec) (JobHandle, error)
	Status(ctx context.Context, handle JobHandle) (model.ExperimentState, error)
	Logs(ctx context.Context, handle JobHandle) (string, error)
	Kill(ctx context.Context, handle JobHandle) error
}
