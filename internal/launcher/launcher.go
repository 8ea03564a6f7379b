// Package launcher is the scheduling core: it reconciles an experiment list
// against the record store and the orchestrator backend, submitting, skipping,
// resetting, polling, and killing jobs with bounded concurrency.
package launcher

import (
	"log/slog"

	"github.com/tesfaldet/haven/internal/backend"
	"github.com/tesfaldet/haven/internal/config"
	"github.com/tesfaldet/haven/internal/store"
	"github.com/tesfaldet/haven/pkg/model"
)

// Launcher coordinates experiment launches. All record writes in the system
// flow through it; a per-id mutex serializes mutations to the same experiment
// even when dispatched from different workers.
type Launcher struct {
	store   store.Store
	backend backend.Backend
	cfg     config.LaunchConfig
	logger  *slog.Logger
	locks   *keyedMutex
}

// New creates a Launcher. The config must already be validated by the caller
// or via Launch, which validates before any submission.
func New(st store.Store, be backend.Backend, cfg config.LaunchConfig, logger *slog.Logger) *Launcher {
	return &Launcher{
		store:   st,
		backend: be,
		cfg:     cfg,
		logger:  logger.With("component", "launcher"),
		locks:   newKeyedMutex(),
	}
}

// Options are the per-launch flags.
type Options struct {
	// Reset forces experiments back to NEW before submitting, killing any
	// still-live job best-effort first.
	Reset bool

	// SkipIfDone leaves SUCCEEDED experiments alone without touching the
	// backend. Honored before Reset, so finished work survives a reset
	// launch when both flags are set.
	SkipIfDone bool
}

// Action describes what the launcher did for one experiment.
type Action string

const (
	ActionSubmitted Action = "submitted"
	ActionSkipped   Action = "skipped"   // already terminal, left alone
	ActionNoop      Action = "noop"      // live job, idempotent re-run
	ActionDuplicate Action = "duplicate" // same id earlier in the batch
	ActionFailed    Action = "failed"    // submission rejected outright
	ActionUnknown   Action = "unknown"   // transient failure, state uncertain
	ActionKilled    Action = "killed"
	ActionReset     Action = "reset"
	ActionRefreshed Action = "refreshed"
)

// Outcome is the per-experiment result of a batch operation. A batch call
// always returns one outcome per input experiment; individual failures never
// abort the batch.
type Outcome struct {
	ID     string                `json:"id"`
	Action Action                `json:"action"`
	State  model.ExperimentState `json:"state"`
	Err    string                `json:"error,omitempty"`
}
