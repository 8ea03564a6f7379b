package launcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tesfaldet/haven/internal/backend"
	"github.com/tesfaldet/haven/pkg/model"
)

// Launch reconciles the experiment list against the record store and submits
// whatever needs submitting, bounded by MaxParallel concurrent backend calls.
//
// Submission policy per experiment:
//   - no record, or record in NEW: submit
//   - SUCCEEDED with SkipIfDone: no-op, zero backend calls, even with Reset
//   - Reset flag set: kill any live job best-effort, force back to NEW, submit
//   - SUBMITTED/RUNNING/UNKNOWN: no-op (re-running launch never double-submits
//     a live job)
//   - FAILED/KILLED/SUCCEEDED without flags: left alone; reset is the only way
//     to rerun a terminal experiment
//
// Launch returns one outcome per input spec, in input order. Configuration
// and spec validation errors are fatal and reported before any submission;
// everything after that point is per-experiment and never aborts the batch.
func (l *Launcher) Launch(ctx context.Context, specs []model.ExperimentSpec, opts Options) ([]Outcome, error) {
	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}
	for i, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, model.NewValidationError("experiment %d: %v", i, err)
		}
	}

	outcomes := make([]Outcome, len(specs))
	seen := make(map[string]bool, len(specs))
	sem := newSemaphore(l.cfg.MaxParallel)

	var wg sync.WaitGroup
	for i, spec := range specs {
		id := spec.ID()
		if seen[id] {
			// Same canonical content appeared earlier in the list; one
			// record, one submission.
			outcomes[i] = Outcome{ID: id, Action: ActionDuplicate}
			continue
		}
		seen[id] = true

		wg.Add(1)
		go func(i int, spec model.ExperimentSpec, id string) {
			defer wg.Done()
			if !sem.acquire(ctx) {
				outcomes[i] = Outcome{ID: id, Action: ActionUnknown, Err: ctx.Err().Error()}
				return
			}
			defer sem.release()
			outcomes[i] = l.launchOne(ctx, spec, id, opts)
		}(i, spec, id)
	}
	wg.Wait()

	l.logger.Info("launch settled", "experiments", len(specs), "submitted", countAction(outcomes, ActionSubmitted))
	return outcomes, nil
}

// launchOne processes a single experiment end to end: reconcile, submit if
// needed, write the record. Failures are isolated to this experiment.
func (l *Launcher) launchOne(ctx context.Context, spec model.ExperimentSpec, id string, opts Options) Outcome {
	unlock := l.locks.lock(id)
	defer unlock()

	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return Outcome{ID: id, Action: ActionUnknown, Err: err.Error()}
	}
	if rec == nil {
		rec = model.NewRecord(spec, l.store.SaveDir(id))
	}

	action := ActionSubmitted
	switch {
	case rec.State == model.StateNew:
		// fall through to submit
	case rec.State == model.StateSucceeded && opts.SkipIfDone:
		// Checked before Reset: finished work survives a reset launch.
		return Outcome{ID: id, Action: ActionSkipped, State: rec.State}
	case opts.Reset:
		if rec.State.IsLive() && rec.JobHandle != "" {
			if kerr := l.backend.Kill(ctx, backend.JobHandle(rec.JobHandle)); kerr != nil && !backend.IsNotFound(kerr) {
				l.logger.Warn("kill before reset failed", "id", id, "error", kerr)
			}
		}
		rec.Reset()
		action = ActionReset
	case rec.State.IsLive():
		if rec.State == model.StateUnknown && rec.JobHandle == "" {
			// A submit that never yielded a handle. Whether the orchestrator
			// accepted it cannot be derived from here, so polling has nothing
			// to poll; only an explicit reset clears the way to resubmit.
			return Outcome{ID: id, Action: ActionNoop, State: rec.State, Err: "no job handle; reset to retry"}
		}
		return Outcome{ID: id, Action: ActionNoop, State: rec.State}
	default:
		// Terminal without reset: FAILED and KILLED are not retried
		// automatically, SUCCEEDED is not rerun.
		return Outcome{ID: id, Action: ActionSkipped, State: rec.State}
	}

	// Record exists from the first submission attempt onward, even if the
	// submit call below fails.
	if err := l.store.Put(ctx, rec); err != nil {
		return Outcome{ID: id, Action: ActionUnknown, Err: err.Error()}
	}

	handle, err := l.backend.Submit(ctx, l.jobSpec(rec))
	if err != nil {
		return l.recordSubmitFailure(ctx, rec, err)
	}

	rec.JobHandle = string(handle)
	if terr := rec.Transition(model.StateSubmitted); terr != nil {
		return Outcome{ID: id, Action: ActionFailed, State: rec.State, Err: terr.Error()}
	}
	if err := l.store.Put(ctx, rec); err != nil {
		return Outcome{ID: id, Action: ActionUnknown, State: rec.State, Err: err.Error()}
	}

	l.logger.Debug("experiment submitted", "id", id, "handle", handle, "action", action)
	if action == ActionReset {
		return Outcome{ID: id, Action: ActionSubmitted, State: rec.State}
	}
	return Outcome{ID: id, Action: action, State: rec.State}
}

// jobSpec builds the backend submission for an experiment. Each submission
// carries a fresh request token; the token ties together the retries of one
// logical submission, not the experiment's whole history.
func (l *Launcher) jobSpec(rec *model.ExperimentRecord) backend.JobSpec {
	return backend.JobSpec{
		RunCommand: l.cfg.RenderCommand(rec.ID, rec.SaveDir),
		Image:      l.cfg.Job.Image,
		Volume:     l.cfg.Job.Volume,
		Resources: backend.Resources{
			GPUCount: l.cfg.Job.GPUCount,
			CPUCount: l.cfg.Job.CPUCount,
			MemoryGB: l.cfg.Job.MemoryGB,
		},
		ResourceBid:  l.cfg.Job.ResourceBid,
		Restartable:  l.cfg.Job.Restartable,
		RequestToken: uuid.NewString(),
	}
}

// recordSubmitFailure maps a failed submit call onto the record: transient
// failures leave the true state uncertain (the request may have reached the
// orchestrator), so the record goes to UNKNOWN; hard rejections are FAILED.
func (l *Launcher) recordSubmitFailure(ctx context.Context, rec *model.ExperimentRecord, err error) Outcome {
	if backend.IsTransient(err) {
		rec.State = model.StateUnknown
		rec.Message = fmt.Sprintf("submit failed, reset to retry: %v", err)
		rec.UpdatedAt = time.Now().UTC()
		if perr := l.store.Put(ctx, rec); perr != nil {
			l.logger.Error("record write failed after transient submit failure", "id", rec.ID, "error", perr)
		}
		return Outcome{ID: rec.ID, Action: ActionUnknown, State: rec.State, Err: err.Error()}
	}

	rec.State = model.StateFailed
	rec.Message = fmt.Sprintf("submit rejected: %v", err)
	rec.UpdatedAt = time.Now().UTC()
	if perr := l.store.Put(ctx, rec); perr != nil {
		l.logger.Error("record write failed after submit rejection", "id", rec.ID, "error", perr)
	}
	return Outcome{ID: rec.ID, Action: ActionFailed, State: rec.State, Err: err.Error()}
}

func countAction(outcomes []Outcome, action Action) int {
	n := 0
	for _, o := range outcomes {
		if o.Action == action {
			n++
		}
	}
	return n
}
