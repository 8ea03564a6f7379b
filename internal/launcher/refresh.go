package launcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tesfaldet/haven/internal/backend"
	"github.com/tesfaldet/haven/pkg/model"
)

// Refresh polls the backend for every live experiment in ids and reconciles
// each record with the reported state. Terminal records and records without a
// handle are left untouched. One experiment's poll failure degrades only that
// experiment: its record moves to UNKNOWN and the batch continues.
//
// UNKNOWN is recoverable here: a successful poll re-derives the true state,
// whatever the record last said.
func (l *Launcher) Refresh(ctx context.Context, ids []string) ([]Outcome, error) {
	outcomes := make([]Outcome, len(ids))
	sem := newSemaphore(l.cfg.MaxParallel)

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if !sem.acquire(ctx) {
				outcomes[i] = Outcome{ID: id, Action: ActionUnknown, Err: ctx.Err().Error()}
				return
			}
			defer sem.release()
			outcomes[i] = l.refreshOne(ctx, id)
		}(i, id)
	}
	wg.Wait()

	return outcomes, nil
}

func (l *Launcher) refreshOne(ctx context.Context, id string) Outcome {
	unlock := l.locks.lock(id)
	defer unlock()

	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return Outcome{ID: id, Action: ActionUnknown, Err: err.Error()}
	}
	if rec == nil {
		return Outcome{ID: id, Action: ActionNoop, Err: "no record"}
	}
	if rec.JobHandle == "" {
		if rec.State == model.StateUnknown {
			return Outcome{ID: id, Action: ActionNoop, State: rec.State, Err: "no job handle to poll; reset to retry"}
		}
		return Outcome{ID: id, Action: ActionNoop, State: rec.State}
	}
	// KILLED is terminal but stays on the poll list while it has a handle:
	// the kill was optimistic and the backend may disagree.
	if rec.State.IsTerminal() && rec.State != model.StateKilled {
		return Outcome{ID: id, Action: ActionNoop, State: rec.State}
	}

	state, err := l.backend.Status(ctx, backend.JobHandle(rec.JobHandle))
	switch {
	case backend.IsNotFound(err) && rec.State == model.StateKilled:
		// Expected once the backend garbage-collects a cancelled job.
		return Outcome{ID: id, Action: ActionNoop, State: rec.State}
	case backend.IsNotFound(err):
		// The record says the job exists but the backend has no memory of
		// the handle (state wiped, handle expired). Do not guess FAILED or
		// NEW; UNKNOWN until a poll succeeds or the user resets.
		rec.State = model.StateUnknown
		rec.Message = "backend does not know job handle " + rec.JobHandle
		rec.UpdatedAt = time.Now().UTC()
	case err != nil && rec.State == model.StateKilled:
		return Outcome{ID: id, Action: ActionNoop, State: rec.State, Err: err.Error()}
	case err != nil:
		rec.State = model.StateUnknown
		rec.Message = fmt.Sprintf("poll failed: %v", err)
		rec.UpdatedAt = time.Now().UTC()
	case rec.State == model.StateKilled && state != model.StateKilled:
		// The kill never took; the record follows the backend's truth.
		rec.State = state
		rec.Message = "kill was not honored by the backend"
		rec.UpdatedAt = time.Now().UTC()
	default:
		if terr := rec.Transition(state); terr != nil {
			return Outcome{ID: id, Action: ActionNoop, State: rec.State, Err: terr.Error()}
		}
		rec.Message = ""
	}

	if perr := l.store.Put(ctx, rec); perr != nil {
		return Outcome{ID: id, Action: ActionUnknown, State: rec.State, Err: perr.Error()}
	}
	if err != nil {
		return Outcome{ID: id, Action: ActionUnknown, State: rec.State, Err: err.Error()}
	}
	return Outcome{ID: id, Action: ActionRefreshed, State: rec.State}
}
