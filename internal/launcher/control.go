package launcher

import (
	"context"
	"time"

	"github.com/tesfaldet/haven/internal/backend"
	"github.com/tesfaldet/haven/pkg/model"
)

// Kill requests cancellation of every non-terminal experiment in ids. The
// record is optimistically marked KILLED and the backend call is best-effort;
// if the backend disagrees, the next Refresh corrects the record.
func (l *Launcher) Kill(ctx context.Context, ids []string) []Outcome {
	outcomes := make([]Outcome, len(ids))
	for i, id := range ids {
		outcomes[i] = l.killOne(ctx, id)
	}
	return outcomes
}

func (l *Launcher) killOne(ctx context.Context, id string) Outcome {
	unlock := l.locks.lock(id)
	defer unlock()

	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return Outcome{ID: id, Action: ActionUnknown, Err: err.Error()}
	}
	if rec == nil {
		return Outcome{ID: id, Action: ActionNoop, Err: "no record"}
	}
	if rec.State.IsTerminal() || rec.State == model.StateNew {
		return Outcome{ID: id, Action: ActionNoop, State: rec.State}
	}

	handle := rec.JobHandle
	rec.State = model.StateKilled
	rec.UpdatedAt = time.Now().UTC()
	if perr := l.store.Put(ctx, rec); perr != nil {
		return Outcome{ID: id, Action: ActionUnknown, Err: perr.Error()}
	}

	if handle != "" {
		if kerr := l.backend.Kill(ctx, backend.JobHandle(handle)); kerr != nil && !backend.IsNotFound(kerr) {
			l.logger.Warn("kill forward failed, next poll reconciles", "id", id, "error", kerr)
			return Outcome{ID: id, Action: ActionKilled, State: rec.State, Err: kerr.Error()}
		}
	}
	return Outcome{ID: id, Action: ActionKilled, State: rec.State}
}

// Reset returns each experiment's record to NEW, clearing its job handle. Any
// still-live job is killed best-effort first so the orchestrator does not
// keep training an experiment the records no longer track.
func (l *Launcher) Reset(ctx context.Context, ids []string) []Outcome {
	outcomes := make([]Outcome, len(ids))
	for i, id := range ids {
		outcomes[i] = l.resetOne(ctx, id)
	}
	return outcomes
}

func (l *Launcher) resetOne(ctx context.Context, id string) Outcome {
	unlock := l.locks.lock(id)
	defer unlock()

	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return Outcome{ID: id, Action: ActionUnknown, Err: err.Error()}
	}
	if rec == nil {
		return Outcome{ID: id, Action: ActionNoop, Err: "no record"}
	}

	if rec.State.IsLive() && rec.JobHandle != "" {
		if kerr := l.backend.Kill(ctx, backend.JobHandle(rec.JobHandle)); kerr != nil && !backend.IsNotFound(kerr) {
			l.logger.Warn("kill before reset failed", "id", id, "error", kerr)
		}
	}

	rec.Reset()
	if perr := l.store.Put(ctx, rec); perr != nil {
		return Outcome{ID: id, Action: ActionUnknown, Err: perr.Error()}
	}
	return Outcome{ID: id, Action: ActionReset, State: rec.State}
}

// Logs fetches the backend log text for one experiment.
func (l *Launcher) Logs(ctx context.Context, id string) (string, error) {
	rec, err := l.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", model.NewValidationError("no record for experiment %s", id)
	}
	if rec.JobHandle == "" {
		return "", model.NewValidationError("experiment %s has no job handle", id)
	}
	return l.backend.Logs(ctx, backend.JobHandle(rec.JobHandle))
}
