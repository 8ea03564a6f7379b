// Package status produces point-in-time views over experiment records. All
// reads are side-effect free; the aggregator never mutates launch state.
package status

import (
	"context"
	"log/slog"
	"time"

	"github.com/tesfaldet/haven/internal/store"
	"github.com/tesfaldet/haven/pkg/model"
)

// Row is one experiment's entry in a snapshot.
type Row struct {
	ID        string                `json:"id"`
	State     model.ExperimentState `json:"state"`
	Spec      model.ExperimentSpec  `json:"spec,omitempty"`
	Message   string                `json:"message,omitempty"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Filter narrows a snapshot. Zero value matches everything.
type Filter struct {
	// States keeps only rows in one of the given states.
	States []model.ExperimentState

	// SpecSubset keeps only experiments whose spec contains the given
	// key/value subset, descending into nested maps
	// (e.g. {"lr": 0.01} or {"model": {"name": "mlp"}}).
	SpecSubset map[string]any
}

func (f Filter) matches(row Row) bool {
	if len(f.States) > 0 {
		ok := false
		for _, s := range f.States {
			if row.State == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.SpecSubset) > 0 && !row.Spec.Matches(f.SpecSubset) {
		return false
	}
	return true
}

// Summary counts experiments per state.
type Summary map[model.ExperimentState]int

// Aggregator reads records and builds snapshots.
type Aggregator struct {
	store  store.Store
	logger *slog.Logger
}

// New creates an Aggregator over the given record store.
func New(st store.Store, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:  st,
		logger: logger.With("component", "status"),
	}
}

// Snapshot returns one row per id, in input order, applying the filter. An
// unreadable record degrades only its own row to UNKNOWN; the snapshot always
// covers every requested id that passes the filter.
func (a *Aggregator) Snapshot(ctx context.Context, ids []string, filter Filter) ([]Row, error) {
	rows := make([]Row, 0, len(ids))
	for _, id := range ids {
		row := a.rowFor(ctx, id)
		if filter.matches(row) {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (a *Aggregator) rowFor(ctx context.Context, id string) Row {
	rec, err := a.store.Get(ctx, id)
	if err != nil {
		a.logger.Warn("record read failed, row degraded", "id", id, "error", err)
		return Row{ID: id, State: model.StateUnknown, Message: err.Error()}
	}
	if rec == nil {
		// Never launched (or corrupt record awaiting resubmission).
		return Row{ID: id, State: model.StateNew}
	}
	return Row{
		ID:        rec.ID,
		State:     rec.State,
		Spec:      rec.Spec,
		Message:   rec.Message,
		UpdatedAt: rec.UpdatedAt,
	}
}

// Summarize folds a snapshot into per-state counts.
func Summarize(rows []Row) Summary {
	sum := make(Summary)
	for _, row := range rows {
		sum[row.State]++
	}
	return sum
}
