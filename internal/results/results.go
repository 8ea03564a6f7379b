// Package results loads each experiment's persisted metric output into rows
// for aggregation. It is read-only: the training process owns the metric
// files, and launch state is never touched here.
package results

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tesfaldet/haven/internal/store"
	"github.com/tesfaldet/haven/pkg/model"
)

// ScoreFileName is the metric file the training process writes into its save
// directory: a JSON array of metric maps, one entry per recorded step/epoch.
const ScoreFileName = "score_list.json"

// Reader builds result rows from experiment save directories.
type Reader struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a Reader over the given record store.
func New(st store.Store, logger *slog.Logger) *Reader {
	return &Reader{
		store:  st,
		logger: logger.With("component", "results"),
	}
}

// Read returns one row per id, in input order, rebuilt from disk on every
// call. An experiment with no readable score file yields a row with the
// Missing marker rather than an error; aggregation over many experiments
// never fails because one is incomplete.
func (r *Reader) Read(ctx context.Context, ids []string) ([]model.ResultRow, error) {
	rows := make([]model.ResultRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, r.readOne(ctx, id))
	}
	return rows, nil
}

func (r *Reader) readOne(ctx context.Context, id string) model.ResultRow {
	row := model.ResultRow{ID: id}

	rec, err := r.store.Get(ctx, id)
	if err != nil {
		row.Missing = true
		row.Note = "record unreadable: " + err.Error()
		return row
	}
	if rec == nil {
		row.Missing = true
		row.Note = "no record"
		return row
	}
	row.Spec = rec.Spec
	row.State = rec.State

	path := filepath.Join(rec.SaveDir, ScoreFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		row.Missing = true
		row.Note = "result missing"
		if rec.State == model.StateSucceeded {
			// Data-quality problem worth surfacing: the run claims success
			// but left no scores behind.
			r.logger.Warn("succeeded experiment has no score file", "id", id, "path", path)
		}
		return row
	}
	if err != nil {
		row.Missing = true
		row.Note = "result unreadable: " + err.Error()
		return row
	}

	var metrics []map[string]any
	if err := json.Unmarshal(data, &metrics); err != nil {
		row.Missing = true
		row.Note = "result undecodable: " + err.Error()
		return row
	}
	row.Metrics = metrics
	return row
}
