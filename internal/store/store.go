// Package store persists experiment records on a shared filesystem, one
// record file per experiment directory.
package store

import (
	"context"

	"github.com/tesfaldet/haven/pkg/model"
)

// Store defines the persistence layer for experiment records.
//
// Concurrent writers to the same id are serialized by the launch coordinator,
// never by the store; the store only guarantees that a single write is atomic,
// so a reader observes either the previous record or the new one, never a
// partial file.
type Store interface {
	// Get returns the record for id, or (nil, nil) when absent. A corrupt
	// record file is reported as absent so the submission policy can
	// re-create it.
	Get(ctx context.Context, id string) (*model.ExperimentRecord, error)

	// Put writes the record durably (write-temp-then-rename).
	Put(ctx context.Context, rec *model.ExperimentRecord) error

	// List returns the records for the given ids in the same order, skipping
	// ids with no record.
	List(ctx context.Context, ids []string) ([]*model.ExperimentRecord, error)

	// Delete removes the record for id. Experiment outputs are left alone;
	// only the record file goes. Deleting an absent record is a no-op.
	Delete(ctx context.Context, id string) error

	// SaveDir returns the save directory for the given experiment id.
	SaveDir(id string) string
}
