package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tesfaldet/haven/pkg/model"
)

// RecordFileName is the record file inside each experiment directory, next to
// whatever outputs the training process writes there.
const RecordFileName = "record.json"

// FileStore implements Store with one JSON record file per experiment under a
// shared base directory:
//
//	<base>/<exp_id>/record.json
//
// Writes go through a temp file in the same directory followed by a rename,
// so a crash mid-write never leaves a partial record behind.
type FileStore struct {
	base   string
	logger *slog.Logger
}

// NewFileStore creates a FileStore rooted at base, creating the directory if
// needed.
func NewFileStore(base string, logger *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create savedir base %s: %w", base, err)
	}
	return &FileStore{
		base:   base,
		logger: logger.With("component", "store"),
	}, nil
}

// SaveDir returns the experiment directory for id.
func (s *FileStore) SaveDir(id string) string {
	return filepath.Join(s.base, id)
}

func (s *FileStore) recordPath(id string) string {
	return filepath.Join(s.SaveDir(id), RecordFileName)
}

// Get reads the record for id. Absent and corrupt files both yield (nil, nil);
// corruption is logged, treated as absent, and left for the next Put to
// overwrite.
func (s *FileStore) Get(_ context.Context, id string) (*model.ExperimentRecord, error) {
	path := s.recordPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", id, err)
	}

	var rec model.ExperimentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("corrupt record treated as absent", "id", id, "path", path, "error", err)
		return nil, nil
	}
	if rec.ID == "" {
		s.logger.Warn("record missing id, treated as absent", "path", path)
		return nil, nil
	}
	return &rec, nil
}

// Put writes the record atomically into its experiment directory.
func (s *FileStore) Put(_ context.Context, rec *model.ExperimentRecord) error {
	dir := s.SaveDir(rec.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create savedir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.ID, err)
	}

	// Temp file must live in the same directory as the target: rename is
	// only atomic within a filesystem.
	tmp, err := os.CreateTemp(dir, RecordFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp record for %s: %w", rec.ID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp record for %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp record for %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmpName, s.recordPath(rec.ID)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename record for %s: %w", rec.ID, err)
	}

	s.logger.Debug("record written", "id", rec.ID, "state", rec.State)
	return nil
}

// List reads records for ids in order, skipping absent ones.
func (s *FileStore) List(ctx context.Context, ids []string) ([]*model.ExperimentRecord, error) {
	recs := make([]*model.ExperimentRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// Delete removes the record file for id.
func (s *FileStore) Delete(_ context.Context, id string) error {
	err := os.Remove(s.recordPath(id))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	s.logger.Debug("record deleted", "id", id)
	return nil
}
