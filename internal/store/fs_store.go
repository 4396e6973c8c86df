package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cwbudde/blendopt/internal/plan"
)

// FSStore implements Store on the filesystem. Runs live in
// <baseDir>/runs/<runID>/ as run.json plus trace.jsonl.
//
// Writes go through a temp file and rename, so no locks are needed.
type FSStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewFSStore creates a filesystem store, creating baseDir if needed.
// A nil logger disables logging.
func NewFSStore(baseDir string, logger *zap.Logger) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FSStore{baseDir: baseDir, logger: logger}, nil
}

// BaseDir returns the store's root directory.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// RunDir returns the directory holding a run's artifacts.
func (fs *FSStore) RunDir(runID string) string {
	return runDir(fs.baseDir, runID)
}

func runDir(baseDir, runID string) string {
	return filepath.Join(baseDir, "runs", runID)
}

func (fs *FSStore) recordPath(runID string) string {
	return filepath.Join(fs.RunDir(runID), "run.json")
}

// SaveRun validates and atomically saves rec.
func (fs *FSStore) SaveRun(rec *RunRecord) error {
	if rec == nil {
		return fmt.Errorf("run record cannot be nil")
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	dir := fs.RunDir(rec.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run: %w", err)
	}

	finalPath := fs.recordPath(rec.ID)
	tempPath := finalPath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp run file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename run file: %w", err)
	}

	fs.logger.Debug("run saved", zap.String("runID", rec.ID), zap.String("path", finalPath))
	return nil
}

// LoadRun reads the record of a run.
func (fs *FSStore) LoadRun(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}

	path := fs.recordPath(runID)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{RunID: runID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to deserialize run: %w", err)
	}

	fs.logger.Debug("run loaded", zap.String("runID", runID))
	return &rec, nil
}

// ListRuns returns metadata for every readable run. Corrupt records are
// skipped with a warning.
func (fs *FSStore) ListRuns() ([]RunInfo, error) {
	runsDir := filepath.Join(fs.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []RunInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	infos := []RunInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		runID := entry.Name()
		if _, err := os.Stat(fs.recordPath(runID)); os.IsNotExist(err) {
			continue
		}

		rec, err := fs.LoadRun(runID)
		if err != nil {
			fs.logger.Warn("failed to load run for listing", zap.String("runID", runID), zap.Error(err))
			continue
		}
		infos = append(infos, rec.ToInfo())
	}

	fs.logger.Debug("listed runs", zap.Int("count", len(infos)))
	return infos, nil
}

// DeleteRun removes a run's directory.
func (fs *FSStore) DeleteRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	dir := fs.RunDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{RunID: runID}
	} else if err != nil {
		return fmt.Errorf("failed to stat run directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove run directory: %w", err)
	}

	fs.logger.Debug("run deleted", zap.String("runID", runID))
	return nil
}

// SaveTrace writes the per-generation cost history of every outcome to the
// run's trace, replacing any previous trace.
func (fs *FSStore) SaveTrace(runID string, outcomes []plan.Outcome) error {
	tw, err := NewTraceWriter(fs.baseDir, runID, false)
	if err != nil {
		return err
	}

	for _, oc := range outcomes {
		for gen, cost := range oc.History {
			if err := tw.Write(TraceEntry{Optimizer: oc.Optimizer, Generation: gen, Cost: cost}); err != nil {
				tw.Close()
				return err
			}
		}
	}
	return tw.Close()
}
