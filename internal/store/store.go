// Package store persists finished optimization runs and their
// per-generation cost traces.
package store

// Store defines the interface for run persistence.
// Implementations must be safe for concurrent use.
//
// Error handling conventions:
//   - Return ErrNotFound if the run doesn't exist (for Load/Delete)
//   - Return *ValidationError when a record is incomplete
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun atomically saves a run record. An existing record with the
	// same ID is overwritten.
	SaveRun(rec *RunRecord) error

	// LoadRun retrieves the record for the given run.
	// Returns ErrNotFound if no record exists for runID.
	LoadRun(runID string) (*RunRecord, error)

	// ListRuns returns metadata for all stored runs.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes the record and every artifact of a run, including
	// its trace.
	DeleteRun(runID string) error
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	RunID string
}

func (e *NotFoundError) Error() string {
	if e.RunID != "" {
		return "run not found: " + e.RunID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
