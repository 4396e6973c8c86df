package store

import (
	"fmt"
	"time"

	"github.com/cwbudde/blendopt/internal/config"
	"github.com/cwbudde/blendopt/internal/plan"
)

// RunConfig records how a run was configured.
type RunConfig struct {
	Mode      string                 `json:"mode"`
	InputPath string                 `json:"inputPath,omitempty"`
	Optimizer config.OptimizerConfig `json:"optimizer"`
}

// RunRecord is a persisted optimization run.
type RunRecord struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
	Config    RunConfig    `json:"config"`
	Report    *plan.Report `json:"report"`
}

// RunInfo is the metadata of a run, used for listings.
type RunInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Mode      string    `json:"mode"`
	Optimizer string    `json:"optimizer"`
	Cost      float64   `json:"cost"`
	Feasible  bool      `json:"feasible"`
	Tanks     int       `json:"tanks"`
	InputPath string    `json:"inputPath,omitempty"`
}

// NewRunRecord creates a record for a finished run.
func NewRunRecord(id string, cfg RunConfig, report *plan.Report) *RunRecord {
	return &RunRecord{
		ID:        id,
		CreatedAt: time.Now(),
		Config:    cfg,
		Report:    report,
	}
}

// ToInfo extracts the listing metadata.
func (r *RunRecord) ToInfo() RunInfo {
	info := RunInfo{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		Mode:      r.Config.Mode,
		InputPath: r.Config.InputPath,
	}
	if r.Report != nil {
		info.Optimizer = r.Report.Optimizer
		info.Cost = r.Report.Cost
		info.Feasible = r.Report.Feasible
		info.Tanks = len(r.Report.Tanks)
	}
	return info
}

// Validate checks that the record is complete.
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	if r.CreatedAt.IsZero() {
		return &ValidationError{Field: "CreatedAt", Reason: "cannot be zero"}
	}
	if r.Config.Mode == "" {
		return &ValidationError{Field: "Config.Mode", Reason: "cannot be empty"}
	}
	if r.Report == nil {
		return &ValidationError{Field: "Report", Reason: "cannot be nil"}
	}
	if len(r.Report.Tanks) == 0 {
		return &ValidationError{Field: "Report.Tanks", Reason: "cannot be empty"}
	}
	if len(r.Report.Allocation) != len(r.Report.Tanks) {
		return &ValidationError{
			Field:  "Report.Allocation",
			Reason: fmt.Sprintf("length mismatch: got %d volumes for %d tanks", len(r.Report.Allocation), len(r.Report.Tanks)),
		}
	}
	if r.Report.Cost < 0 {
		return &ValidationError{Field: "Report.Cost", Reason: "cannot be negative"}
	}
	return nil
}

// ValidationError represents an incomplete run record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
