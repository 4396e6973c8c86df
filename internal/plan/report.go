package plan

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/blendopt/internal/blend"
)

// Report is the output document of a run: the input echoed back with the
// optimized blend and how it was found.
type Report struct {
	Tanks          []blend.Tank         `json:"tanks" yaml:"tanks"`
	TargetBlend    blend.TargetBlend    `json:"targetBlend" yaml:"targetBlend"`
	OptimizedBlend blend.AggregateBlend `json:"optimizedBlend" yaml:"optimizedBlend"`
	Allocation     blend.Allocation     `json:"allocation" yaml:"allocation"`
	Cost           float64              `json:"cost" yaml:"cost"`
	// CostDisplay is Cost rounded to two decimal places.
	CostDisplay    string    `json:"costDisplay" yaml:"costDisplay"`
	Feasible       bool      `json:"feasible" yaml:"feasible"`
	Mode           Mode      `json:"mode" yaml:"mode"`
	Optimizer      string    `json:"optimizer" yaml:"optimizer"`
	Outcomes       []Outcome `json:"outcomes" yaml:"outcomes"`
	ElapsedSeconds float64   `json:"elapsedSeconds" yaml:"elapsedSeconds"`
}

// NewReport assembles the report for a finished run.
func NewReport(in blend.Input, res *Result) *Report {
	return &Report{
		Tanks:          in.Tanks,
		TargetBlend:    in.TargetBlend,
		OptimizedBlend: res.Blend,
		Allocation:     res.Allocation,
		Cost:           res.MinCost,
		CostDisplay:    FormatCost(res.MinCost),
		Feasible:       res.Feasible,
		Mode:           res.Mode,
		Optimizer:      res.Winner,
		Outcomes:       res.Outcomes,
		ElapsedSeconds: res.Elapsed.Seconds(),
	}
}

// FormatCost renders a cost with exactly two decimals.
func FormatCost(cost float64) string {
	return decimal.NewFromFloat(cost).StringFixed(2)
}

// Write encodes the report as "json" (the default) or "yaml".
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}
