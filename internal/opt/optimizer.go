// Package opt holds bounded, seeded, population-based minimizers. Every
// optimizer is deterministic for a given seed and owns its random source,
// so independent runs may execute concurrently.
package opt

import (
	"fmt"
	"math"
)

// Optimizer minimizes eval over the box [lower, upper].
type Optimizer interface {
	// Name identifies the optimizer in results and logs.
	Name() string
	// Run executes the optimization. eval must be safe to call from the
	// goroutine running Run; bounds are one entry per dimension.
	Run(eval func([]float64) float64, lower, upper []float64) (*Result, error)
}

// Result holds the output of one optimizer run. Cost is always eval(X).
type Result struct {
	Optimizer   string    `json:"optimizer" yaml:"optimizer"`
	X           []float64 `json:"x" yaml:"x"`
	Cost        float64   `json:"cost" yaml:"cost"`
	Generations int       `json:"generations" yaml:"generations"`
	Evaluations int       `json:"evaluations" yaml:"evaluations"`
	Converged   bool      `json:"converged" yaml:"converged"`
	Reason      string    `json:"reason" yaml:"reason"`
	// History tracks the best cost as the search progresses. Generational
	// optimizers record one entry per generation, starting with the initial
	// population.
	History []float64 `json:"history,omitempty" yaml:"history,omitempty"`
}

// checkBounds validates a search box.
func checkBounds(lower, upper []float64) error {
	if len(lower) == 0 {
		return fmt.Errorf("search space has no dimensions")
	}
	if len(lower) != len(upper) {
		return fmt.Errorf("bounds length mismatch: %d lower, %d upper", len(lower), len(upper))
	}
	for i := range lower {
		if math.IsNaN(lower[i]) || math.IsNaN(upper[i]) || math.IsInf(lower[i], 0) || math.IsInf(upper[i], 0) {
			return fmt.Errorf("bounds for dimension %d are not finite", i)
		}
		if lower[i] > upper[i] {
			return fmt.Errorf("lower bound %g above upper bound %g in dimension %d", lower[i], upper[i], i)
		}
	}
	return nil
}

// counter wraps an objective and counts its evaluations.
type counter struct {
	eval func([]float64) float64
	n    int
}

func (c *counter) call(x []float64) float64 {
	c.n++
	return c.eval(x)
}
