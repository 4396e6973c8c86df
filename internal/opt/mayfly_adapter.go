package opt

import (
	"fmt"
	"math/rand"

	"github.com/cwbudde/mayfly"
	"go.uber.org/zap"
)

// NameMayfly identifies mayfly results.
const NameMayfly = "mayfly"

// mayfly v0.1.0 rejects populations below 20.
const minMayflyPopulation = 20

// MayflyConfig parameterizes the mayfly adapter.
type MayflyConfig struct {
	MaxIterations int   `mapstructure:"iterations" json:"iterations" yaml:"iterations"`
	PopSize       int   `mapstructure:"population" json:"population" yaml:"population"`
	Seed          int64 `mapstructure:"seed" json:"seed" yaml:"seed"`
}

// DefaultMayflyConfig returns the adapter defaults.
func DefaultMayflyConfig() MayflyConfig {
	return MayflyConfig{MaxIterations: 200, PopSize: 20, Seed: 7}
}

// Validate reports the first invalid parameter.
func (c MayflyConfig) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("mayfly: iterations must be positive")
	}
	if c.PopSize <= 0 {
		return fmt.Errorf("mayfly: population must be positive")
	}
	return nil
}

// MayflyAdapter wraps the external mayfly library. The library only accepts
// one scalar bound for every dimension, so the search runs in the unit cube
// and each point is mapped onto the per-dimension box before evaluation.
type MayflyAdapter struct {
	cfg    MayflyConfig
	logger *zap.Logger
}

// NewMayfly creates a new mayfly optimizer adapter.
func NewMayfly(cfg MayflyConfig, logger *zap.Logger) *MayflyAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MayflyAdapter{cfg: cfg, logger: logger.With(zap.String("optimizer", NameMayfly))}
}

// Name implements Optimizer.
func (m *MayflyAdapter) Name() string { return NameMayfly }

// Run implements Optimizer.
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64) (*Result, error) {
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	if err := m.cfg.Validate(); err != nil {
		return nil, err
	}

	obj := &counter{eval: eval}
	tracker := NewConvergenceTracker(DisabledStagnation(), m.logger)
	scaled := func(u []float64) float64 {
		c := obj.call(fromUnit(u, lower, upper))
		if c < tracker.BestCost() {
			tracker.Update(c)
		}
		return c
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = scaled
	config.ProblemSize = len(lower)
	config.MaxIterations = m.cfg.MaxIterations
	config.NPop = max(m.cfg.PopSize, minMayflyPopulation)
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.cfg.Seed))

	res, err := mayfly.Optimize(config)
	if err != nil {
		return nil, fmt.Errorf("mayfly optimization failed: %w", err)
	}

	x := fromUnit(res.GlobalBest.Position, lower, upper)
	result := &Result{
		Optimizer:   NameMayfly,
		X:           x,
		Cost:        obj.call(x),
		Generations: m.cfg.MaxIterations,
		Reason:      "iteration limit reached",
		History:     tracker.History(),
	}
	result.Evaluations = obj.n

	m.logger.Info("mayfly finished",
		zap.Float64("cost", result.Cost),
		zap.Int("evaluations", result.Evaluations),
	)
	return result, nil
}

// fromUnit maps u in [0,1]^n onto [lower, upper].
func fromUnit(u, lower, upper []float64) []float64 {
	x := make([]float64, len(lower))
	for i := range x {
		x[i] = lower[i] + u[i]*(upper[i]-lower[i])
	}
	return x
}
