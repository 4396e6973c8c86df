package opt

import (
	"math"

	"go.uber.org/zap"
)

// StagnationConfig stops a search whose best cost has not improved enough
// for a number of generations.
type StagnationConfig struct {
	// Enabled controls whether stagnation detection is active.
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`

	// Patience is the number of generations with no significant improvement
	// before stopping.
	Patience int `mapstructure:"patience" json:"patience" yaml:"patience"`

	// Threshold is the minimum relative improvement that counts as progress:
	// (lastSignificant - cost) / |lastSignificant|.
	Threshold float64 `mapstructure:"threshold" json:"threshold" yaml:"threshold"`
}

// DisabledStagnation never stops a search early.
func DisabledStagnation() StagnationConfig {
	return StagnationConfig{Enabled: false}
}

// ConvergenceTracker records the best cost per generation and detects
// stagnation.
type ConvergenceTracker struct {
	config          StagnationConfig
	logger          *zap.Logger
	costHistory     []float64
	bestCost        float64
	lastSignificant float64
	staleCount      int
}

// NewConvergenceTracker creates a tracker. A nil logger disables logging.
func NewConvergenceTracker(config StagnationConfig, logger *zap.Logger) *ConvergenceTracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConvergenceTracker{
		config:          config,
		logger:          logger,
		bestCost:        math.Inf(1),
		lastSignificant: math.Inf(1),
	}
}

// Update records a generation's best cost and returns true once the search
// has stagnated. History is recorded even when detection is disabled.
func (c *ConvergenceTracker) Update(cost float64) bool {
	c.costHistory = append(c.costHistory, cost)
	if cost < c.bestCost {
		c.bestCost = cost
	}

	if !c.config.Enabled {
		return false
	}

	if len(c.costHistory) == 1 {
		c.lastSignificant = cost
		return false
	}

	var relativeImprovement float64
	switch {
	case c.lastSignificant == cost:
		relativeImprovement = 0
	case c.lastSignificant == 0:
		relativeImprovement = math.Inf(1)
	default:
		relativeImprovement = (c.lastSignificant - cost) / math.Abs(c.lastSignificant)
	}

	if relativeImprovement >= c.config.Threshold && relativeImprovement > 0 {
		c.lastSignificant = cost
		c.staleCount = 0
		return false
	}

	c.staleCount++
	c.logger.Debug("no significant improvement",
		zap.Float64("cost", cost),
		zap.Float64("lastSignificant", c.lastSignificant),
		zap.Int("staleCount", c.staleCount),
	)
	return c.staleCount >= c.config.Patience
}

// BestCost returns the best cost seen so far.
func (c *ConvergenceTracker) BestCost() float64 {
	return c.bestCost
}

// History returns a copy of the per-generation costs.
func (c *ConvergenceTracker) History() []float64 {
	return append([]float64{}, c.costHistory...)
}

// StaleCount returns the number of generations without significant improvement.
func (c *ConvergenceTracker) StaleCount() int {
	return c.staleCount
}
