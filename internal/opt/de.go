package opt

import (
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// NameDE identifies differential evolution results.
const NameDE = "de"

const minDEPopulation = 5

// DEConfig parameterizes DifferentialEvolution.
type DEConfig struct {
	// PopSize is a multiplier: the population holds PopSize * dim members,
	// and never fewer than five.
	PopSize        int     `mapstructure:"popsize" json:"popsize" yaml:"popsize"`
	MaxGenerations int     `mapstructure:"maxiter" json:"maxiter" yaml:"maxiter"`
	Mutation       float64 `mapstructure:"mutation" json:"mutation" yaml:"mutation"`
	Recombination  float64 `mapstructure:"recombination" json:"recombination" yaml:"recombination"`
	// Tol and Atol stop the search once the standard deviation of the
	// population's costs falls to Atol + Tol * |mean cost|.
	Tol               float64          `mapstructure:"tol" json:"tol" yaml:"tol"`
	Atol              float64          `mapstructure:"atol" json:"atol" yaml:"atol"`
	Seed              int64            `mapstructure:"seed" json:"seed" yaml:"seed"`
	Polish            bool             `mapstructure:"polish" json:"polish" yaml:"polish"`
	PolishEvaluations int              `mapstructure:"polish_evaluations" json:"polishEvaluations" yaml:"polishEvaluations"`
	Bounds            BoundPolicy      `mapstructure:"bounds" json:"bounds" yaml:"bounds"`
	Stagnation        StagnationConfig `mapstructure:"stagnation" json:"stagnation" yaml:"stagnation"`
}

// DefaultDEConfig mirrors the planner's reference settings: best1bin with
// popsize 20, 1500 generations, mutation 0.6, seed 12 and polishing.
func DefaultDEConfig() DEConfig {
	return DEConfig{
		PopSize:           20,
		MaxGenerations:    1500,
		Mutation:          0.6,
		Recombination:     0.7,
		Tol:               0.01,
		Atol:              0,
		Seed:              12,
		Polish:            true,
		PolishEvaluations: 2000,
		Bounds:            BoundResample,
		Stagnation:        DisabledStagnation(),
	}
}

// Validate reports the first invalid parameter.
func (c DEConfig) Validate() error {
	if c.PopSize <= 0 {
		return fmt.Errorf("de: popsize must be positive")
	}
	if c.MaxGenerations <= 0 {
		return fmt.Errorf("de: maxiter must be positive")
	}
	if c.Mutation <= 0 || c.Mutation > 2 {
		return fmt.Errorf("de: mutation must be in (0, 2]")
	}
	if c.Recombination < 0 || c.Recombination > 1 {
		return fmt.Errorf("de: recombination must be in [0, 1]")
	}
	if c.Tol < 0 || c.Atol < 0 {
		return fmt.Errorf("de: tolerances cannot be negative")
	}
	if c.Polish && c.PolishEvaluations <= 0 {
		return fmt.Errorf("de: polish_evaluations must be positive when polishing")
	}
	if _, err := ParseBoundPolicy(string(c.Bounds)); err != nil {
		return fmt.Errorf("de: %w", err)
	}
	if c.Stagnation.Enabled && c.Stagnation.Patience <= 0 {
		return fmt.Errorf("de: stagnation patience must be positive")
	}
	return nil
}

// DifferentialEvolution implements the best1bin strategy: each trial vector
// is best + F*(a - b) with binomial crossover against its target, and a
// trial replaces its target in the next generation when it costs no more.
type DifferentialEvolution struct {
	cfg    DEConfig
	logger *zap.Logger
}

// NewDifferentialEvolution creates the optimizer. A nil logger disables logging.
func NewDifferentialEvolution(cfg DEConfig, logger *zap.Logger) *DifferentialEvolution {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DifferentialEvolution{cfg: cfg, logger: logger.With(zap.String("optimizer", NameDE))}
}

// Name implements Optimizer.
func (d *DifferentialEvolution) Name() string { return NameDE }

// Run implements Optimizer.
func (d *DifferentialEvolution) Run(eval func([]float64) float64, lower, upper []float64) (*Result, error) {
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}

	cfg := d.cfg
	policy, _ := ParseBoundPolicy(string(cfg.Bounds))
	rng := rand.New(rand.NewSource(cfg.Seed))
	obj := &counter{eval: eval}
	dim := len(lower)
	n := cfg.PopSize * dim
	if n < minDEPopulation {
		n = minDEPopulation
	}

	pop := make([][]float64, n)
	costs := make([]float64, n)
	for i := range pop {
		pop[i] = randomVector(rng, lower, upper)
	}
	for i := range pop {
		costs[i] = obj.call(pop[i])
	}

	tracker := NewConvergenceTracker(cfg.Stagnation, d.logger)
	best := floats.MinIdx(costs)
	tracker.Update(costs[best])

	result := &Result{Optimizer: NameDE, Reason: "maximum generations reached"}
	next := make([][]float64, n)
	nextCosts := make([]float64, n)

	for gen := 1; gen <= cfg.MaxGenerations; gen++ {
		copy(next, pop)
		copy(nextCosts, costs)

		for i := 0; i < n; i++ {
			r0, r1 := pickTwo(rng, n, i)
			trial := append([]float64(nil), pop[i]...)
			fill := rng.Intn(dim)
			for j := 0; j < dim; j++ {
				if j == fill || rng.Float64() < cfg.Recombination {
					trial[j] = pop[best][j] + cfg.Mutation*(pop[r0][j]-pop[r1][j])
				}
			}
			policy.apply(trial, lower, upper, rng)

			if c := obj.call(trial); c <= costs[i] {
				next[i] = trial
				nextCosts[i] = c
			}
		}

		pop, next = next, pop
		costs, nextCosts = nextCosts, costs
		best = floats.MinIdx(costs)
		result.Generations = gen

		stagnated := tracker.Update(costs[best])
		mean, std := stat.MeanStdDev(costs, nil)
		d.logger.Debug("generation complete",
			zap.Int("generation", gen),
			zap.Float64("best", costs[best]),
			zap.Float64("spread", std),
		)

		if std <= cfg.Atol+cfg.Tol*math.Abs(mean) {
			result.Converged = true
			result.Reason = "population spread below tolerance"
			break
		}
		if stagnated {
			d.logger.Debug("stagnation detected", zap.Int("staleGenerations", tracker.StaleCount()))
			result.Converged = true
			result.Reason = "best cost stagnated"
			break
		}
	}

	x := append([]float64(nil), pop[best]...)
	cost := costs[best]
	if cfg.Polish {
		var evals int
		x, cost, evals = polish(eval, x, cost, lower, upper, cfg.PolishEvaluations, d.logger)
		obj.n += evals
	}

	result.X = x
	result.Cost = cost
	result.Evaluations = obj.n
	result.History = tracker.History()

	d.logger.Info("differential evolution finished",
		zap.Float64("cost", result.Cost),
		zap.Int("generations", result.Generations),
		zap.Int("evaluations", result.Evaluations),
		zap.Bool("converged", result.Converged),
		zap.String("reason", result.Reason),
	)
	return result, nil
}

// pickTwo draws two distinct population indices, both different from exclude.
func pickTwo(rng *rand.Rand, n, exclude int) (int, int) {
	r0 := rng.Intn(n)
	for r0 == exclude {
		r0 = rng.Intn(n)
	}
	r1 := rng.Intn(n)
	for r1 == exclude || r1 == r0 {
		r1 = rng.Intn(n)
	}
	return r0, r1
}
