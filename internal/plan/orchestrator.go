// Package plan runs the blend optimizers for a problem, reconciles their
// results and derives the reported blend from the winning allocation.
package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/cwbudde/blendopt/internal/blend"
	"github.com/cwbudde/blendopt/internal/config"
	"github.com/cwbudde/blendopt/internal/opt"
)

// Outcome is what a single optimizer produced.
type Outcome struct {
	Optimizer      string           `json:"optimizer" yaml:"optimizer"`
	Cost           float64          `json:"cost" yaml:"cost"`
	Allocation     blend.Allocation `json:"allocation" yaml:"allocation"`
	Feasible       bool             `json:"feasible" yaml:"feasible"`
	Generations    int              `json:"generations" yaml:"generations"`
	Evaluations    int              `json:"evaluations" yaml:"evaluations"`
	Converged      bool             `json:"converged" yaml:"converged"`
	Reason         string           `json:"reason" yaml:"reason"`
	ElapsedSeconds float64          `json:"elapsedSeconds" yaml:"elapsedSeconds"`
	History        []float64        `json:"-" yaml:"-"`
}

// Result is the reconciled answer of a run.
type Result struct {
	Mode       Mode
	Winner     string
	MinCost    float64
	Allocation blend.Allocation
	// Blend is recomputed from Allocation, never taken from an optimizer.
	Blend         blend.AggregateBlend
	Intermediates []blend.IntermediateTankValues
	// Feasible is false when MinCost is the penalty, i.e. no allocation met
	// the target.
	Feasible bool
	Outcomes []Outcome
	Elapsed  time.Duration
}

// Orchestrator runs optimizers according to a Mode.
type Orchestrator struct {
	cfg    config.OptimizerConfig
	logger *zap.Logger
}

// New creates an orchestrator. A nil logger disables logging.
func New(cfg config.OptimizerConfig, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, logger: logger}
}

func (o *Orchestrator) newOptimizer(name string) opt.Optimizer {
	switch name {
	case opt.NameDE:
		return opt.NewDifferentialEvolution(o.cfg.DE, o.logger)
	case opt.NameGA:
		return opt.NewGeneticAlgorithm(o.cfg.GA, o.logger)
	default:
		return opt.NewMayfly(o.cfg.Mayfly, o.logger)
	}
}

// Optimize finds the cheapest allocation for in. The optimizers have no
// cancellation points; ctx is checked before they start and after they
// finish.
func (o *Orchestrator) Optimize(ctx context.Context, in blend.Input, mode Mode) (*Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	objective := blend.NewObjective(in.Tanks, in.TargetBlend)
	lower, upper := objective.Bounds()
	names := mode.optimizers()

	o.logger.Info("starting optimization",
		zap.String("mode", string(mode)),
		zap.Int("tanks", len(in.Tanks)),
		zap.Strings("optimizers", names),
	)

	outcomes := make([]Outcome, len(names))
	errs := make([]error, len(names))
	run := func(i int) {
		outcomes[i], errs[i] = o.runOne(names[i], objective, lower, upper)
	}

	if o.cfg.Parallel && len(names) > 1 {
		p := pool.New().WithMaxGoroutines(len(names))
		for i := range names {
			i := i
			p.Go(func() { run(i) })
		}
		p.Wait()
	} else {
		for i := range names {
			run(i)
		}
	}

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%s optimizer: %w", names[i], err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	winner := reconcile(outcomes)
	b, inter, err := blend.Compute(in.Tanks, winner.Allocation)
	if err != nil {
		return nil, fmt.Errorf("recompute winning blend: %w", err)
	}

	res := &Result{
		Mode:          mode,
		Winner:        winner.Optimizer,
		MinCost:       winner.Cost,
		Allocation:    winner.Allocation,
		Blend:         b,
		Intermediates: inter,
		Feasible:      !blend.Infeasible(winner.Cost),
		Outcomes:      outcomes,
		Elapsed:       time.Since(start),
	}

	o.logger.Info("optimization complete",
		zap.String("winner", res.Winner),
		zap.Float64("cost", res.MinCost),
		zap.Bool("feasible", res.Feasible),
		zap.Duration("elapsed", res.Elapsed),
	)
	if !res.Feasible {
		o.logger.Warn("no allocation satisfies the target blend", zap.Float64("cost", res.MinCost))
	}
	return res, nil
}

func (o *Orchestrator) runOne(name string, objective *blend.Objective, lower, upper []float64) (Outcome, error) {
	started := time.Now()
	r, err := o.newOptimizer(name).Run(objective.Evaluate, lower, upper)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Optimizer:      r.Optimizer,
		Cost:           r.Cost,
		Allocation:     blend.Allocation(r.X),
		Feasible:       !blend.Infeasible(r.Cost),
		Generations:    r.Generations,
		Evaluations:    r.Evaluations,
		Converged:      r.Converged,
		Reason:         r.Reason,
		ElapsedSeconds: time.Since(started).Seconds(),
		History:        r.History,
	}, nil
}

// reconcile picks the outcome with the strictly lowest cost. Outcomes are in
// preference order, so ties go to the earlier one.
func reconcile(outcomes []Outcome) Outcome {
	best := outcomes[0]
	for _, oc := range outcomes[1:] {
		if oc.Cost < best.Cost {
			best = oc
		}
	}
	return best
}
