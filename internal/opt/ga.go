package opt

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

// NameGA identifies genetic algorithm results.
const NameGA = "ga"

// MutationPolicy selects how a gene chosen for mutation changes.
type MutationPolicy string

const (
	// MutationGaussian adds N(0, (scale*(upper-lower))^2) noise and clips
	// the gene back into its bounds.
	MutationGaussian MutationPolicy = "gaussian"
	// MutationFlip treats the gene as a boolean: zero becomes one and any
	// other value becomes zero.
	MutationFlip MutationPolicy = "flip"
	// MutationNone leaves genes untouched.
	MutationNone MutationPolicy = "none"
)

// ParseMutationPolicy validates a policy name. Empty means MutationGaussian.
func ParseMutationPolicy(s string) (MutationPolicy, error) {
	switch p := MutationPolicy(s); p {
	case "":
		return MutationGaussian, nil
	case MutationGaussian, MutationFlip, MutationNone:
		return p, nil
	default:
		return "", fmt.Errorf("unknown mutation policy: %s", s)
	}
}

// GAConfig parameterizes GeneticAlgorithm.
type GAConfig struct {
	PopulationSize   int            `mapstructure:"population" json:"population" yaml:"population"`
	Generations      int            `mapstructure:"generations" json:"generations" yaml:"generations"`
	CrossoverProb    float64        `mapstructure:"cxpb" json:"cxpb" yaml:"cxpb"`
	MutationProb     float64        `mapstructure:"mutpb" json:"mutpb" yaml:"mutpb"`
	GeneMutationProb float64        `mapstructure:"indpb" json:"indpb" yaml:"indpb"`
	TournamentSize   int            `mapstructure:"tournament" json:"tournament" yaml:"tournament"`
	Seed             int64          `mapstructure:"seed" json:"seed" yaml:"seed"`
	Mutation         MutationPolicy `mapstructure:"mutation" json:"mutation" yaml:"mutation"`
	MutationScale    float64        `mapstructure:"mutation_scale" json:"mutationScale" yaml:"mutationScale"`
}

// DefaultGAConfig mirrors the planner's reference settings.
func DefaultGAConfig() GAConfig {
	return GAConfig{
		PopulationSize:   300,
		Generations:      10,
		CrossoverProb:    0.5,
		MutationProb:     0.2,
		GeneMutationProb: 0.08,
		TournamentSize:   3,
		Seed:             64,
		Mutation:         MutationGaussian,
		MutationScale:    0.1,
	}
}

// Validate reports the first invalid parameter.
func (c GAConfig) Validate() error {
	if c.PopulationSize < 2 {
		return fmt.Errorf("ga: population must be at least 2")
	}
	if c.Generations < 0 {
		return fmt.Errorf("ga: generations cannot be negative")
	}
	for name, p := range map[string]float64{"cxpb": c.CrossoverProb, "mutpb": c.MutationProb, "indpb": c.GeneMutationProb} {
		if p < 0 || p > 1 {
			return fmt.Errorf("ga: %s must be in [0, 1]", name)
		}
	}
	if c.TournamentSize < 1 {
		return fmt.Errorf("ga: tournament must be positive")
	}
	if _, err := ParseMutationPolicy(string(c.Mutation)); err != nil {
		return fmt.Errorf("ga: %w", err)
	}
	if c.MutationScale < 0 {
		return fmt.Errorf("ga: mutation_scale cannot be negative")
	}
	return nil
}

// Individual is a candidate allocation and its cost.
type Individual struct {
	Genes   []float64
	Fitness float64
	valid   bool
}

func (ind Individual) clone() Individual {
	return Individual{
		Genes:   append([]float64(nil), ind.Genes...),
		Fitness: ind.Fitness,
		valid:   ind.valid,
	}
}

// HallOfFame keeps the best individual that ever lived.
type HallOfFame struct {
	best  Individual
	found bool
}

// Update considers every evaluated member of pop.
func (h *HallOfFame) Update(pop []Individual) {
	for _, ind := range pop {
		if !ind.valid {
			continue
		}
		if !h.found || ind.Fitness < h.best.Fitness {
			h.best = ind.clone()
			h.found = true
		}
	}
}

// Best returns the best individual and whether one was recorded.
func (h *HallOfFame) Best() (Individual, bool) {
	return h.best.clone(), h.found
}

// GeneticAlgorithm is a generational GA: tournament selection, two-point
// crossover, per-gene mutation and a size-one hall of fame.
type GeneticAlgorithm struct {
	cfg    GAConfig
	logger *zap.Logger
}

// NewGeneticAlgorithm creates the optimizer. A nil logger disables logging.
func NewGeneticAlgorithm(cfg GAConfig, logger *zap.Logger) *GeneticAlgorithm {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneticAlgorithm{cfg: cfg, logger: logger.With(zap.String("optimizer", NameGA))}
}

// Name implements Optimizer.
func (g *GeneticAlgorithm) Name() string { return NameGA }

// Run implements Optimizer. The result is the hall-of-fame individual, so its
// cost is reproducible from its genes.
func (g *GeneticAlgorithm) Run(eval func([]float64) float64, lower, upper []float64) (*Result, error) {
	if err := checkBounds(lower, upper); err != nil {
		return nil, err
	}
	if err := g.cfg.Validate(); err != nil {
		return nil, err
	}

	cfg := g.cfg
	policy, _ := ParseMutationPolicy(string(cfg.Mutation))
	rng := rand.New(rand.NewSource(cfg.Seed))
	obj := &counter{eval: eval}
	tracker := NewConvergenceTracker(DisabledStagnation(), g.logger)
	hof := &HallOfFame{}

	pop := make([]Individual, cfg.PopulationSize)
	for i := range pop {
		pop[i] = Individual{Genes: randomVector(rng, lower, upper)}
	}
	evaluate(obj, pop)
	hof.Update(pop)
	tracker.Update(minFitness(pop))

	for gen := 1; gen <= cfg.Generations; gen++ {
		offspring := selectTournament(rng, pop, len(pop), cfg.TournamentSize)

		for i := 1; i < len(offspring); i += 2 {
			if rng.Float64() < cfg.CrossoverProb {
				crossTwoPoint(rng, offspring[i-1].Genes, offspring[i].Genes)
				offspring[i-1].valid = false
				offspring[i].valid = false
			}
		}
		for i := range offspring {
			if rng.Float64() < cfg.MutationProb {
				g.mutate(rng, policy, offspring[i].Genes, lower, upper)
				offspring[i].valid = false
			}
		}

		evaluate(obj, offspring)
		hof.Update(offspring)
		pop = offspring

		genMin := minFitness(pop)
		tracker.Update(genMin)
		g.logger.Debug("generation complete", zap.Int("generation", gen), zap.Float64("min", genMin))
	}

	best, _ := hof.Best()
	result := &Result{
		Optimizer:   NameGA,
		X:           best.Genes,
		Cost:        best.Fitness,
		Generations: cfg.Generations,
		Evaluations: obj.n,
		Converged:   false,
		Reason:      "generation limit reached",
		History:     tracker.History(),
	}

	g.logger.Info("genetic algorithm finished",
		zap.Float64("cost", result.Cost),
		zap.Float64("finalPopulationMin", minFitness(pop)),
		zap.Int("generations", result.Generations),
		zap.Int("evaluations", result.Evaluations),
	)
	return result, nil
}

func (g *GeneticAlgorithm) mutate(rng *rand.Rand, policy MutationPolicy, genes, lower, upper []float64) {
	for i := range genes {
		if rng.Float64() >= g.cfg.GeneMutationProb {
			continue
		}
		switch policy {
		case MutationGaussian:
			sigma := g.cfg.MutationScale * (upper[i] - lower[i])
			genes[i] = clamp(genes[i]+rng.NormFloat64()*sigma, lower[i], upper[i])
		case MutationFlip:
			if genes[i] == 0 {
				genes[i] = 1
			} else {
				genes[i] = 0
			}
		}
	}
}

func evaluate(obj *counter, pop []Individual) {
	for i := range pop {
		if pop[i].valid {
			continue
		}
		pop[i].Fitness = obj.call(pop[i].Genes)
		pop[i].valid = true
	}
}

func minFitness(pop []Individual) float64 {
	m := pop[0].Fitness
	for _, ind := range pop[1:] {
		if ind.Fitness < m {
			m = ind.Fitness
		}
	}
	return m
}

// selectTournament picks k individuals, each the fittest of size aspirants
// drawn with replacement. Selected individuals are independent copies.
func selectTournament(rng *rand.Rand, pop []Individual, k, size int) []Individual {
	chosen := make([]Individual, k)
	for i := range chosen {
		winner := pop[rng.Intn(len(pop))]
		for j := 1; j < size; j++ {
			a := pop[rng.Intn(len(pop))]
			if a.Fitness < winner.Fitness {
				winner = a
			}
		}
		chosen[i] = winner.clone()
	}
	return chosen
}

// crossTwoPoint swaps the segment between two random cut points. Vectors
// shorter than two genes are left unchanged.
func crossTwoPoint(rng *rand.Rand, a, b []float64) {
	size := len(a)
	if len(b) < size {
		size = len(b)
	}
	if size < 2 {
		return
	}
	cx1 := 1 + rng.Intn(size)
	cx2 := 1 + rng.Intn(size-1)
	if cx2 >= cx1 {
		cx2++
	} else {
		cx1, cx2 = cx2, cx1
	}
	for i := cx1; i < cx2; i++ {
		a[i], b[i] = b[i], a[i]
	}
}
