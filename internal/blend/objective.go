package blend

// PenaltyCost replaces the cost of any infeasible allocation. A search that
// ends at or above it found no feasible blend.
const PenaltyCost = 10_000_000

// Objective is the penalized cost minimized by the optimizers. It is safe
// for concurrent use because it never mutates the tanks or target.
type Objective struct {
	tanks  []Tank
	target TargetBlend
}

// NewObjective binds the objective to a tank set and target.
func NewObjective(tanks []Tank, target TargetBlend) *Objective {
	return &Objective{tanks: tanks, target: target}
}

// Evaluate returns the blend cost per unit mass, or PenaltyCost when any
// constraint is violated or the blend cannot be computed.
func (o *Objective) Evaluate(alloc []float64) float64 {
	cost, _ := o.Explain(alloc)
	return cost
}

// Explain is Evaluate plus the verdict that produced the cost.
func (o *Objective) Explain(alloc []float64) (float64, Verdict) {
	b, _, err := Compute(o.tanks, alloc)
	if err != nil {
		return PenaltyCost, fail("blend")
	}
	v := Validate(b, o.target, o.tanks, alloc)
	if !v.Pass {
		return PenaltyCost, v
	}
	return b.UnitCost(), v
}

// Bounds returns the per-tank volume bounds.
func (o *Objective) Bounds() (lower, upper []float64) {
	return Bounds(o.tanks)
}

// Infeasible reports whether a cost signals that no feasible blend was found.
func Infeasible(cost float64) bool {
	return cost >= PenaltyCost
}
