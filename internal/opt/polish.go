package opt

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"
)

// polish runs a derivative-free Nelder-Mead search from x0 inside the box.
// The refined point is returned only when it evaluates strictly below cost0;
// otherwise x0 and cost0 come back unchanged. Vertices outside the box cost
// +Inf without being evaluated.
func polish(eval func([]float64) float64, x0 []float64, cost0 float64, lower, upper []float64, maxEvals int, logger *zap.Logger) ([]float64, float64, int) {
	evals := 0
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			if !inside(x, lower, upper) {
				return math.Inf(1)
			}
			evals++
			return eval(x)
		},
	}
	settings := &optimize.Settings{FuncEvaluations: maxEvals}

	start := append([]float64(nil), x0...)
	res, err := optimize.Minimize(problem, start, settings, &optimize.NelderMead{})
	if err != nil {
		logger.Debug("polish stopped", zap.Error(err))
	}
	if res == nil || len(res.X) != len(x0) {
		return x0, cost0, evals
	}
	if !inside(res.X, lower, upper) {
		return x0, cost0, evals
	}

	x := append([]float64(nil), res.X...)
	cost := eval(x)
	evals++
	if cost < cost0 {
		logger.Debug("polish improved result", zap.Float64("from", cost0), zap.Float64("to", cost))
		return x, cost, evals
	}
	return x0, cost0, evals
}

func inside(x, lower, upper []float64) bool {
	for i, v := range x {
		if !(v >= lower[i] && v <= upper[i]) {
			return false
		}
	}
	return true
}
