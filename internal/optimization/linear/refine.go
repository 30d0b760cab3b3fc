package linear

import (
	"context"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/tpitkanen/potku/internal/recoil"
)

// refine polishes the best sweep window with a derivative-free local
// search over (center, width, height). Returns nil without error when
// refinement is disabled or does not improve on the sweep.
func (o *Optimizer) refine(ctx context.Context, x1, x2, sweepValue float64) (*recoil.Solution, error) {
	if o.cfg.MaxRefineEvals <= 0 {
		return nil, nil
	}

	var evalErr error
	problem := optimize.Problem{
		Func: func(p []float64) float64 {
			if evalErr != nil || ctx.Err() != nil {
				return math.Inf(1)
			}
			sol, ok := windowSolution(p[0], p[1], p[2])
			if !ok {
				return math.Inf(1)
			}
			value, err := o.EvaluateSolution(ctx, sol)
			if err != nil {
				evalErr = err
				return math.Inf(1)
			}
			return value
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: o.cfg.MaxRefineEvals,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-8,
			Relative:   1e-4,
			Iterations: 20,
		},
	}
	method := &optimize.NelderMead{
		Reflection:  1.0,
		Expansion:   2.0,
		Contraction: 0.5,
		Shrink:      0.5,
		SimplexSize: 0.2,
	}

	start := []float64{(x1 + x2) / 2, x2 - x1, recoil.MaxY}
	result, err := optimize.Minimize(problem, start, settings, method)

	if evalErr != nil {
		return nil, evalErr
	}
	if cerr := ctx.Err(); cerr != nil {
		return nil, cerr
	}
	if err != nil || result == nil || math.IsInf(result.F, 1) {
		// Budget exhaustion and non-convergence fall back to the sweep
		// result.
		o.Logger.Debug("refinement did not converge", map[string]interface{}{
			"windows": []float64{x1, x2},
		})
		return nil, nil
	}
	if result.F >= sweepValue {
		return nil, nil
	}

	sol, ok := windowSolution(result.X[0], result.X[1], result.X[2])
	if !ok {
		return nil, nil
	}
	o.Logger.Info("refined best window", map[string]interface{}{
		"center": result.X[0],
		"width":  result.X[1],
		"height": result.X[2],
		"value":  result.F,
	})
	return sol, nil
}

// windowSolution builds a box6 profile with the high plateau of the given
// height spanning center +- width/2, clamped into the per-point search
// bounds. Degenerate windows are rejected.
func windowSolution(center, width, height float64) (*recoil.Solution, bool) {
	if width < 0.1 {
		return nil, false
	}
	bounds := recoil.DefaultBounds(6)

	x1 := bounds.X[1].Clamp(center - width/2)
	x2 := bounds.X[4].Clamp(center + width/2)
	if x2-x1 < 0.1 {
		return nil, false
	}
	height = bounds.Y[2].Clamp(height)

	points := []recoil.Point{
		{X: bounds.X[0].Min, Y: recoil.MinY},
		{X: x1, Y: recoil.MinY},
		{X: x1 + 0.01, Y: height},
		{X: x2 - 0.001, Y: height},
		{X: x2, Y: recoil.MinY},
		{X: bounds.X[5].Max, Y: recoil.MinY},
	}
	sol, err := recoil.NewBox6(points)
	if err != nil {
		return nil, false
	}
	return sol, true
}
