package linear

import (
	"context"
	"math"

	"github.com/tpitkanen/potku/internal/optimization"
	"github.com/tpitkanen/potku/internal/recoil"
)

// optimize runs the window sweep followed by local refinement. It returns
// the best sweep solution and the refined final solution.
func (o *Optimizer) optimize(ctx context.Context) (best, last *recoil.Solution, err error) {
	minX, maxX := o.depthRange()
	width := (maxX - minX) / float64(o.cfg.NumWindows)

	bestValue := math.Inf(1)
	var bestX1 float64

	// Windows are evaluated strictly in ascending depth order. The
	// ordering matters only for progress reporting; each evaluation is
	// independent.
	for i := 0; i < o.cfg.NumWindows; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		x1 := minX + float64(i)*width
		sol := recoil.Box6Window(x1, x1+width)

		value, err := o.EvaluateSolution(ctx, sol)
		if err != nil {
			return nil, nil, err
		}

		if value < bestValue {
			bestValue = value
			bestX1 = x1
			best = sol
		}

		o.ReportProgress(optimization.Message{
			State:           optimization.StateRunning,
			EvaluationsDone: o.evaluations,
			EvaluationsLeft: o.cfg.NumWindows - i - 1,
		})
	}

	o.Logger.Info("window sweep finished", map[string]interface{}{
		"best_window": bestX1,
		"best_value":  bestValue,
		"evaluations": o.evaluations,
	})

	last, err = o.refine(ctx, bestX1, bestX1+width, bestValue)
	if err != nil {
		return nil, nil, err
	}
	if last == nil {
		last = best
	}
	return best, last, nil
}

// depthRange returns the window placement range from the configured search
// limits, falling back to the profile's global depth bounds.
func (o *Optimizer) depthRange() (minX, maxX float64) {
	minX, maxX = recoil.DefaultMinX, recoil.DefaultMaxX
	if len(o.Params.LowerLimits) > 0 && o.Params.LowerLimits[0] > minX {
		minX = o.Params.LowerLimits[0]
	}
	if len(o.Params.UpperLimits) > 0 && o.Params.UpperLimits[0] < maxX {
		maxX = o.Params.UpperLimits[0]
	}
	return minX, maxX
}
