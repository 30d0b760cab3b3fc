// Package linear implements the 1-D sweep optimization strategy: candidate
// box profiles are swept across the depth range, scored against the
// measured spectrum through the simulator collaborator, and the best window
// is refined with a derivative-free local search.
package linear

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/tpitkanen/potku/internal/logging"
	"github.com/tpitkanen/potku/internal/optimization"
	"github.com/tpitkanen/potku/internal/recoil"
	"github.com/tpitkanen/potku/internal/simulation"
	"github.com/tpitkanen/potku/internal/spectrum"
)

// PeakLocator finds the expected peak depths in a measured spectrum. The
// output is a short list of depth positions in ascending order.
type PeakLocator func(spectrum.Spectrum) []float64

// Config holds the linear strategy's settings on top of the shared
// optimization parameters.
type Config struct {
	optimization.Params

	// SolSize selects the solution shape: 9 is the implemented two-peak
	// shape; 5, 7 and 11 are reserved.
	SolSize int

	// NumWindows is how many equal-width windows the depth range is
	// split into during the sweep.
	NumWindows int

	// MaxRefineEvals bounds the objective evaluations spent refining the
	// best window. Zero disables refinement.
	MaxRefineEvals int

	// PeakLocator overrides the default measured-peak detector.
	PeakLocator PeakLocator

	// MinProminence is the default detector's prominence threshold as a
	// fraction of the spectrum's maximum intensity.
	MinProminence float64

	// InitialSolution overrides the shape-derived initial candidate.
	InitialSolution *recoil.Solution
}

// DefaultConfig returns the sweep defaults: 1 nm windows over the default
// depth range and a modest refinement budget.
func DefaultConfig() Config {
	return Config{
		Params:         optimization.DefaultParams(),
		SolSize:        9,
		NumWindows:     120,
		MaxRefineEvals: 40,
		MinProminence:  0.1,
	}
}

// Optimizer is the linear sweep strategy.
type Optimizer struct {
	optimization.Base

	cfg Config

	measuredPeaks []float64
	solution      *recoil.Solution
	evaluations   int
	running       bool
}

// New creates a linear optimizer for one element-simulation target.
func New(target *simulation.ElementSimulation, measurement optimization.MeasurementSource,
	cfg Config, logger *logging.Logger, callbacks optimization.Callbacks) *Optimizer {
	if cfg.NumWindows <= 0 {
		cfg.NumWindows = 120
	}
	if cfg.SolSize == 0 {
		cfg.SolSize = 9
	}
	if cfg.MinProminence <= 0 {
		cfg.MinProminence = 0.1
	}
	return &Optimizer{
		Base: optimization.NewBase(target, measurement, cfg.Params, logger, callbacks),
		cfg:  cfg,
	}
}

// StartOptimization runs the full PREPARING, RUNNING, FINISHED lifecycle.
// Every path ends in exactly one terminal report; on cancellation the
// collaborator is cleaned up first and the terminal message carries the
// cancelled indicator.
func (o *Optimizer) StartOptimization(ctx context.Context) error {
	if o.running {
		return optimization.ErrAlreadyRunning
	}
	o.running = true
	defer func() { o.running = false }()

	o.ReportProgress(optimization.Message{
		State:           optimization.StatePreparing,
		EvaluationsLeft: optimization.EvaluationsUnknown,
		EvaluationsDone: optimization.EvaluationsUnknown,
	})

	if err := o.prepare(ctx); err != nil {
		err = optimization.WrapError(err, "preparation for optimization failed").
			WithComponent("linear")
		o.ReportError(optimization.Message{Err: err})
		o.CleanUp(ctx)
		return err
	}

	o.ReportProgress(optimization.Message{
		State:           optimization.StateRunning,
		EvaluationsLeft: o.cfg.NumWindows,
		EvaluationsDone: o.evaluations,
	})

	first := o.solution
	med, last, err := o.optimize(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			o.CleanUp(context.WithoutCancel(ctx))
			o.ReportCompleted(optimization.Message{
				Cancelled:       true,
				EvaluationsDone: o.evaluations,
				EvaluationsLeft: optimization.EvaluationsUnknown,
			})
			return err
		}
		err = optimization.WrapError(err, "optimization run failed").
			WithComponent("linear")
		o.ReportError(optimization.Message{Err: err, EvaluationsDone: o.evaluations})
		o.CleanUp(ctx)
		return err
	}

	o.Target.SetOptimizationRecoils([]*recoil.RecoilElement{
		o.formRecoil(first, "optfirst"),
		o.formRecoil(med, "optmed"),
		o.formRecoil(last, "optlast"),
	})

	o.CleanUp(ctx)

	if err := o.Target.OptimizationResultsToFile(o.Measurement.CutFile()); err != nil {
		err = optimization.WrapError(err, "persisting optimization results").
			WithComponent("linear")
		o.ReportError(optimization.Message{Err: err, EvaluationsDone: o.evaluations})
		return err
	}

	o.ReportCompleted(optimization.Message{
		EvaluationsDone: o.evaluations,
		EvaluationsLeft: 0,
	})
	return nil
}

// prepare validates inputs, builds the initial solution and optionally runs
// one warm-up simulation so pipeline failures surface before the sweep.
func (o *Optimizer) prepare(ctx context.Context) error {
	o.Target.ResetOptimization()

	if err := o.PrepareMeasuredSpectrum(ctx); err != nil {
		return err
	}

	o.measuredPeaks = o.locatePeaks(o.MeasuredEspe)
	o.Logger.Debug("located measured peaks", map[string]interface{}{
		"peaks": o.measuredPeaks,
	})

	sol := o.cfg.InitialSolution
	if sol == nil {
		var err error
		sol, err = o.initializeSolution()
		if err != nil {
			return err
		}
	}

	// The initial recoil covers the whole depth range, so the simulator
	// never needs a wider warm-up run.
	o.Target.SetOptimizationRecoils([]*recoil.RecoilElement{
		o.formRecoil(sol, "opt"),
	})

	if !o.Params.SkipSimulation {
		rec := o.Target.OptimizationRecoils()[0]
		if _, err := o.Target.CalculateSpectrum(ctx, rec,
			o.Params.ChannelWidth, o.Params.IonDivision, o.Params.Verbose); err != nil {
			return fmt.Errorf("warm-up simulation: %w", err)
		}
	}

	o.solution = sol
	return nil
}

// locatePeaks runs the configured or default measured-peak detector.
func (o *Optimizer) locatePeaks(s spectrum.Spectrum) []float64 {
	if o.cfg.PeakLocator != nil {
		return o.cfg.PeakLocator(s)
	}

	maxCount := 1
	if o.Params.RecoilType == "two-peak" {
		maxCount = 2
	}
	threshold := o.cfg.MinProminence * floats.Max(s.Ys())
	return spectrum.FindPeaks(s, threshold, maxCount)
}

// initializeSolution builds the shape-derived initial candidate. Reserved
// shape and type combinations fail fast instead of producing a malformed
// profile.
func (o *Optimizer) initializeSolution() (*recoil.Solution, error) {
	switch o.Params.Type {
	case optimization.TypeRecoil:
	case optimization.TypeFluence:
		return nil, fmt.Errorf("%w: fluence optimization", optimization.ErrUnsupported)
	default:
		return nil, fmt.Errorf("%w: %v", optimization.ErrUnknownType, o.Params.Type)
	}

	switch o.Params.RecoilType {
	case "box":
		// 4- and 6-point box starting shapes (sol_size 5 and 7) are
		// reserved, and no other size maps to a box shape.
		return nil, fmt.Errorf("%w: sol_size %d for recoil type box",
			optimization.ErrUnsupported, o.cfg.SolSize)
	case "two-peak":
		switch o.cfg.SolSize {
		case 9:
			// Flat two-peak starting shape with the first peak at the
			// surface.
			points := []recoil.Point{
				{X: 0.0, Y: recoil.MinY},
				{X: 30.0, Y: recoil.MinY},
				{X: 30.01, Y: recoil.MinY},
				{X: 59.99, Y: recoil.MinY},
				{X: 60.0, Y: recoil.MinY},
				{X: 89.99, Y: recoil.MinY},
				{X: 90.0, Y: recoil.MinY},
				{X: 120.0, Y: recoil.MinY},
			}
			return recoil.NewPeak8(points)
		case 11:
			return nil, fmt.Errorf("%w: sol_size 11 for recoil type two-peak",
				optimization.ErrUnsupported)
		default:
			return nil, fmt.Errorf("%w: sol_size %d for recoil type two-peak",
				optimization.ErrUnsupported, o.cfg.SolSize)
		}
	default:
		return nil, fmt.Errorf("%w: recoil type %q",
			optimization.ErrUnknownType, o.Params.RecoilType)
	}
}

// formRecoil realizes a solution as a transient recoil element for one
// simulator call.
func (o *Optimizer) formRecoil(sol *recoil.Solution, name string) *recoil.RecoilElement {
	if name == "" {
		name = "opt"
	}
	return recoil.NewRecoilElement(
		o.Target.MainRecoil.Element, sol.Points(), "red", name)
}

// EvaluateSolution realizes the solution as a recoil element, invokes the
// simulator and scores the predicted spectrum against the measured one.
// Lower is better; scores are comparable only within one configuration.
func (o *Optimizer) EvaluateSolution(ctx context.Context, sol *recoil.Solution) (float64, error) {
	if o.Params.Type != optimization.TypeRecoil {
		return 0, fmt.Errorf("%w: %v optimization", optimization.ErrUnsupported, o.Params.Type)
	}

	rec := o.formRecoil(sol, "opt")
	o.Target.SetOptimizationRecoils([]*recoil.RecoilElement{rec})

	espe, err := o.Target.CalculateSpectrum(ctx, rec,
		o.Params.ChannelWidth, o.Params.IonDivision, o.Params.Verbose)
	if err != nil {
		return 0, fmt.Errorf("calculating candidate spectrum: %w", err)
	}

	a, b := spectrum.Align(espe, o.MeasuredEspe, o.Target.ChannelWidth)
	value, err := spectrum.Difference(a, b, o.DiffMode())
	if err != nil {
		return 0, err
	}

	o.evaluations++
	return value, nil
}

// Evaluations returns how many candidates have been scored.
func (o *Optimizer) Evaluations() int { return o.evaluations }

// MeasuredPeaks returns the peak depths located during preparation.
func (o *Optimizer) MeasuredPeaks() []float64 {
	return append([]float64(nil), o.measuredPeaks...)
}
