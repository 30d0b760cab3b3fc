package linear

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tpitkanen/potku/internal/optimization"
	"github.com/tpitkanen/potku/internal/recoil"
	"github.com/tpitkanen/potku/internal/simulation"
	"github.com/tpitkanen/potku/internal/spectrum"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RecoilType = "two-peak"
	cfg.ChannelWidth = 1.0
	cfg.NumWindows = 6
	cfg.MaxRefineEvals = 0
	return cfg
}

func newTarget(t *testing.T, channelWidth float64) (*simulation.ElementSimulation, *simulation.EchoSimulator) {
	t.Helper()
	echo := &simulation.EchoSimulator{}
	main := recoil.NewRecoilElement(recoil.Element{Symbol: "O", Isotope: 16},
		recoil.Box6Window(0.0, 120.0).Points(), "red", "default")
	return simulation.NewElementSimulation("16O", main, channelWidth, t.TempDir(), echo), echo
}

// echoSpectrum returns what the echo simulator predicts for a solution, for
// building measured spectra with a known-perfect candidate.
func echoSpectrum(t *testing.T, sol *recoil.Solution, channelWidth float64) spectrum.Spectrum {
	t.Helper()
	echo := &simulation.EchoSimulator{}
	rec := recoil.NewRecoilElement(recoil.Element{Symbol: "O", Isotope: 16},
		sol.Points(), "red", "opt")
	s, err := echo.CalculateSpectrum(context.Background(), simulation.Request{
		Recoil:       rec,
		ChannelWidth: channelWidth,
	})
	require.NoError(t, err)
	return s
}

// recorder collects the callback messages of one run.
type recorder struct {
	progress  []optimization.Message
	errors    []optimization.Message
	completed []optimization.Message
}

func (r *recorder) callbacks() optimization.Callbacks {
	return optimization.Callbacks{
		OnProgress:  func(m optimization.Message) { r.progress = append(r.progress, m) },
		OnError:     func(m optimization.Message) { r.errors = append(r.errors, m) },
		OnCompleted: func(m optimization.Message) { r.completed = append(r.completed, m) },
	}
}

func TestEvaluateSolutionScoresOwnProfileAsZero(t *testing.T) {
	target, _ := newTarget(t, 1.0)
	sol := recoil.Box6Window(30.0, 60.0)
	measured := echoSpectrum(t, sol, 1.0)

	opt := New(target, &optimization.StaticMeasurement{Spectrum: measured},
		testConfig(), nil, optimization.Callbacks{})
	opt.MeasuredEspe = measured

	value, err := opt.EvaluateSolution(context.Background(), sol)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, value, 1e-12,
		"a candidate matching the measurement must score zero")

	// A displaced window scores strictly worse.
	other, err := opt.EvaluateSolution(context.Background(), recoil.Box6Window(80.0, 100.0))
	require.NoError(t, err)
	assert.Greater(t, other, value)
	assert.Equal(t, 2, opt.Evaluations())
}

func TestStartOptimizationLifecycle(t *testing.T) {
	target, echo := newTarget(t, 1.0)
	measured := optimization.FlatSpectrum(120, 1.0, 0.1)
	rec := &recorder{}

	opt := New(target, &optimization.StaticMeasurement{Spectrum: measured},
		testConfig(), nil, rec.callbacks())

	err := opt.StartOptimization(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, rec.progress)
	assert.Equal(t, optimization.StatePreparing, rec.progress[0].State)
	assert.Equal(t, optimization.StateRunning, rec.progress[1].State)

	require.Len(t, rec.completed, 1)
	assert.Empty(t, rec.errors)
	done := rec.completed[0]
	assert.Equal(t, optimization.StateFinished, done.State)
	assert.False(t, done.Cancelled)
	assert.Equal(t, 6, done.EvaluationsDone)
	assert.Equal(t, 0, done.EvaluationsLeft)
	assert.Equal(t, 6, opt.Evaluations())

	// The three result recoils are published on the target and persisted.
	recoils := target.OptimizationRecoils()
	require.Len(t, recoils, 3)
	assert.Equal(t, "optfirst", recoils[0].Name)
	assert.Equal(t, "optmed", recoils[1].Name)
	assert.Equal(t, "optlast", recoils[2].Name)

	for _, name := range []string{"16O.optfirst.rec", "16O.optmed.rec", "16O.optlast.rec", "16O.optimization"} {
		_, err := os.Stat(filepath.Join(target.Directory, name))
		assert.NoError(t, err, name)
	}

	assert.GreaterOrEqual(t, echo.CleanUps(), 1,
		"the collaborator must be cleaned up before the terminal report")
}

func TestStartOptimizationRefinesBestWindow(t *testing.T) {
	target, _ := newTarget(t, 1.0)
	// The measurement is a box the sweep grid cannot hit exactly, so
	// refinement has room to improve on the best window.
	measured := echoSpectrum(t, recoil.Box6Window(33.0, 47.0), 1.0)
	rec := &recorder{}

	cfg := testConfig()
	cfg.MaxRefineEvals = 25

	opt := New(target, &optimization.StaticMeasurement{Spectrum: measured},
		cfg, nil, rec.callbacks())

	err := opt.StartOptimization(context.Background())
	require.NoError(t, err)
	require.Len(t, rec.completed, 1)
	assert.GreaterOrEqual(t, opt.Evaluations(), cfg.NumWindows,
		"refinement evaluations come on top of the sweep")
}

func TestStartOptimizationCancellation(t *testing.T) {
	target, echo := newTarget(t, 1.0)
	measured := optimization.FlatSpectrum(120, 1.0, 0.1)
	rec := &recorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	callbacks := rec.callbacks()
	onProgress := callbacks.OnProgress
	callbacks.OnProgress = func(m optimization.Message) {
		onProgress(m)
		if m.State == optimization.StateRunning && m.EvaluationsDone >= 1 {
			cancel()
		}
	}

	opt := New(target, &optimization.StaticMeasurement{Spectrum: measured},
		testConfig(), nil, callbacks)

	err := opt.StartOptimization(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Len(t, rec.completed, 1)
	assert.Empty(t, rec.errors, "a cancelled run is not a failed run")
	assert.True(t, rec.completed[0].Cancelled)
	assert.Equal(t, 1, opt.Evaluations(),
		"cancellation must take effect before the next evaluation")
	assert.GreaterOrEqual(t, echo.CleanUps(), 1,
		"clean-up must run before the cancelled terminal report")
}

func TestStartOptimizationPreparationFailures(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		measurement optimization.MeasurementSource
		wantErr     error
	}{
		{
			name:    "missing measurement",
			wantErr: optimization.ErrNoMeasurement,
		},
		{
			name:        "box shapes reserved",
			measurement: &optimization.StaticMeasurement{Spectrum: optimization.FlatSpectrum(10, 1.0, 0.1)},
			mutate: func(cfg *Config) {
				cfg.RecoilType = "box"
				cfg.SolSize = 5
			},
			wantErr: optimization.ErrUnsupported,
		},
		{
			name:        "two-peak sol_size 11 reserved",
			measurement: &optimization.StaticMeasurement{Spectrum: optimization.FlatSpectrum(10, 1.0, 0.1)},
			mutate:      func(cfg *Config) { cfg.SolSize = 11 },
			wantErr:     optimization.ErrUnsupported,
		},
		{
			name:        "fluence reserved",
			measurement: &optimization.StaticMeasurement{Spectrum: optimization.FlatSpectrum(10, 1.0, 0.1)},
			mutate:      func(cfg *Config) { cfg.Type = optimization.TypeFluence },
			wantErr:     optimization.ErrUnsupported,
		},
		{
			name:        "unknown recoil type",
			measurement: &optimization.StaticMeasurement{Spectrum: optimization.FlatSpectrum(10, 1.0, 0.1)},
			mutate:      func(cfg *Config) { cfg.RecoilType = "gaussian" },
			wantErr:     optimization.ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, _ := newTarget(t, 1.0)
			rec := &recorder{}
			cfg := testConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			opt := New(target, tt.measurement, cfg, nil, rec.callbacks())

			err := opt.StartOptimization(context.Background())
			require.ErrorIs(t, err, tt.wantErr)

			require.Len(t, rec.errors, 1, "failures end in exactly one error report")
			assert.Empty(t, rec.completed)
			assert.Equal(t, optimization.StateFinished, rec.errors[0].State)
			assert.ErrorIs(t, rec.errors[0].Err, tt.wantErr)
		})
	}
}

type failingSimulator struct {
	cleanUps int
}

func (f *failingSimulator) CalculateSpectrum(context.Context, simulation.Request) (spectrum.Spectrum, error) {
	return nil, errors.New("solver crashed")
}

func (f *failingSimulator) CleanUp(context.Context) error {
	f.cleanUps++
	return nil
}

func TestStartOptimizationSimulatorFailure(t *testing.T) {
	sim := &failingSimulator{}
	main := recoil.NewRecoilElement(recoil.Element{Symbol: "O", Isotope: 16},
		recoil.Box6Window(0.0, 120.0).Points(), "red", "default")
	target := simulation.NewElementSimulation("16O", main, 1.0, t.TempDir(), sim)
	rec := &recorder{}

	opt := New(target, &optimization.StaticMeasurement{Spectrum: optimization.FlatSpectrum(10, 1.0, 0.1)},
		testConfig(), nil, rec.callbacks())

	err := opt.StartOptimization(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warm-up simulation")

	require.Len(t, rec.errors, 1)
	assert.Empty(t, rec.completed)
	assert.Equal(t, 1, sim.cleanUps, "failed runs still clean up the collaborator")
}

func TestStartOptimizationAlreadyRunning(t *testing.T) {
	target, _ := newTarget(t, 1.0)
	rec := &recorder{}

	opt := New(target, &optimization.StaticMeasurement{Spectrum: optimization.FlatSpectrum(10, 1.0, 0.1)},
		testConfig(), nil, rec.callbacks())
	opt.running = true

	err := opt.StartOptimization(context.Background())
	require.ErrorIs(t, err, optimization.ErrAlreadyRunning)
	assert.Empty(t, rec.progress)
}

func TestLocatePeaks(t *testing.T) {
	var s spectrum.Spectrum
	for x := 0.0; x <= 100.0; x++ {
		y := 0.1
		switch x {
		case 20:
			y = 1.0
		case 70:
			y = 0.6
		}
		s = append(s, spectrum.Sample{X: x, Y: y})
	}

	t.Run("two-peak keeps both", func(t *testing.T) {
		target, _ := newTarget(t, 1.0)
		opt := New(target, nil, testConfig(), nil, optimization.Callbacks{})

		assert.Equal(t, []float64{20, 70}, opt.locatePeaks(s))
	})

	t.Run("box keeps the most prominent", func(t *testing.T) {
		target, _ := newTarget(t, 1.0)
		cfg := testConfig()
		cfg.RecoilType = "box"
		opt := New(target, nil, cfg, nil, optimization.Callbacks{})

		assert.Equal(t, []float64{20}, opt.locatePeaks(s))
	})

	t.Run("custom locator wins", func(t *testing.T) {
		target, _ := newTarget(t, 1.0)
		cfg := testConfig()
		cfg.PeakLocator = func(spectrum.Spectrum) []float64 { return []float64{42.0} }
		opt := New(target, nil, cfg, nil, optimization.Callbacks{})

		assert.Equal(t, []float64{42.0}, opt.locatePeaks(s))
	})
}

func TestWindowSolution(t *testing.T) {
	t.Run("valid window", func(t *testing.T) {
		sol, ok := windowSolution(45.0, 30.0, 0.8)
		require.True(t, ok)
		assert.InDelta(t, 30.01, sol.PointAt(2).X, 1e-9)
		assert.InDelta(t, 0.8, sol.PointAt(2).Y, 1e-9)
	})

	t.Run("degenerate width rejected", func(t *testing.T) {
		_, ok := windowSolution(45.0, 0.01, 0.8)
		assert.False(t, ok)
	})

	t.Run("window outside the depth range rejected", func(t *testing.T) {
		_, ok := windowSolution(500.0, 30.0, 0.8)
		assert.False(t, ok)
	})

	t.Run("height clamped to the concentration bound", func(t *testing.T) {
		sol, ok := windowSolution(45.0, 30.0, 5.0)
		require.True(t, ok)
		assert.Equal(t, recoil.MaxY, sol.PointAt(2).Y)
	})
}

func TestDepthRangeFromLimits(t *testing.T) {
	target, _ := newTarget(t, 1.0)
	cfg := testConfig()
	cfg.LowerLimits = []float64{20.0, recoil.MinY}
	cfg.UpperLimits = []float64{100.0, recoil.MaxY}
	opt := New(target, nil, cfg, nil, optimization.Callbacks{})

	minX, maxX := opt.depthRange()
	assert.Equal(t, 20.0, minX)
	assert.Equal(t, 100.0, maxX)

	opt.Params.LowerLimits = nil
	opt.Params.UpperLimits = nil
	minX, maxX = opt.depthRange()
	assert.Equal(t, recoil.DefaultMinX, minX)
	assert.Equal(t, recoil.DefaultMaxX, maxX)
}
