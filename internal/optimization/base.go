package optimization

import (
	"context"
	"sync"

	"github.com/tpitkanen/potku/internal/logging"
	"github.com/tpitkanen/potku/internal/simulation"
	"github.com/tpitkanen/potku/internal/spectrum"
)

// MeasurementSource supplies the measured reference spectrum, already
// expressed in the same depth-mapped x-units as simulator output, and the
// cut-file reference the results summary is keyed by.
type MeasurementSource interface {
	MeasuredSpectrum(ctx context.Context) (spectrum.Spectrum, error)
	CutFile() string
}

// Params are the settings shared by all optimization strategies.
type Params struct {
	Type       Type
	RecoilType string // "box" or "two-peak"

	// UpperLimits and LowerLimits bound the search space as (x, y) pairs.
	UpperLimits []float64
	LowerLimits []float64

	// ChannelWidth is the spectrum grid spacing in MeV.
	ChannelWidth float64
	// NumberOfProcesses is forwarded to the simulator collaborator.
	NumberOfProcesses int
	// IonDivision is forwarded to the simulator collaborator.
	IonDivision simulation.IonDivision

	// SkipSimulation skips the warm-up simulation during preparation.
	SkipSimulation bool
	// OptimizeByArea scores candidates by area difference instead of
	// pointwise mean squared error.
	OptimizeByArea bool
	Verbose        bool
}

// DefaultParams returns the settings used when the caller supplies none.
func DefaultParams() Params {
	return Params{
		Type:              TypeRecoil,
		RecoilType:        "box",
		ChannelWidth:      0.025,
		NumberOfProcesses: 1,
		IonDivision:       simulation.IonDivisionBoth,
	}
}

// Base carries the state and reporting plumbing shared by concrete
// strategies. Strategies embed it and use its helpers; it is not an
// Optimizer by itself.
type Base struct {
	Target      *simulation.ElementSimulation
	Measurement MeasurementSource
	Params      Params
	Logger      *logging.Logger
	Callbacks   Callbacks

	// MeasuredEspe is the preprocessed measured spectrum, set during
	// preparation.
	MeasuredEspe spectrum.Spectrum

	mu       sync.Mutex
	finished bool
}

// NewBase wires a strategy's shared state. A nil logger is replaced with a
// default one so strategies can log unconditionally.
func NewBase(target *simulation.ElementSimulation, measurement MeasurementSource,
	params Params, logger *logging.Logger, callbacks Callbacks) Base {
	if logger == nil {
		logger = logging.Default()
	}
	return Base{
		Target:      target,
		Measurement: measurement,
		Params:      params,
		Logger:      logger,
		Callbacks:   callbacks,
	}
}

// PrepareMeasuredSpectrum validates that a measurement is available and
// materializes the measured spectrum for the comparator. Fails with
// ErrNoMeasurement before any simulator invocation otherwise.
func (b *Base) PrepareMeasuredSpectrum(ctx context.Context) error {
	if b.Measurement == nil {
		return WrapError(ErrNoMeasurement, "optimization could not be prepared").
			WithOperation("prepare")
	}
	espe, err := b.Measurement.MeasuredSpectrum(ctx)
	if err != nil {
		return WrapError(err, "reading measured spectrum").WithOperation("prepare")
	}
	if len(espe) == 0 {
		return WrapError(ErrNoMeasurement, "measured spectrum is empty").
			WithOperation("prepare")
	}
	b.MeasuredEspe = espe
	return nil
}

// DiffMode returns the configured scoring mode.
func (b *Base) DiffMode() spectrum.DiffMode {
	if b.Params.OptimizeByArea {
		return spectrum.ModeArea
	}
	return spectrum.ModePointwise
}

// CleanUp forwards clean-up to the element-simulation target so child
// simulation processes never outlive the run. Errors are logged, not
// propagated: clean-up runs on paths that already carry an error.
func (b *Base) CleanUp(ctx context.Context) {
	if b.Target == nil {
		return
	}
	if err := b.Target.CleanUp(ctx); err != nil {
		b.Logger.Warn("optimization clean-up failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// ReportProgress delivers a non-terminal message.
func (b *Base) ReportProgress(msg Message) {
	b.mu.Lock()
	done := b.finished
	b.mu.Unlock()
	if done {
		return
	}
	if b.Callbacks.OnProgress != nil {
		b.Callbacks.OnProgress(msg)
	}
}

// ReportError delivers the terminal failure message. Only the first
// terminal report wins; later ones are dropped.
func (b *Base) ReportError(msg Message) {
	if !b.markFinished() {
		return
	}
	msg.State = StateFinished
	errText := "unknown error"
	if msg.Err != nil {
		errText = msg.Err.Error()
	}
	b.Logger.Error("optimization failed", map[string]interface{}{
		"error": errText,
	})
	if b.Callbacks.OnError != nil {
		b.Callbacks.OnError(msg)
	}
}

// ReportCompleted delivers the terminal success (or cancelled) message.
// Only the first terminal report wins.
func (b *Base) ReportCompleted(msg Message) {
	if !b.markFinished() {
		return
	}
	msg.State = StateFinished
	if b.Callbacks.OnCompleted != nil {
		b.Callbacks.OnCompleted(msg)
	}
}

func (b *Base) markFinished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.finished {
		return false
	}
	b.finished = true
	return true
}
