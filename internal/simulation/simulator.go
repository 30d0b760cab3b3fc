// Package simulation holds the collaborators the optimization engine drives:
// the particle-transport simulator contract, an exec-based adapter for the
// external solver, and the element-simulation target that owns optimization
// artifacts and result persistence.
package simulation

import (
	"context"

	"github.com/tpitkanen/potku/internal/recoil"
	"github.com/tpitkanen/potku/internal/spectrum"
)

// IonDivision controls how simulated ions are divided between the
// presimulation and the full simulation stages of the external solver.
type IonDivision int

const (
	// IonDivisionNone runs every ion through the full simulation.
	IonDivisionNone IonDivision = iota
	// IonDivisionSim divides ions for the simulation stage only.
	IonDivisionSim
	// IonDivisionBoth divides ions for both stages.
	IonDivisionBoth
)

// Request carries one simulation invocation's inputs.
type Request struct {
	Recoil       *recoil.RecoilElement
	ChannelWidth float64
	IonDivision  IonDivision
	Verbose      bool
}

// Simulator produces a predicted energy spectrum for a candidate recoil
// distribution. Implementations may block for seconds to minutes and may
// run multiple OS processes per invocation.
type Simulator interface {
	// CalculateSpectrum runs one simulation and returns the predicted
	// spectrum. It blocks until the spectrum is available or the context
	// is cancelled.
	CalculateSpectrum(ctx context.Context, req Request) (spectrum.Spectrum, error)

	// CleanUp terminates any still-running child simulation processes.
	// It must be safe to call at any time, including after failures.
	CleanUp(ctx context.Context) error
}
