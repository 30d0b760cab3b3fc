package simulation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tpitkanen/potku/internal/recoil"
	"github.com/tpitkanen/potku/internal/spectrum"
)

// ElementSimulation is the target of one recoil optimization: it owns the
// element's main recoil distribution, the transient optimization recoils,
// and result persistence. One element simulation must not be shared by
// concurrent optimizer invocations.
type ElementSimulation struct {
	Name         string
	MainRecoil   *recoil.RecoilElement
	ChannelWidth float64
	Directory    string

	sim Simulator

	mu                  sync.Mutex
	optimizationRecoils []*recoil.RecoilElement
	optimizedFluence    *float64
}

// NewElementSimulation binds a target to its simulator collaborator.
// Directory is where result files are written.
func NewElementSimulation(name string, mainRecoil *recoil.RecoilElement,
	channelWidth float64, directory string, sim Simulator) *ElementSimulation {
	return &ElementSimulation{
		Name:         name,
		MainRecoil:   mainRecoil,
		ChannelWidth: channelWidth,
		Directory:    directory,
		sim:          sim,
	}
}

// CalculateSpectrum invokes the simulator collaborator for one recoil.
func (es *ElementSimulation) CalculateSpectrum(ctx context.Context,
	rec *recoil.RecoilElement, channelWidth float64,
	ionDivision IonDivision, verbose bool) (spectrum.Spectrum, error) {
	return es.sim.CalculateSpectrum(ctx, Request{
		Recoil:       rec,
		ChannelWidth: channelWidth,
		IonDivision:  ionDivision,
		Verbose:      verbose,
	})
}

// ResetOptimization discards artifacts left over from a previous
// optimization attempt.
func (es *ElementSimulation) ResetOptimization() {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.optimizationRecoils = nil
	es.optimizedFluence = nil
}

// SetOptimizationRecoils replaces the optimization recoil list. The recoils
// are owned by the running optimization invocation.
func (es *ElementSimulation) SetOptimizationRecoils(recoils []*recoil.RecoilElement) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.optimizationRecoils = recoils
}

// OptimizationRecoils returns the current optimization recoil list.
func (es *ElementSimulation) OptimizationRecoils() []*recoil.RecoilElement {
	es.mu.Lock()
	defer es.mu.Unlock()
	return append([]*recoil.RecoilElement(nil), es.optimizationRecoils...)
}

// CleanUp forwards clean-up to the simulator collaborator so no child
// simulation processes outlive the optimization run.
func (es *ElementSimulation) CleanUp(ctx context.Context) error {
	return es.sim.CleanUp(ctx)
}

// OptimizationResultsToFile persists the current optimization recoils as
// profile files and writes a results summary keyed by the originating
// measured-data reference.
func (es *ElementSimulation) OptimizationResultsToFile(cutRef string) error {
	es.mu.Lock()
	recoils := append([]*recoil.RecoilElement(nil), es.optimizationRecoils...)
	es.mu.Unlock()

	if err := os.MkdirAll(es.Directory, 0o755); err != nil {
		return fmt.Errorf("creating results directory: %w", err)
	}

	for _, rec := range recoils {
		path := filepath.Join(es.Directory,
			fmt.Sprintf("%s.%s.rec", es.Name, rec.Name))
		if err := rec.WriteFile(path); err != nil {
			return err
		}
	}

	summary := filepath.Join(es.Directory, es.Name+".optimization")
	f, err := os.Create(summary)
	if err != nil {
		return fmt.Errorf("writing optimization summary: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "measured: %s\n", cutRef)
	for _, rec := range recoils {
		fmt.Fprintf(f, "%s: %d points\n", rec.Name, len(rec.Points))
	}
	return nil
}
