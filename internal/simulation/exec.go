package simulation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/tpitkanen/potku/internal/logging"
	"github.com/tpitkanen/potku/internal/spectrum"
)

// ExecConfig configures the external solver adapter.
type ExecConfig struct {
	// Binary is the path of the external solver executable.
	Binary string
	// WorkDir is where recoil inputs and spectrum outputs are exchanged.
	WorkDir string
	// Processes is how many solver processes to run for one candidate.
	Processes int
	// CheckTime is the solver's progress-check interval in seconds;
	// CheckMax and CheckMin bound its total run time. The engine only
	// forwards these, timeout semantics are the solver's.
	CheckTime int
	CheckMax  int
	CheckMin  int
}

// ExecSimulator runs the external particle-transport solver as one or more
// OS processes per candidate and collects the predicted spectrum from the
// files the solver writes.
type ExecSimulator struct {
	cfg    ExecConfig
	logger *logging.Logger

	mu      sync.Mutex
	running []*exec.Cmd
}

// NewExecSimulator creates an adapter for the solver at cfg.Binary.
func NewExecSimulator(cfg ExecConfig, logger *logging.Logger) *ExecSimulator {
	if cfg.Processes < 1 {
		cfg.Processes = 1
	}
	return &ExecSimulator{cfg: cfg, logger: logger}
}

// CalculateSpectrum writes the recoil profile to the work directory, runs
// the configured number of solver processes, and merges their spectra. It
// blocks until every process exits or the context is cancelled.
func (s *ExecSimulator) CalculateSpectrum(ctx context.Context, req Request) (spectrum.Spectrum, error) {
	if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("simulator work directory: %w", err)
	}

	recPath := filepath.Join(s.cfg.WorkDir, req.Recoil.Name+".rec")
	if err := req.Recoil.WriteFile(recPath); err != nil {
		return nil, err
	}

	outputs := make([]string, s.cfg.Processes)
	cmds := make([]*exec.Cmd, s.cfg.Processes)
	for i := range cmds {
		outputs[i] = filepath.Join(s.cfg.WorkDir,
			fmt.Sprintf("%s.%d.simu", req.Recoil.Name, i))
		cmds[i] = s.command(ctx, req, recPath, outputs[i], i)
	}

	s.mu.Lock()
	s.running = append(s.running, cmds...)
	s.mu.Unlock()
	defer s.forget(cmds)

	var wg sync.WaitGroup
	errs := make([]error, len(cmds))
	for i, cmd := range cmds {
		wg.Add(1)
		go func(i int, cmd *exec.Cmd) {
			defer wg.Done()
			s.logger.Debug("starting solver process", map[string]interface{}{
				"recoil": req.Recoil.Name,
				"seed":   i,
			})
			errs[i] = cmd.Run()
		}(i, cmd)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("solver process %d: %w", i, err)
		}
	}

	return s.mergeSpectra(outputs, req.ChannelWidth)
}

// command builds one solver invocation. Each process gets its own seed and
// output file; the solver's time-budget parameters are forwarded as-is.
func (s *ExecSimulator) command(ctx context.Context, req Request,
	recPath, outPath string, seed int) *exec.Cmd {
	args := []string{
		"--recoil", recPath,
		"--output", outPath,
		"--channel-width", fmt.Sprintf("%g", req.ChannelWidth),
		"--ion-division", fmt.Sprintf("%d", int(req.IonDivision)),
		"--seed", fmt.Sprintf("%d", seed),
		"--check-time", fmt.Sprintf("%d", s.cfg.CheckTime),
		"--check-max", fmt.Sprintf("%d", s.cfg.CheckMax),
		"--check-min", fmt.Sprintf("%d", s.cfg.CheckMin),
	}
	if req.Verbose {
		args = append(args, "--verbose")
	}
	cmd := exec.CommandContext(ctx, s.cfg.Binary, args...)
	cmd.Dir = s.cfg.WorkDir
	return cmd
}

// mergeSpectra sums the per-process spectra onto a common grid.
func (s *ExecSimulator) mergeSpectra(paths []string, channelWidth float64) (spectrum.Spectrum, error) {
	var merged spectrum.Spectrum
	for _, path := range paths {
		part, err := spectrum.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if len(part) == 0 {
			continue
		}
		if merged == nil {
			merged = part
			continue
		}
		merged, part = spectrum.Align(merged, part, channelWidth)
		if len(merged) != len(part) {
			// Alignment only pads onto a shared channel grid; a length
			// mismatch means the solver outputs use incommensurate grids.
			return nil, fmt.Errorf("solver output %s is not on the %g channel grid",
				path, channelWidth)
		}
		for i := range merged {
			merged[i].Y += part[i].Y
		}
	}
	if merged == nil {
		return nil, fmt.Errorf("solver produced no spectrum samples")
	}
	return merged, nil
}

func (s *ExecSimulator) forget(cmds []*exec.Cmd) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.running[:0]
	for _, r := range s.running {
		found := false
		for _, c := range cmds {
			if r == c {
				found = true
				break
			}
		}
		if !found {
			kept = append(kept, r)
		}
	}
	s.running = kept
}

// CleanUp kills any solver processes that are still running. Called on
// cancellation and on failure paths so no child processes are orphaned.
func (s *ExecSimulator) CleanUp(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for _, cmd := range s.running {
		if cmd.Process == nil {
			continue
		}
		if err := cmd.Process.Kill(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.running = nil
	if firstErr != nil {
		return fmt.Errorf("terminating solver processes: %w", firstErr)
	}
	return nil
}
