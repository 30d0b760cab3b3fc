// Package optimization defines the lifecycle contract shared by recoil
// optimization strategies: the state machine, progress reporting, and the
// base behaviour every concrete strategy builds on.
package optimization

import (
	"context"
	"fmt"
)

// State is the lifecycle stage attached to progress and result messages.
type State int

const (
	// StatePreparing covers input validation, measured-spectrum
	// preprocessing and the optional warm-up simulation.
	StatePreparing State = iota
	// StateRunning covers the search loop.
	StateRunning
	// StateFinished is terminal, for both success and failure.
	StateFinished
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StatePreparing:
		return "preparing"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EvaluationsUnknown marks progress counters a strategy does not track
// exactly.
const EvaluationsUnknown = -1

// Type selects what quantity is being optimized.
type Type int

const (
	// TypeRecoil optimizes the recoil depth distribution.
	TypeRecoil Type = iota
	// TypeFluence optimizes the fluence (reserved, not implemented).
	TypeFluence
)

// String returns the type's name.
func (t Type) String() string {
	switch t {
	case TypeRecoil:
		return "recoil"
	case TypeFluence:
		return "fluence"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Message is the structured payload delivered through the reporting
// callbacks at each state transition.
type Message struct {
	State State

	// EvaluationsLeft and EvaluationsDone are best effort; strategies
	// that do not track them exactly report EvaluationsUnknown.
	EvaluationsLeft int
	EvaluationsDone int

	// Cancelled is set on the terminal message of a cancelled run.
	Cancelled bool

	// Err carries the failure on FINISHED-with-error messages.
	Err error
}

// Callbacks receive progress, error and completion messages. Nil callbacks
// are skipped. Every run ends in exactly one terminal callback: OnError or
// OnCompleted, never both.
type Callbacks struct {
	OnProgress  func(Message)
	OnError     func(Message)
	OnCompleted func(Message)
}

// Optimizer is the lifecycle every optimization strategy exposes. The run
// is synchronous; cancellation is cooperative through the context and is
// checked between simulator invocations.
type Optimizer interface {
	// StartOptimization runs the full prepare/search/report lifecycle.
	// The returned error mirrors the terminal message: nil on success,
	// the context error when cancelled, the failure otherwise.
	StartOptimization(ctx context.Context) error
}
