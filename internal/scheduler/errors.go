package scheduler

import "fmt"

// Stage names the part of a cycle that failed.
type Stage string

const (
	StageStartup Stage = "startup"
	StageFetch   Stage = "fetch"
	StageRisk    Stage = "risk"
	StageSubmit  Stage = "submit"
	StageLog     Stage = "order_log"
	StageCycle   Stage = "cycle"
)

// Disposition is what the loop does about a StageError.
type Disposition string

const (
	// Skip: data unavailable, the cycle is a no-op.
	Skip Disposition = "skip"
	// ForceHold: the decision is treated as Hold.
	ForceHold Disposition = "hold"
	// Critical: the order is live but its bookkeeping failed.
	Critical Disposition = "critical"
	// Fatal: the process cannot start.
	Fatal Disposition = "fatal"
)

// StageError ties an error to the cycle stage it came from.
type StageError struct {
	Stage       Stage
	Disposition Disposition
	Err         error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage (%s): %v", e.Stage, e.Disposition, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
