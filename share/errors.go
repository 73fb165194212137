package share

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotShareable indicates the asset failed the eligibility
	// precondition: it lacks a serial number or any billing plan.
	ErrNotShareable = errors.New("asset not shareable")

	// Poll budget exhaustion per phase. A higher layer may re-invoke the
	// whole workflow; every step re-derives its position from store state.
	ErrPropagationTimeout = errors.New("share propagation timeout")
	ErrActivationTimeout  = errors.New("share activation timeout")
	ErrTerminationTimeout = errors.New("share termination timeout")
)

// TimeoutError reports poll budget exhaustion waiting for a cross-store
// state to appear, with the attempt and elapsed-time accounting for
// diagnosis.
type TimeoutError struct {
	Phase    Phase
	Attempts int
	Elapsed  time.Duration

	err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v: phase %s after %d attempts in %v", e.err, e.Phase, e.Attempts, e.Elapsed)
}

func (e *TimeoutError) Unwrap() error {
	return e.err
}
