package share

import (
	"context"
	"time"
)

// Phase names a step of the share or unshare branch.
type Phase string

const (
	PhaseEligibility  Phase = "eligibility"
	PhaseAutoAccept   Phase = "auto_accept"
	PhaseCreate       Phase = "create"
	PhasePropagation  Phase = "propagation"
	PhaseApproval     Phase = "approval"
	PhaseActivation   Phase = "activation"
	PhaseReconcile    Phase = "reconcile"
	PhaseTermination  Phase = "termination"
	PhaseCancellation Phase = "cancellation"
	PhaseArchive      Phase = "archive"
)

// Outcome is how a phase concluded.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeTimeout Outcome = "timeout"
	OutcomeError   Outcome = "error"
)

// Event is one phase transition of a workflow invocation.
type Event struct {
	SerialNumber string    `json:"serial_number"`
	AdminID      string    `json:"admin_id,omitempty"`
	Phase        Phase     `json:"phase"`
	Outcome      Outcome   `json:"outcome"`
	Error        string    `json:"error,omitempty"`
	Time         time.Time `json:"time"`
}

// Recorders receive one event per phase transition.
// Recording failures do not fail the workflow; they are logged and dropped.
type Recorder interface {
	RecordPhase(ctx context.Context, e *Event) error
}

// NopRecorder discards phase events.
type NopRecorder struct{}

func (NopRecorder) RecordPhase(_ context.Context, _ *Event) error {
	return nil
}
