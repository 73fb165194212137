// Package history defines storage of recorded workflow phase events.
//
// The workflow emits one event per phase transition; keeping them queryable
// per serial number gives operators a trail of what each share or unshare
// invocation actually did against the two stores.
package history

import (
	"context"

	"github.com/fleetlink/nanoshare/share"
)

// SearchOptions selects stored events.
type SearchOptions struct {
	// SerialNumber of the asset the events belong to. Required.
	SerialNumber string

	// Limit caps the result to the most recent events. Zero means all.
	Limit int
}

type ReadStorage interface {
	// RetrieveEvents returns stored events in recording order.
	RetrieveEvents(ctx context.Context, opt *SearchOptions) ([]*share.Event, error)
}

type Storage interface {
	ReadStorage

	// StoreEvent appends one phase event.
	StoreEvent(ctx context.Context, e *share.Event) error
}

// Recorder adapts a Storage to the workflow's phase event recorder.
type Recorder struct {
	store Storage
}

func NewRecorder(store Storage) *Recorder {
	if store == nil {
		panic("nil store")
	}
	return &Recorder{store: store}
}

// RecordPhase stores the event.
func (r *Recorder) RecordPhase(ctx context.Context, e *share.Event) error {
	return r.store.StoreEvent(ctx, e)
}
