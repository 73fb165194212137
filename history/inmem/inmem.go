// Package inmem implements a phase event history backend backed by an
// in-memory key-value store.
package inmem

import (
	"github.com/fleetlink/nanoshare/history/kv"
	"github.com/fleetlink/nanoshare/utils/kv/kvmap"
)

// InMem is a phase event history backend backed by an in-memory key-value store.
type InMem struct {
	*kv.KV
}

func New() *InMem {
	return &InMem{KV: kv.New(kvmap.NewBucket())}
}
