// Package diskv implements a phase event history backend backed by an
// on-disk key-value store.
package diskv

import (
	"path/filepath"

	"github.com/fleetlink/nanoshare/history/kv"
	"github.com/fleetlink/nanoshare/utils/kv/kvdiskv"
	"github.com/peterbourgon/diskv/v3"
)

// Diskv is a phase event history backend backed by an on-disk key-value store.
type Diskv struct {
	*kv.KV
}

// New creates a new initialized phase event history store.
func New(path string) *Diskv {
	flatTransform := func(s string) []string { return []string{} }
	return &Diskv{
		KV: kv.New(kvdiskv.NewBucket(diskv.New(diskv.Options{
			BasePath:     filepath.Join(path, "history"),
			Transform:    flatTransform,
			CacheSizeMax: 1024 * 1024,
		}))),
	}
}
