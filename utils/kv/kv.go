// Package kv defines an interface for a key-value store.
package kv

import (
	"context"
	"fmt"
)

// Bucket defines basic CRUD operations for key-value pairs in a single "namespace."
type Bucket interface {
	Get(ctx context.Context, k string) (v []byte, err error)
	Set(ctx context.Context, k string, v []byte) error
	Has(ctx context.Context, k string) (found bool, err error)
	Delete(ctx context.Context, k string) error
}

// GetOrNil returns the value for k in b, or nil if k is not present.
// Absence is not an error; implementations that report missing keys as
// errors are normalized here.
func GetOrNil(ctx context.Context, b Bucket, k string) ([]byte, error) {
	ok, err := b.Has(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", k, err)
	}
	if !ok {
		return nil, nil
	}
	v, err := b.Get(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", k, err)
	}
	return v, nil
}

// SetMap iterates over m to set the keys in b and returns any error.
func SetMap(ctx context.Context, b Bucket, m map[string][]byte) error {
	var err error
	for k, v := range m {
		if err = b.Set(ctx, k, v); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return nil
}
