// Package kv implements a phase event history backend using JSON with
// key-value storage.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/fleetlink/nanoshare/history"
	"github.com/fleetlink/nanoshare/share"
	"github.com/fleetlink/nanoshare/utils/kv"
)

const keySfxCount = ".count"

// KV is a phase event history backend using JSON with key-value storage.
// Events are keyed per serial number with a rolling per-serial counter.
type KV struct {
	mu sync.RWMutex
	b  kv.Bucket
}

func New(b kv.Bucket) *KV {
	return &KV{b: b}
}

func (s *KV) count(ctx context.Context, serial string) (int, error) {
	raw, err := kv.GetOrNil(ctx, s.b, serial+keySfxCount)
	if err != nil || raw == nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing event count: %w", err)
	}
	return n, nil
}

// StoreEvent appends e under its serial number.
func (s *KV) StoreEvent(ctx context.Context, e *share.Event) error {
	if e == nil || e.SerialNumber == "" {
		return errors.New("invalid event")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.count(ctx, e.SerialNumber)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	m := make(map[string][]byte)
	m[e.SerialNumber+"."+strconv.Itoa(n)] = raw
	m[e.SerialNumber+keySfxCount] = []byte(strconv.Itoa(n + 1))
	return kv.SetMap(ctx, s.b, m)
}

// RetrieveEvents returns the events stored for opt.SerialNumber in
// recording order, newest-limited by opt.Limit.
func (s *KV) RetrieveEvents(ctx context.Context, opt *history.SearchOptions) ([]*share.Event, error) {
	if opt == nil || opt.SerialNumber == "" {
		return nil, errors.New("no serial number specified")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.count(ctx, opt.SerialNumber)
	if err != nil || n < 1 {
		return nil, err
	}
	start := 0
	if opt.Limit > 0 && n > opt.Limit {
		start = n - opt.Limit
	}
	var events []*share.Event
	for i := start; i < n; i++ {
		raw, err := s.b.Get(ctx, opt.SerialNumber+"."+strconv.Itoa(i))
		if err != nil {
			return events, fmt.Errorf("getting event %d: %w", i, err)
		}
		e := new(share.Event)
		if err = json.Unmarshal(raw, e); err != nil {
			return events, fmt.Errorf("unmarshal event %d: %w", i, err)
		}
		events = append(events, e)
	}
	return events, nil
}
