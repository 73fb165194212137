// Package inmem implements an in-memory remote store.
//
// Two stores can be paired to simulate cross-store share propagation: a
// share created or transitioned on one store surfaces the corresponding
// change on its peer only after a configurable number of reads, mimicking
// the eventually-consistent replication between real stores. This is the
// reference store used by the workflow tests.
package inmem

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/fleetlink/nanoshare/store"
	"github.com/fleetlink/nanoshare/utils/uuid"
)

// rec is one share record plus its replication bookkeeping.
type rec struct {
	share store.Share

	// reads of this store remaining until the record is visible
	hidden int

	// pending status transition and reads remaining until it applies
	next   store.ShareStatus
	nextIn int

	// ID of the correlated record in the peer store, if any
	peerID string
}

// InMem is an in-memory remote store.
type InMem struct {
	mu   sync.Mutex
	name string
	ider uuid.IDer

	assetIDs []string
	assets   map[string]*store.Asset

	shareIDs []string
	shares   map[string]*rec

	autoAccept bool
	version    int

	peer  *InMem
	delay int

	mutations int
	creates   int
}

type Option func(*InMem)

// WithName sets the store's database name.
func WithName(name string) Option {
	return func(s *InMem) {
		s.name = name
	}
}

// WithIDer sets the ID generator used for share IDs and admin IDs.
func WithIDer(ider uuid.IDer) Option {
	return func(s *InMem) {
		s.ider = ider
	}
}

// New creates a new in-memory store.
func New(opts ...Option) *InMem {
	s := &InMem{
		name:    "inmem",
		ider:    uuid.NewUUID(),
		assets:  make(map[string]*store.Asset),
		shares:  make(map[string]*rec),
		version: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pair links source and target so share records and status transitions
// replicate between them. A change becomes visible on the other store only
// after delay reads of that store's share records.
func Pair(source, target *InMem, delay int) {
	source.peer, target.peer = target, source
	source.delay, target.delay = delay, delay
}

// AddAsset seeds an asset record, assigning an ID if it has none.
// Test fixture; not part of the store.Client interface.
func (s *InMem) AddAsset(a *store.Asset) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = "b" + strconv.Itoa(len(s.assetIDs)+1)
	}
	copied := *a
	s.assets[a.ID] = &copied
	s.assetIDs = append(s.assetIDs, a.ID)
	return a.ID
}

// AddShare seeds a share record as-is, with no replication bookkeeping.
// Test fixture; not part of the store.Client interface.
func (s *InMem) AddShare(sh *store.Share) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &rec{share: *sh}
	if r.share.ID == "" {
		r.share.ID = s.ider.ID()
	}
	if r.share.AdminID == "" {
		r.share.AdminID = s.ider.ID()
	}
	s.shares[r.share.ID] = r
	s.shareIDs = append(s.shareIDs, r.share.ID)
	return r.share.ID
}

// Mutations returns how many mutating calls the store has received.
func (s *InMem) Mutations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutations
}

// Creates returns how many CreateShare calls the store has received.
func (s *InMem) Creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates
}

// AutoAcceptEnabled reports the current auto-accept toggle.
func (s *InMem) AutoAcceptEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoAccept
}

func (s *InMem) RetrieveAsset(_ context.Context, id string) (*store.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()
	a, ok := s.assets[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (s *InMem) RetrieveAssetBySerial(_ context.Context, serial string) (*store.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()
	for _, id := range s.assetIDs {
		if s.assets[id].SerialNumber == serial {
			copied := *s.assets[id]
			return &copied, nil
		}
	}
	return nil, nil
}

// RetrieveShares returns visible share records matching f in creation order.
// Each call counts as one read toward replication visibility and pending
// transitions.
func (s *InMem) RetrieveShares(_ context.Context, f *store.ShareFilter) ([]*store.Share, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick()
	var matches []*store.Share
	for _, id := range s.shareIDs {
		r := s.shares[id]
		if r.hidden > 0 {
			continue
		}
		if f.Matches(&r.share) {
			copied := r.share
			matches = append(matches, &copied)
		}
	}
	return matches, nil
}

// tick advances replication bookkeeping by one read. Callers hold s.mu.
func (s *InMem) tick() {
	for _, id := range s.shareIDs {
		r := s.shares[id]
		if r.hidden > 0 {
			r.hidden--
			if r.hidden == 0 && s.autoAccept && r.share.Status == store.SharePending {
				// store-level auto-accept approves the incoming
				// share as soon as it surfaces
				s.scheduleBoth(r, store.ShareActive)
			}
			continue
		}
		if r.next != "" && r.nextIn > 0 {
			r.nextIn--
			if r.nextIn == 0 {
				next := r.next
				r.next = ""
				s.applyStatus(r, next)
			}
		}
	}
}

// applyStatus transitions r and, on target-side activation, creates the
// auto-generated asset record the handshake produces. Callers hold s.mu.
func (s *InMem) applyStatus(r *rec, status store.ShareStatus) {
	r.share.Status = status
	if status != store.ShareActive || r.share.TargetDatabase != s.name {
		return
	}
	for _, id := range s.assetIDs {
		if s.assets[id].SerialNumber == r.share.SerialNumber {
			return
		}
	}
	// scaffolding record: placeholder name and group membership
	id := "auto-" + strconv.Itoa(len(s.assetIDs)+1)
	s.assets[id] = &store.Asset{
		ID:           id,
		SerialNumber: r.share.SerialNumber,
		Name:         r.share.SerialNumber,
		Groups:       []store.Group{{ID: "default"}},
	}
	s.assetIDs = append(s.assetIDs, id)
}

// scheduleBoth schedules a status transition on r and its peer record.
// Callers hold s.mu (and must not hold the peer's).
func (s *InMem) scheduleBoth(r *rec, status store.ShareStatus) {
	r.next = status
	r.nextIn = s.delay
	if r.nextIn < 1 {
		r.next = ""
		s.applyStatus(r, status)
	}
	if s.peer == nil || r.peerID == "" {
		return
	}
	s.peer.mu.Lock()
	defer s.peer.mu.Unlock()
	if pr, ok := s.peer.shares[r.peerID]; ok {
		pr.next = status
		pr.nextIn = s.peer.delay
		if pr.nextIn < 1 {
			pr.next = ""
			s.peer.applyStatus(pr, status)
		}
	}
}

func (s *InMem) CreateShare(_ context.Context, sh *store.Share) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	s.creates++
	r := &rec{share: *sh}
	r.share.ID = s.ider.ID()
	r.share.AdminID = s.ider.ID()
	if r.share.Status == "" {
		r.share.Status = store.SharePending
	}
	s.shares[r.share.ID] = r
	s.shareIDs = append(s.shareIDs, r.share.ID)

	if s.peer != nil {
		s.peer.mu.Lock()
		pr := &rec{share: r.share, hidden: s.peer.delay, peerID: r.share.ID}
		pr.share.ID = "p-" + r.share.ID
		r.peerID = pr.share.ID
		s.peer.shares[pr.share.ID] = pr
		s.peer.shareIDs = append(s.peer.shareIDs, pr.share.ID)
		if s.peer.delay < 1 {
			pr.hidden = 0
			if s.peer.autoAccept && pr.share.Status == store.SharePending {
				s.peer.mu.Unlock()
				s.scheduleBoth(r, store.ShareActive)
				return r.share.ID, nil
			}
		}
		s.peer.mu.Unlock()
	}
	return r.share.ID, nil
}

func (s *InMem) StoreShare(_ context.Context, sh *store.Share) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	r, ok := s.shares[sh.ID]
	if !ok {
		return fmt.Errorf("%w: no share with id %s", store.ErrRemoteRejected, sh.ID)
	}
	prev := r.share.Status
	r.share = *sh
	if r.share.Status == prev || r.peerID == "" {
		// without a replicated counterpart there is no other party to
		// act on a request status; it stands as written
		return nil
	}
	switch r.share.Status {
	case store.ShareRequestApproved:
		s.scheduleBoth(r, store.ShareActive)
	case store.ShareRequestTerminated:
		s.scheduleBoth(r, store.ShareTerminated)
	}
	return nil
}

func (s *InMem) StoreAsset(_ context.Context, a *store.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	if _, ok := s.assets[a.ID]; !ok {
		return fmt.Errorf("%w: no asset with id %s", store.ErrRemoteRejected, a.ID)
	}
	copied := *a
	s.assets[a.ID] = &copied
	return nil
}

func (s *InMem) RetrieveAutoAccept(_ context.Context) (*store.AutoAcceptSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &store.AutoAcceptSetting{
		Enabled: s.autoAccept,
		Version: strconv.Itoa(s.version),
	}, nil
}

func (s *InMem) StoreAutoAccept(_ context.Context, setting *store.AutoAcceptSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mutations++
	if setting.Version != strconv.Itoa(s.version) {
		return fmt.Errorf("%w: stale settings version %s", store.ErrRemoteRejected, setting.Version)
	}
	s.autoAccept = setting.Enabled
	s.version++
	return nil
}
