// Package store defines the records this workflow reads and writes on a
// remote telematics store and a narrow accessor for them.
//
// A store exposes four generic verbs (get, add, set, and a version-guarded
// settings update). The accessor types them for the three entity kinds the
// share workflow touches: assets, shares, and the auto-accept setting. The
// accessor never retries; waiting out eventual consistency is the caller's
// concern.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRemoteUnavailable indicates the store could not be reached.
	ErrRemoteUnavailable = errors.New("remote store unavailable")

	// ErrRemoteRejected indicates the store refused the request
	// (validation failure, stale settings version, etc.).
	ErrRemoteRejected = errors.New("remote store rejected request")
)

// ShareStatus is the lifecycle status of a share record.
// Statuses only ever advance; terminal records are left in place.
type ShareStatus string

const (
	SharePending           ShareStatus = "Pending"
	ShareRequestApproved   ShareStatus = "RequestApproved"
	ShareActive            ShareStatus = "Active"
	ShareRequestTerminated ShareStatus = "RequestTerminated"
	ShareTerminated        ShareStatus = "Terminated"
	ShareRequestCancelled  ShareStatus = "RequestCancelled"
)

// Group is an asset's membership in a category group.
type Group struct {
	ID string `json:"id"`

	// Kind names the built-in category the group belongs to.
	// Only the kinds in AssetGroupKinds survive reconciliation.
	Kind string `json:"kind,omitempty"`
}

// Built-in asset category group kinds.
const (
	GroupKindVehicle   = "GroupVehicleId"
	GroupKindTrailer   = "GroupTrailerId"
	GroupKindEquipment = "GroupEquipmentId"
)

// AssetGroupKinds is the closed set of category group kinds carried across
// stores by attribute reconciliation.
var AssetGroupKinds = []string{
	GroupKindVehicle,
	GroupKindTrailer,
	GroupKindEquipment,
}

// Asset is the shareable item (e.g. a vehicle tracking device).
// SerialNumber is the cross-store join key; stores never share an ID space.
type Asset struct {
	ID           string   `json:"id,omitempty"`
	SerialNumber string   `json:"serialNumber"`
	Name         string   `json:"name,omitempty"`
	LicensePlate string   `json:"licensePlate,omitempty"`
	LicenseState string   `json:"licenseState,omitempty"`
	Groups       []Group  `json:"groups,omitempty"`
	BillingPlans []string `json:"billingPlans,omitempty"`

	ActiveFrom time.Time `json:"activeFrom,omitempty"`
	ActiveTo   time.Time `json:"activeTo,omitempty"`
}

// Shareable reports whether the asset is eligible for sharing:
// it must carry a serial number and at least one billing plan.
func (a *Asset) Shareable() bool {
	return a != nil && a.SerialNumber != "" && len(a.BillingPlans) > 0
}

// Archived reports whether the asset's active window has been closed.
func (a *Asset) Archived() bool {
	return a != nil && !a.ActiveTo.IsZero() && !a.ActiveTo.After(time.Now())
}

// Share is one store's leg of a cross-store sharing relationship.
// AdminID is assigned by the source store at creation and is the only safe
// key for locating the matching record in the other store.
type Share struct {
	ID             string      `json:"id,omitempty"`
	AdminID        string      `json:"adminId,omitempty"`
	SerialNumber   string      `json:"serialNumber"`
	SourceDatabase string      `json:"sourceDatabase"`
	TargetDatabase string      `json:"targetDatabase"`
	Status         ShareStatus `json:"status"`
}

// ShareFilter selects share records. Zero-valued fields match anything.
type ShareFilter struct {
	ID           string
	SerialNumber string
	AdminID      string
	Status       ShareStatus
}

// Matches reports whether s satisfies every set field of f.
func (f *ShareFilter) Matches(s *Share) bool {
	if s == nil {
		return false
	}
	if f == nil {
		return true
	}
	if f.ID != "" && f.ID != s.ID {
		return false
	}
	if f.SerialNumber != "" && f.SerialNumber != s.SerialNumber {
		return false
	}
	if f.AdminID != "" && f.AdminID != s.AdminID {
		return false
	}
	if f.Status != "" && f.Status != s.Status {
		return false
	}
	return true
}

// AutoAcceptSetting is the store-level toggle causing incoming share
// requests to skip manual approval. Version is an opaque
// monotonically-increasing token the store requires echoed back unchanged
// on update.
type AutoAcceptSetting struct {
	Enabled bool   `json:"enabled"`
	Version string `json:"version"`
}

// Client is the narrow accessor for one store.
//
// Lookups report absence as (nil, nil), never as an error, so that pollers
// can distinguish "not there yet" from a failed call. Multiplicity is the
// caller's problem: retrieval by serial returns the first match.
type Client interface {
	// RetrieveAsset returns the asset with the given store-local ID.
	RetrieveAsset(ctx context.Context, id string) (*Asset, error)

	// RetrieveAssetBySerial returns the first asset matching serial.
	RetrieveAssetBySerial(ctx context.Context, serial string) (*Asset, error)

	// RetrieveShares returns all share records matching f, in store order.
	RetrieveShares(ctx context.Context, f *ShareFilter) ([]*Share, error)

	// CreateShare adds a new share record and returns its store-local ID.
	// The store assigns the correlating admin ID; re-retrieve by the
	// returned ID to learn it.
	CreateShare(ctx context.Context, s *Share) (string, error)

	// StoreShare replaces the full share record, identified by its ID.
	StoreShare(ctx context.Context, s *Share) error

	// StoreAsset replaces the full asset record, identified by its ID.
	StoreAsset(ctx context.Context, a *Asset) error

	// RetrieveAutoAccept returns the auto-accept setting and its
	// current version token.
	RetrieveAutoAccept(ctx context.Context) (*AutoAcceptSetting, error)

	// StoreAutoAccept updates the auto-accept setting. The setting's
	// version token must match the store's current one.
	StoreAutoAccept(ctx context.Context, s *AutoAcceptSetting) error
}
