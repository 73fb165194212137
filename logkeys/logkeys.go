// Package logkeys defines some static logging keys for consistent structured logging output.
// Mostly exists as a mental aid when drafting log messages.
package logkeys

const (
	Message = "msg"
	Error   = "err"

	// the cross-store join key of an asset (stores never share a row-id space)
	Serial = "serial"

	// the correlating identifier a share record carries in both stores
	AdminID = "admin_id"

	// which store a remote call targeted. i.e. "source" or "target"
	Store = "store"

	AssetID     = "asset_id"
	ShareID     = "share_id"
	ShareStatus = "share_status"

	Phase   = "phase"
	Outcome = "outcome"

	// polling accounting from the retrier
	Attempts = "attempts"
	Elapsed  = "elapsed"

	// a context-dependent numerical count/length of something
	GenericCount = "count"
)
