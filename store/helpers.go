package store

import (
	"context"
	"fmt"
	"time"
)

// FirstShare returns the first share record matching f, or nil if none match.
func FirstShare(ctx context.Context, c Client, f *ShareFilter) (*Share, error) {
	shares, err := c.RetrieveShares(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(shares) < 1 {
		return nil, nil
	}
	return shares[0], nil
}

// SetAutoAccept sets the store-level auto-accept toggle using a
// read-modify-write that echoes the store's current version token.
// Safe to call repeatedly.
func SetAutoAccept(ctx context.Context, c Client, enabled bool) error {
	setting, err := c.RetrieveAutoAccept(ctx)
	if err != nil {
		return fmt.Errorf("retrieving auto-accept setting: %w", err)
	}
	if setting == nil {
		setting = new(AutoAcceptSetting)
	}
	setting.Enabled = enabled
	if err = c.StoreAutoAccept(ctx, setting); err != nil {
		return fmt.Errorf("storing auto-accept setting: %w", err)
	}
	return nil
}

// ArchiveAsset closes the asset's active window by setting ActiveTo to now.
// The record is updated, not deleted.
func ArchiveAsset(ctx context.Context, c Client, a *Asset) error {
	if a == nil {
		return fmt.Errorf("archiving asset: nil asset")
	}
	a.ActiveTo = time.Now().UTC()
	return c.StoreAsset(ctx, a)
}
