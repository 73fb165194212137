package share

import (
	"context"
	"fmt"

	"github.com/fleetlink/nanoshare/logkeys"
	"github.com/fleetlink/nanoshare/retry"
	"github.com/fleetlink/nanoshare/store"

	"github.com/micromdm/nanolib/log"
)

// reconcile forces the source asset's attributes onto the target record.
//
// The handshake auto-creates the target record but does not reliably carry
// the display attributes or group membership over, so the target record is
// treated as untrusted scaffolding and overwritten, never merged. This runs
// at the end of every share, including runs that found the handshake
// already complete. The target record itself appears asynchronously, so its
// lookup is polled.
func (s *Sharer) reconcile(ctx context.Context, logger log.Logger, src *store.Asset, adminID string) (*store.Asset, error) {
	serial := src.SerialNumber

	result, err := retry.Do(ctx, s.poller, func(ctx context.Context) (*store.Asset, bool, error) {
		a, err := s.target.RetrieveAssetBySerial(ctx, serial)
		return a, a != nil, err
	})
	if err != nil {
		s.phase(ctx, logger, serial, adminID, PhaseReconcile, OutcomeError, err)
		return nil, fmt.Errorf("retrieving target asset: %w", err)
	}
	if !result.Found {
		err = &TimeoutError{
			Phase:    PhaseReconcile,
			Attempts: result.Attempts,
			Elapsed:  result.Elapsed,
			err:      ErrPropagationTimeout,
		}
		s.phase(ctx, logger, serial, adminID, PhaseReconcile, OutcomeTimeout, err)
		return nil, err
	}

	target := result.Value
	target.Name = src.Name
	target.SerialNumber = src.SerialNumber
	target.LicensePlate = src.LicensePlate
	target.LicenseState = src.LicenseState
	if g, ok := singleAssetGroup(src); ok {
		target.Groups = []store.Group{g}
	}

	if err = s.target.StoreAsset(ctx, target); err != nil {
		s.phase(ctx, logger, serial, adminID, PhaseReconcile, OutcomeError, err)
		return nil, fmt.Errorf("storing target asset: %w", err)
	}
	logger.Debug(
		logkeys.Message, "reconciled target attributes",
		logkeys.AssetID, target.ID,
	)
	s.phase(ctx, logger, serial, adminID, PhaseReconcile, OutcomeOK, nil)
	return target, nil
}

// singleAssetGroup returns the asset's category group membership if the
// asset belongs to exactly one group of the built-in category kinds.
func singleAssetGroup(a *store.Asset) (store.Group, bool) {
	var matches []store.Group
	for _, g := range a.Groups {
		for _, kind := range store.AssetGroupKinds {
			if g.Kind == kind {
				matches = append(matches, g)
				break
			}
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return store.Group{}, false
}
