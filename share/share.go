// Package share implements the cross-store asset share workflow.
//
// A share is a two-party handshake between a source and a target store that
// do not share a clock, a transaction log, or synchronous notification.
// Every step can race, partially apply, or be found already done by a
// previous failed run, so each branch re-derives its position from current
// store state before acting and bounded polling is the only synchronization
// primitive. Repeated invocation is safe: a fully-shared asset shares as a
// no-op (plus reconciliation) and a half-finished run is picked up where the
// stores say it stopped.
//
// Invocations for different assets may run concurrently; concurrent
// invocations for the same asset are caller misuse and are not guarded
// against.
package share

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetlink/nanoshare/logkeys"
	"github.com/fleetlink/nanoshare/retry"
	"github.com/fleetlink/nanoshare/store"

	"github.com/micromdm/nanolib/log"
	"github.com/micromdm/nanolib/log/ctxlog"
)

// Sharer drives the share and unshare branches between two stores.
type Sharer struct {
	source store.Client
	target store.Client

	// database names written into new share records
	sourceName string
	targetName string

	poller     *retry.Poller
	autoAccept bool
	recorder   Recorder
	logger     log.Logger
}

type Option func(*Sharer)

// WithLogger sets the workflow logger.
func WithLogger(logger log.Logger) Option {
	return func(s *Sharer) {
		s.logger = logger
	}
}

// WithPoller sets the poller used for all propagation waits.
func WithPoller(p *retry.Poller) Option {
	return func(s *Sharer) {
		s.poller = p
	}
}

// WithManualApproval makes the workflow approve the incoming target share
// itself instead of relying on the target store's auto-accept setting.
func WithManualApproval() Option {
	return func(s *Sharer) {
		s.autoAccept = false
	}
}

// WithRecorder sets the phase event recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Sharer) {
		s.recorder = r
	}
}

// New creates a new sharer between the source and target stores.
// The database names are written into share records so either store can
// name the two parties.
func New(source, target store.Client, sourceName, targetName string, opts ...Option) *Sharer {
	if source == nil || target == nil {
		panic("nil store client")
	}
	s := &Sharer{
		source:     source,
		target:     target,
		sourceName: sourceName,
		targetName: targetName,
		poller:     retry.New(),
		autoAccept: true,
		recorder:   NopRecorder{},
		logger:     log.NopLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the outcome of one workflow invocation.
// TargetAsset is nil if the target record was never resolved.
type Result struct {
	OK          bool
	TargetAsset *store.Asset
}

// Process runs the share branch when shareIntent is true, the unshare
// branch otherwise, for the source store asset with the given ID.
func (s *Sharer) Process(ctx context.Context, assetID string, shareIntent bool) (*Result, error) {
	if shareIntent {
		return s.Share(ctx, assetID)
	}
	return s.Unshare(ctx, assetID)
}

// event logs a phase transition and hands it to the recorder.
func (s *Sharer) event(ctx context.Context, logger log.Logger, e *Event, err error) {
	e.Time = time.Now().UTC()
	if err != nil {
		e.Error = err.Error()
	}
	logs := []interface{}{
		logkeys.Message, "phase transition",
		logkeys.Phase, string(e.Phase),
		logkeys.Outcome, string(e.Outcome),
	}
	if e.AdminID != "" {
		logs = append(logs, logkeys.AdminID, e.AdminID)
	}
	if err != nil {
		logs = append(logs, logkeys.Error, err)
		logger.Info(logs...)
	} else {
		logger.Debug(logs...)
	}
	if rErr := s.recorder.RecordPhase(ctx, e); rErr != nil {
		logger.Info(logkeys.Message, "recording phase event", logkeys.Error, rErr)
	}
}

func (s *Sharer) phase(ctx context.Context, logger log.Logger, serial, adminID string, phase Phase, outcome Outcome, err error) {
	s.event(ctx, logger, &Event{
		SerialNumber: serial,
		AdminID:      adminID,
		Phase:        phase,
		Outcome:      outcome,
	}, err)
}

// Share runs the share branch: eligibility, auto-accept, create (or adopt
// an existing share), propagation wait, approval, activation wait, and
// attribute reconciliation.
func (s *Sharer) Share(ctx context.Context, assetID string) (*Result, error) {
	logger := ctxlog.Logger(ctx, s.logger).With(logkeys.AssetID, assetID)

	asset, err := s.source.RetrieveAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("retrieving source asset: %w", err)
	}
	if !asset.Shareable() {
		serial := ""
		if asset != nil {
			serial = asset.SerialNumber
		}
		err = fmt.Errorf("%w: serial number and a billing plan are required", ErrNotShareable)
		s.phase(ctx, logger, serial, "", PhaseEligibility, OutcomeError, err)
		return nil, err
	}
	serial := asset.SerialNumber
	logger = logger.With(logkeys.Serial, serial)
	s.phase(ctx, logger, serial, "", PhaseEligibility, OutcomeOK, nil)

	if s.autoAccept {
		// idempotent; safe to set on every run
		if err = store.SetAutoAccept(ctx, s.target, true); err != nil {
			s.phase(ctx, logger, serial, "", PhaseAutoAccept, OutcomeError, err)
			return nil, fmt.Errorf("enabling auto-accept on target: %w", err)
		}
		s.phase(ctx, logger, serial, "", PhaseAutoAccept, OutcomeOK, nil)
	} else {
		s.phase(ctx, logger, serial, "", PhaseAutoAccept, OutcomeSkipped, nil)
	}

	// a previous run may already have completed the handshake
	active, err := store.FirstShare(ctx, s.target, &store.ShareFilter{
		SerialNumber: serial,
		Status:       store.ShareActive,
	})
	if err != nil {
		return nil, fmt.Errorf("checking target for active share: %w", err)
	}

	var adminID string
	if active != nil {
		adminID = active.AdminID
		logger.Info(
			logkeys.Message, "share already active on target",
			logkeys.AdminID, adminID,
		)
		s.phase(ctx, logger, serial, adminID, PhaseCreate, OutcomeSkipped, nil)
	} else {
		adminID, err = s.establish(ctx, logger, serial)
		if err != nil {
			return nil, err
		}
	}

	targetAsset, err := s.reconcile(ctx, logger, asset, adminID)
	if err != nil {
		return nil, err
	}
	return &Result{OK: true, TargetAsset: targetAsset}, nil
}

// establish creates (or adopts) the source share, waits for it to propagate
// to the target, approves it if needed, and waits for activation.
// Returns the correlating admin ID.
func (s *Sharer) establish(ctx context.Context, logger log.Logger, serial string) (string, error) {
	// a previous run may have created the share and failed later
	pending, err := store.FirstShare(ctx, s.source, &store.ShareFilter{
		SerialNumber: serial,
		Status:       store.SharePending,
	})
	if err != nil {
		return "", fmt.Errorf("checking source for pending share: %w", err)
	}
	if pending != nil {
		logger.Info(
			logkeys.Message, "reusing pending share from a previous run",
			logkeys.ShareID, pending.ID,
		)
		s.phase(ctx, logger, serial, pending.AdminID, PhaseCreate, OutcomeSkipped, nil)
	} else {
		id, err := s.source.CreateShare(ctx, &store.Share{
			SerialNumber:   serial,
			SourceDatabase: s.sourceName,
			TargetDatabase: s.targetName,
			Status:         store.SharePending,
		})
		if err != nil {
			s.phase(ctx, logger, serial, "", PhaseCreate, OutcomeError, err)
			return "", fmt.Errorf("creating share: %w", err)
		}
		// re-fetch to learn the store-assigned admin ID
		pending, err = store.FirstShare(ctx, s.source, &store.ShareFilter{ID: id})
		if err != nil {
			return "", fmt.Errorf("retrieving created share %s: %w", id, err)
		}
		if pending == nil {
			err = fmt.Errorf("created share %s not found on source", id)
			s.phase(ctx, logger, serial, "", PhaseCreate, OutcomeError, err)
			return "", err
		}
		s.phase(ctx, logger, serial, pending.AdminID, PhaseCreate, OutcomeOK, nil)
	}
	adminID := pending.AdminID
	logger = logger.With(logkeys.AdminID, adminID)

	// wait for the share to surface on the target, any status
	result, err := retry.Do(ctx, s.poller, func(ctx context.Context) (*store.Share, bool, error) {
		sh, err := store.FirstShare(ctx, s.target, &store.ShareFilter{AdminID: adminID})
		return sh, sh != nil, err
	})
	if err != nil {
		s.phase(ctx, logger, serial, adminID, PhasePropagation, OutcomeError, err)
		return "", fmt.Errorf("waiting for share propagation: %w", err)
	}
	if !result.Found {
		err = &TimeoutError{
			Phase:    PhasePropagation,
			Attempts: result.Attempts,
			Elapsed:  result.Elapsed,
			err:      ErrPropagationTimeout,
		}
		s.phase(ctx, logger, serial, adminID, PhasePropagation, OutcomeTimeout, err)
		return "", err
	}
	s.phase(ctx, logger, serial, adminID, PhasePropagation, OutcomeOK, nil)

	targetShare := result.Value
	if targetShare.Status != store.SharePending {
		// e.g. already active; approval and activation already happened
		logger.Info(
			logkeys.Message, "target share not pending, skipping approval",
			logkeys.ShareStatus, string(targetShare.Status),
		)
		s.phase(ctx, logger, serial, adminID, PhaseApproval, OutcomeSkipped, nil)
		return adminID, nil
	}

	if !s.autoAccept {
		targetShare.Status = store.ShareRequestApproved
		if err = s.target.StoreShare(ctx, targetShare); err != nil {
			s.phase(ctx, logger, serial, adminID, PhaseApproval, OutcomeError, err)
			return "", fmt.Errorf("approving target share: %w", err)
		}
		s.phase(ctx, logger, serial, adminID, PhaseApproval, OutcomeOK, nil)
	} else {
		// the store-level setting approves for us
		s.phase(ctx, logger, serial, adminID, PhaseApproval, OutcomeSkipped, nil)
	}

	// activation is asynchronous even when auto-accept approved the share
	result, err = retry.Do(ctx, s.poller, func(ctx context.Context) (*store.Share, bool, error) {
		sh, err := store.FirstShare(ctx, s.source, &store.ShareFilter{
			AdminID: adminID,
			Status:  store.ShareActive,
		})
		return sh, sh != nil, err
	})
	if err != nil {
		s.phase(ctx, logger, serial, adminID, PhaseActivation, OutcomeError, err)
		return "", fmt.Errorf("waiting for share activation: %w", err)
	}
	if !result.Found {
		err = &TimeoutError{
			Phase:    PhaseActivation,
			Attempts: result.Attempts,
			Elapsed:  result.Elapsed,
			err:      ErrActivationTimeout,
		}
		s.phase(ctx, logger, serial, adminID, PhaseActivation, OutcomeTimeout, err)
		return "", err
	}
	s.phase(ctx, logger, serial, adminID, PhaseActivation, OutcomeOK, nil)
	return adminID, nil
}

// Unshare runs the unshare branch: terminate every active share of the
// asset (preferring target-side termination), cancel pending ones on the
// source, and archive the target record if one was resolved.
func (s *Sharer) Unshare(ctx context.Context, assetID string) (*Result, error) {
	logger := ctxlog.Logger(ctx, s.logger).With(logkeys.AssetID, assetID)

	asset, err := s.source.RetrieveAsset(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("retrieving source asset: %w", err)
	}
	if asset == nil {
		return nil, fmt.Errorf("source asset not found: %s", assetID)
	}
	serial := asset.SerialNumber
	logger = logger.With(logkeys.Serial, serial)

	targetAsset, err := s.target.RetrieveAssetBySerial(ctx, serial)
	if err != nil {
		return nil, fmt.Errorf("retrieving target asset: %w", err)
	}

	// all shares for the serial; historical records may coexist
	shares, err := s.source.RetrieveShares(ctx, &store.ShareFilter{SerialNumber: serial})
	if err != nil {
		return nil, fmt.Errorf("retrieving source shares: %w", err)
	}
	logger.Debug(
		logkeys.Message, "retrieved source shares",
		logkeys.GenericCount, len(shares),
	)

	for _, sh := range shares {
		switch sh.Status {
		case store.ShareActive:
			if err = s.terminate(ctx, logger, serial, sh); err != nil {
				return nil, err
			}
		case store.SharePending:
			// cancellation is source-only by protocol
			sh.Status = store.ShareRequestCancelled
			if err = s.source.StoreShare(ctx, sh); err != nil {
				s.phase(ctx, logger, serial, sh.AdminID, PhaseCancellation, OutcomeError, err)
				return nil, fmt.Errorf("cancelling pending share: %w", err)
			}
			s.phase(ctx, logger, serial, sh.AdminID, PhaseCancellation, OutcomeOK, nil)
		default:
			// terminal or in-flight records are left in place
		}
	}

	if targetAsset == nil {
		// nothing to archive
		s.phase(ctx, logger, serial, "", PhaseArchive, OutcomeSkipped, nil)
		return &Result{OK: true}, nil
	}
	if err = store.ArchiveAsset(ctx, s.target, targetAsset); err != nil {
		s.phase(ctx, logger, serial, "", PhaseArchive, OutcomeError, err)
		return nil, fmt.Errorf("archiving target asset: %w", err)
	}
	s.phase(ctx, logger, serial, "", PhaseArchive, OutcomeOK, nil)
	return &Result{OK: true, TargetAsset: targetAsset}, nil
}

// terminate tears down one active share. Target-side termination is
// preferred because it propagates back to the source more synchronously
// than the reverse; terminating directly on the source is the fallback and
// is treated as immediately authoritative (no poll).
func (s *Sharer) terminate(ctx context.Context, logger log.Logger, serial string, sh *store.Share) error {
	logger = logger.With(logkeys.AdminID, sh.AdminID)

	targetShare, err := store.FirstShare(ctx, s.target, &store.ShareFilter{
		AdminID: sh.AdminID,
		Status:  store.ShareActive,
	})
	if err != nil {
		return fmt.Errorf("checking target for active share: %w", err)
	}

	if targetShare == nil {
		sh.Status = store.ShareRequestTerminated
		if err = s.source.StoreShare(ctx, sh); err != nil {
			s.phase(ctx, logger, serial, sh.AdminID, PhaseTermination, OutcomeError, err)
			return fmt.Errorf("terminating share on source: %w", err)
		}
		logger.Info(logkeys.Message, "terminated share directly on source")
		s.phase(ctx, logger, serial, sh.AdminID, PhaseTermination, OutcomeOK, nil)
		return nil
	}

	targetShare.Status = store.ShareRequestTerminated
	if err = s.target.StoreShare(ctx, targetShare); err != nil {
		s.phase(ctx, logger, serial, sh.AdminID, PhaseTermination, OutcomeError, err)
		return fmt.Errorf("terminating share on target: %w", err)
	}

	result, err := retry.Do(ctx, s.poller, func(ctx context.Context) (*store.Share, bool, error) {
		found, err := store.FirstShare(ctx, s.source, &store.ShareFilter{
			AdminID: sh.AdminID,
			Status:  store.ShareTerminated,
		})
		return found, found != nil, err
	})
	if err != nil {
		s.phase(ctx, logger, serial, sh.AdminID, PhaseTermination, OutcomeError, err)
		return fmt.Errorf("waiting for share termination: %w", err)
	}
	if !result.Found {
		err = &TimeoutError{
			Phase:    PhaseTermination,
			Attempts: result.Attempts,
			Elapsed:  result.Elapsed,
			err:      ErrTerminationTimeout,
		}
		s.phase(ctx, logger, serial, sh.AdminID, PhaseTermination, OutcomeTimeout, err)
		return err
	}
	s.phase(ctx, logger, serial, sh.AdminID, PhaseTermination, OutcomeOK, nil)
	return nil
}
