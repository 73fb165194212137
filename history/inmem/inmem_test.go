package inmem

import (
	"context"
	"testing"

	"github.com/fleetlink/nanoshare/history"
	"github.com/fleetlink/nanoshare/share"
)

func TestHistory(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.StoreEvent(ctx, nil); err == nil {
		t.Error("expected error for nil event")
	}
	if err := s.StoreEvent(ctx, &share.Event{Phase: share.PhaseCreate}); err == nil {
		t.Error("expected error for missing serial")
	}
	if _, err := s.RetrieveEvents(ctx, nil); err == nil {
		t.Error("expected error for missing search options")
	}

	events, err := s.RetrieveEvents(ctx, &history.SearchOptions{SerialNumber: "SN123"})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Fatal("expected no events")
	}

	for _, e := range []*share.Event{
		{SerialNumber: "SN123", Phase: share.PhaseEligibility, Outcome: share.OutcomeOK},
		{SerialNumber: "SN123", Phase: share.PhaseCreate, Outcome: share.OutcomeOK, AdminID: "a1"},
		{SerialNumber: "SN999", Phase: share.PhaseEligibility, Outcome: share.OutcomeError},
		{SerialNumber: "SN123", Phase: share.PhasePropagation, Outcome: share.OutcomeTimeout},
	} {
		if err = s.StoreEvent(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	events, err = s.RetrieveEvents(ctx, &history.SearchOptions{SerialNumber: "SN123"})
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 3, len(events); want != have {
		t.Fatalf("wanted: %d events; have: %d", want, have)
	}
	// recording order with per-event fields intact
	if want, have := share.PhaseCreate, events[1].Phase; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}
	if want, have := "a1", events[1].AdminID; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}

	// limit keeps the most recent events
	events, err = s.RetrieveEvents(ctx, &history.SearchOptions{SerialNumber: "SN123", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 1, len(events); want != have {
		t.Fatalf("wanted: %d events; have: %d", want, have)
	}
	if want, have := share.PhasePropagation, events[0].Phase; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}

	// the recorder adapter stores through
	rec := history.NewRecorder(s)
	if err = rec.RecordPhase(ctx, &share.Event{SerialNumber: "SN123", Phase: share.PhaseArchive, Outcome: share.OutcomeSkipped}); err != nil {
		t.Fatal(err)
	}
	events, err = s.RetrieveEvents(ctx, &history.SearchOptions{SerialNumber: "SN123"})
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 4, len(events); want != have {
		t.Errorf("wanted: %d events; have: %d", want, have)
	}
}
