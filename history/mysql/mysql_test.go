package mysql

import (
	"context"
	"os"
	"testing"

	"github.com/fleetlink/nanoshare/history"
	"github.com/fleetlink/nanoshare/share"

	_ "github.com/go-sql-driver/mysql"
)

func TestMySQLHistory(t *testing.T) {
	testDSN := os.Getenv("NANOSHARE_MYSQL_STORAGE_TEST_DSN")
	if testDSN == "" {
		t.Skip("NANOSHARE_MYSQL_STORAGE_TEST_DSN not set")
	}

	s, err := New(WithDSN(testDSN))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err = s.StoreEvent(ctx, nil); err == nil {
		t.Error("expected error for nil event")
	}
	if _, err = s.RetrieveEvents(ctx, nil); err == nil {
		t.Error("expected error for missing search options")
	}

	serial := "SN-MYSQL-TEST"
	for _, e := range []*share.Event{
		{SerialNumber: serial, Phase: share.PhaseEligibility, Outcome: share.OutcomeOK},
		{SerialNumber: serial, Phase: share.PhaseCreate, Outcome: share.OutcomeOK, AdminID: "a1"},
		{SerialNumber: serial, Phase: share.PhasePropagation, Outcome: share.OutcomeTimeout, Error: "propagation timed out"},
	} {
		if err = s.StoreEvent(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.RetrieveEvents(ctx, &history.SearchOptions{SerialNumber: serial})
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 3, len(events); want > have {
		t.Fatalf("wanted at least: %d events; have: %d", want, have)
	}
	last := events[len(events)-1]
	if want, have := share.PhasePropagation, last.Phase; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}
	if want, have := "propagation timed out", last.Error; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}

	// limit keeps the most recent events, in recording order
	events, err = s.RetrieveEvents(ctx, &history.SearchOptions{SerialNumber: serial, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if want, have := 2, len(events); want != have {
		t.Fatalf("wanted: %d events; have: %d", want, have)
	}
	if want, have := share.PhasePropagation, events[1].Phase; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}
}
