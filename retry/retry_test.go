package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

// sleepRecorder replaces the poller sleep to capture the delay schedule.
func sleepRecorder(p *Poller) *[]time.Duration {
	delays := new([]time.Duration)
	p.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return delays
}

func TestDoFoundOnAttempt(t *testing.T) {
	p := New(WithConfig(Config{
		MaxAttempts:   12,
		QuickAttempts: 4,
		BaseDelay:     50 * time.Millisecond,
		MaxDelay:      2000 * time.Millisecond,
	}))
	delays := sleepRecorder(p)

	const foundOn = 7
	calls := 0
	result, err := Do(context.Background(), p, func(_ context.Context) (string, bool, error) {
		calls++
		if calls >= foundOn {
			return "hello", true, nil
		}
		return "", false, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Found {
		t.Fatal("expected found")
	}
	if want, have := "hello", result.Value; want != have {
		t.Errorf("wanted: %s; have: %s", want, have)
	}
	if want, have := foundOn, result.Attempts; want != have {
		t.Errorf("wanted: %d attempts; have: %d", want, have)
	}

	// one delay precedes every attempt but the first, and none follows success
	if want, have := foundOn-1, len(*delays); want != have {
		t.Fatalf("wanted: %d delays; have: %d", want, have)
	}

	// flat quick phase, then exponential: delay before attempt i (i > quick)
	// is min(max, base*2^(i-quick))
	want := []time.Duration{
		50 * time.Millisecond,  // attempt 2
		50 * time.Millisecond,  // attempt 3
		50 * time.Millisecond,  // attempt 4
		100 * time.Millisecond, // attempt 5
		200 * time.Millisecond, // attempt 6
		400 * time.Millisecond, // attempt 7
	}
	for i := range want {
		if want[i] != (*delays)[i] {
			t.Errorf("delay %d: wanted: %v; have: %v", i, want[i], (*delays)[i])
		}
	}
}

func TestDoDelayCap(t *testing.T) {
	p := New(WithConfig(Config{
		MaxAttempts:   12,
		QuickAttempts: 4,
		BaseDelay:     50 * time.Millisecond,
		MaxDelay:      2000 * time.Millisecond,
	}))
	delays := sleepRecorder(p)

	result, err := Do(context.Background(), p, func(_ context.Context) (int, bool, error) {
		return 0, false, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Found {
		t.Fatal("expected absence")
	}
	if want, have := 12, result.Attempts; want != have {
		t.Errorf("wanted: %d attempts; have: %d", want, have)
	}
	if want, have := 11, len(*delays); want != have {
		t.Fatalf("wanted: %d delays; have: %d", want, have)
	}
	// attempts 10, 11, 12 would be 3.2s, 6.4s, 12.8s uncapped
	for _, i := range []int{8, 9, 10} {
		if want, have := 2000*time.Millisecond, (*delays)[i]; want != have {
			t.Errorf("delay %d: wanted: %v; have: %v", i, want, have)
		}
	}
}

func TestDoLookupErrorAborts(t *testing.T) {
	p := New()
	sleepRecorder(p)

	boom := errors.New("lookup failed")
	calls := 0
	result, err := Do(context.Background(), p, func(_ context.Context) (int, bool, error) {
		calls++
		if calls == 3 {
			return 0, false, boom
		}
		return 0, false, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected lookup error; have: %v", err)
	}
	if want, have := 3, calls; want != have {
		t.Errorf("wanted: %d calls; have: %d", want, have)
	}
	if result.Found {
		t.Error("expected absence on error")
	}
	if want, have := 3, result.Attempts; want != have {
		t.Errorf("wanted: %d attempts; have: %d", want, have)
	}
}

func TestDoContextCancel(t *testing.T) {
	p := New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Do(ctx, p, func(_ context.Context) (int, bool, error) {
		return 0, false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled; have: %v", err)
	}
}
