// Package retry implements bounded polling for eventually-consistent lookups.
//
// A lookup is repeatedly invoked until it reports a value or the attempt
// budget runs out. Only "not found yet" is retried: an error from the lookup
// aborts polling immediately. The delay schedule has two phases: a quick
// phase of flat delays for state that usually propagates fast, then
// exponential backoff capped at a maximum delay.
package retry

import (
	"context"
	"time"
)

// Default polling configuration. Propagation between stores should be fast
// but is not synchronous; the worst-case total wait stays in the tens of
// seconds.
const (
	DefaultMaxAttempts   = 12
	DefaultQuickAttempts = 4
	DefaultBaseDelay     = 50 * time.Millisecond
	DefaultMaxDelay      = 2000 * time.Millisecond
)

// Config configures the polling attempt budget and delay schedule.
type Config struct {
	// MaxAttempts is the total lookup invocation budget.
	MaxAttempts int

	// QuickAttempts is the length of the flat-delay phase.
	// Attempts beyond it are delayed with exponential backoff.
	QuickAttempts int

	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Lookup is a single polling probe.
// It reports the found value, whether it was found, and any lookup error.
// Absence must be reported via the bool, not an error.
type Lookup[T any] func(ctx context.Context) (T, bool, error)

// Result accounts for a finished poll, found or not.
type Result[T any] struct {
	Value    T
	Found    bool
	Attempts int
	Elapsed  time.Duration
}

// Poller polls lookups per a configuration.
type Poller struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

type Option func(*Poller)

// WithConfig sets the poller attempt budget and delay schedule.
func WithConfig(config Config) Option {
	return func(p *Poller) {
		p.config = config
	}
}

// New creates a new poller with default configuration.
func New(opts ...Option) *Poller {
	p := &Poller{
		config: Config{
			MaxAttempts:   DefaultMaxAttempts,
			QuickAttempts: DefaultQuickAttempts,
			BaseDelay:     DefaultBaseDelay,
			MaxDelay:      DefaultMaxDelay,
		},
		sleep: sleepCtx,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.config.MaxAttempts < 1 {
		p.config.MaxAttempts = 1
	}
	return p
}

// Config returns the poller configuration.
func (p *Poller) Config() Config {
	return p.config
}

// delay returns the sleep inserted before attempt number i (1-indexed).
// No delay precedes the first attempt. Attempts through the quick phase
// wait a flat BaseDelay; later attempts back off exponentially up to
// MaxDelay.
func (p *Poller) delay(i int) time.Duration {
	if i <= 1 {
		return 0
	}
	if i <= p.config.QuickAttempts {
		return p.config.BaseDelay
	}
	d := p.config.BaseDelay << uint(i-p.config.QuickAttempts)
	if d <= 0 || d > p.config.MaxDelay {
		return p.config.MaxDelay
	}
	return d
}

// Do polls lookup until it reports a value or p's attempt budget is
// exhausted. The returned result carries the attempt count and elapsed
// wall-clock time either way; callers decide whether absence is fatal.
// A lookup error aborts immediately and is returned with the accounting
// so far. No delay is inserted after the final attempt.
func Do[T any](ctx context.Context, p *Poller, lookup Lookup[T]) (*Result[T], error) {
	start := time.Now()
	result := new(Result[T])
	for i := 1; i <= p.config.MaxAttempts; i++ {
		if d := p.delay(i); d > 0 {
			if err := p.sleep(ctx, d); err != nil {
				result.Elapsed = time.Since(start)
				return result, err
			}
		}
		result.Attempts = i
		v, found, err := lookup(ctx)
		result.Elapsed = time.Since(start)
		if err != nil {
			return result, err
		}
		if found {
			result.Value = v
			result.Found = true
			return result, nil
		}
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
