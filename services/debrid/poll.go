package debrid

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"resolvarr/models"
)

// PollPolicy controls how long ResolveStream waits for a backend to finish
// preparing a stream.
type PollPolicy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  uint
	// Timer overrides the sleep source; tests use it to avoid real waits.
	Timer retry.Timer
}

// DefaultPollPolicy waits 0.5s, 1s, 2s, 4s and then 5s between attempts, for
// at most 30 attempts.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		MaxAttempts:  30,
	}
}

// Delay returns the wait before retry number n (0-based).
func (p PollPolicy) Delay(n uint) time.Duration {
	d := p.InitialDelay
	for i := uint(0); i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return min(d, p.MaxDelay)
}

// Poll calls fetch until it succeeds, fails with anything other than
// fileNotReady, the context ends, or the attempts run out. Running out of
// attempts while the backend is still not ready yields a timeout error. It
// also returns the number of attempts made.
func (p PollPolicy) Poll(ctx context.Context, fetch func(context.Context) (*models.StreamInfo, error)) (*models.StreamInfo, int, error) {
	attempts := 0
	retries := uint(0)

	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(p.MaxAttempts),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsFileNotReady),
		retry.DelayType(func(_ uint, _ error, _ *retry.Config) time.Duration {
			d := p.Delay(retries)
			retries++
			return d
		}),
	}
	if p.Timer != nil {
		opts = append(opts, retry.WithTimer(p.Timer))
	}

	info, err := retry.DoWithData(func() (*models.StreamInfo, error) {
		if err := ctx.Err(); err != nil {
			return nil, retry.Unrecoverable(err)
		}
		attempts++
		return fetch(ctx)
	}, opts...)
	if err == nil {
		return info, attempts, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil, attempts, ctxErr
	}
	// timeout must not unwrap to fileNotReady
	if IsFileNotReady(err) {
		var backend models.BackendType
		var e *Error
		if errors.As(err, &e) {
			backend = e.Backend
		}
		return nil, attempts, &Error{
			Kind:    KindTimeout,
			Backend: backend,
			Reason:  "stream not ready after " + strconv.Itoa(attempts) + " attempts",
		}
	}
	return nil, attempts, err
}
