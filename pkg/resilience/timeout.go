package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDeadline wraps context.DeadlineExceeded when WithTimeout's own limit,
// not the parent context, stopped the call.
var ErrDeadline = errors.New("call exceeded its time limit")

// WithTimeout runs fn with a derived context that is cancelled after
// timeout. A non-positive timeout runs fn with ctx unchanged. fn must honour
// its context; WithTimeout does not abandon it.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := fn(timeoutCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w (limit: %v): %w", name, ErrDeadline, timeout, err)
	}
	return err
}
