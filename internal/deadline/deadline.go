// Package deadline bounds a single operation with a clock-driven timer that
// cancels the operation's context when it fires.
package deadline

import (
	"context"
	"errors"
	"time"

	"k8s.io/utils/clock"
)

// ErrExpired is the cancellation cause recorded when the timer fires.
var ErrExpired = errors.New("deadline expired")

// WithTimeout derives a context that is cancelled with ErrExpired after d on
// clk. The returned cancel func stops the timer and must always be called.
func WithTimeout(parent context.Context, clk clock.WithDelayedExecution, d time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	t := clk.AfterFunc(d, func() {
		cancel(ErrExpired)
	})
	return ctx, func() {
		t.Stop()
		cancel(context.Canceled)
	}
}

// Expired reports whether ctx was cancelled because its deadline fired.
func Expired(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrExpired)
}
