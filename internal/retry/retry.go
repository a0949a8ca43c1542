// Package retry configures the one bounded exponential backoff schedule
// used throughout the pipeline (§5: "1s -> 180s cap, doubling, non-
// decreasing"): the WebSocket dial loop, the subscription fan-out, and the
// Exit Diagnoser's search polling all share this shape.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// InitialInterval and MaxInterval match §4.3/§4.6 exactly: start at 1s,
// double on every failure, cap at 180s.
const (
	InitialInterval = 1 * time.Second
	MaxInterval     = 180 * time.Second
)

// New returns a fresh exponential backoff schedule. RandomizationFactor is
// zero so the sequence of waits is strictly the doubling schedule the spec
// names, with no jitter to break the non-decreasing invariant (§8 property
// 3). MaxElapsedTime is zero (unlimited): these retry loops run until they
// succeed, since "the supervisor is always willing to wait" (§5).
func New() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = InitialInterval
	b.MaxInterval = MaxInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Wait sleeps for the schedule's next interval, or returns ctx.Err() early
// if ctx is canceled first.
func Wait(ctx context.Context, b *backoff.ExponentialBackOff) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.NextBackOff()):
		return nil
	}
}
