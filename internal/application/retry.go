package application

import (
	"context"
	"fmt"
	"time"

	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/pkg/apperrors"
)

// RetryPolicy bounds how often a probe is attempted.
type RetryPolicy struct {
	MaxTries int
	Delay    time.Duration
}

// Validate rejects MaxTries below one and negative delays.
func (p RetryPolicy) Validate() error {
	if p.MaxTries < 1 {
		return fmt.Errorf("%w: max tries must be at least 1, got %d", apperrors.ErrInvalidInput, p.MaxTries)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w: retry delay cannot be negative, got %v", apperrors.ErrInvalidInput, p.Delay)
	}
	return nil
}

// Retry runs call up to policy.MaxTries times, sleeping policy.Delay between attempts.
// RPC errors end the loop at once. Elapsed in the outcome sums the attempts only, not the delays.
// A cancelled ctx stops further attempts and the last failure is reported.
func Retry[T any](
	ctx context.Context,
	policy RetryPolicy,
	name string,
	call func(ctx context.Context) (T, error),
) (T, entity.ProbeOutcome) {
	var zero T
	outcome := entity.ProbeOutcome{Name: name}

	if err := policy.Validate(); err != nil {
		outcome.Kind = entity.FailureTransport
		outcome.Err = err
		return zero, outcome
	}

	for attempt := 1; attempt <= policy.MaxTries; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, policy.Delay); err != nil {
				break
			}
		}

		start := time.Now()
		value, err := call(ctx)
		outcome.Elapsed += time.Since(start)
		outcome.Attempts = attempt

		if err == nil {
			outcome.Kind = entity.FailureNone
			outcome.Err = nil
			return value, outcome
		}

		outcome.Kind = entity.KindOf(err)
		outcome.Err = err
		if !outcome.Kind.Retryable() {
			break
		}
	}

	return zero, outcome
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
