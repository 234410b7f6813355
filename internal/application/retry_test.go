package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rpc-scanner/internal/domain/entity"
	"rpc-scanner/internal/pkg/apperrors"
)

func TestRetryPermanentFailureUsesEveryAttempt(t *testing.T) {
	kinds := []entity.FailureKind{
		entity.FailureConnectionRefused,
		entity.FailureTimeout,
		entity.FailureTransport,
		entity.FailureMalformedResponse,
	}

	for _, kind := range kinds {
		for n := 1; n <= 5; n++ {
			t.Run(fmt.Sprintf("%s/%d", kind, n), func(t *testing.T) {
				calls := 0
				_, outcome := Retry(context.Background(), RetryPolicy{MaxTries: n}, "m",
					func(context.Context) (int, error) {
						calls++
						return 0, probeErr(kind, "m")
					},
				)

				assert.Equal(t, n, calls)
				assert.Equal(t, n, outcome.Attempts)
				assert.Equal(t, kind, outcome.Kind)
				assert.Equal(t, n-1, outcome.Retries())
				assert.False(t, outcome.Succeeded())
			})
		}
	}
}

func TestRetryRPCErrorIsFinal(t *testing.T) {
	for n := 1; n <= 5; n++ {
		calls := 0
		_, outcome := Retry(context.Background(), RetryPolicy{MaxTries: n, Delay: time.Hour}, "m",
			func(context.Context) (int, error) {
				calls++
				return 0, rpcErr("m", "Assert Exception:args.size() == 1")
			},
		)

		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, outcome.Attempts)
		assert.Equal(t, entity.FailureRPCError, outcome.Kind)
		assert.True(t, outcome.Responded())
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, outcome := Retry(context.Background(), RetryPolicy{MaxTries: 3, Delay: time.Millisecond}, "m",
		func(context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", probeErr(entity.FailureTimeout, "m")
			}
			return "ok", nil
		},
	)

	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, entity.FailureNone, outcome.Kind)
	assert.NoError(t, outcome.Err)
	assert.Equal(t, 2, outcome.Retries())
}

func TestRetryElapsedExcludesDelay(t *testing.T) {
	_, outcome := Retry(context.Background(), RetryPolicy{MaxTries: 2, Delay: 200 * time.Millisecond}, "m",
		func(context.Context) (int, error) {
			return 0, probeErr(entity.FailureTransport, "m")
		},
	)
	assert.Less(t, outcome.Elapsed, 100*time.Millisecond)
}

func TestRetryStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan entity.ProbeOutcome)

	go func() {
		_, outcome := Retry(ctx, RetryPolicy{MaxTries: 10, Delay: time.Hour}, "m",
			func(context.Context) (int, error) {
				calls++
				return 0, probeErr(entity.FailureConnectionRefused, "m")
			},
		)
		done <- outcome
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case outcome := <-done:
		assert.Equal(t, 1, calls)
		assert.Equal(t, 1, outcome.Attempts)
		assert.Equal(t, entity.FailureConnectionRefused, outcome.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	require.NoError(t, RetryPolicy{MaxTries: 1}.Validate())
	assert.ErrorIs(t, RetryPolicy{MaxTries: 0}.Validate(), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, RetryPolicy{MaxTries: 1, Delay: -time.Second}.Validate(), apperrors.ErrInvalidInput)

	calls := 0
	_, outcome := Retry(context.Background(), RetryPolicy{MaxTries: 0}, "m",
		func(context.Context) (int, error) {
			calls++
			return 1, nil
		},
	)
	assert.Zero(t, calls)
	assert.ErrorIs(t, outcome.Err, apperrors.ErrInvalidInput)
}
