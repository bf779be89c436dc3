package retry

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rohmanhakim/krishield/pkg/failure"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
)

// Retry executes fn up to MaxAttempts times, sleeping with exponential backoff
// and jitter between attempts. Only errors reporting IsRetryable() == true are
// retried; anything else is returned immediately.
// The wait between attempts is abandoned when ctx is done.
func Retry[T any](
	ctx context.Context,
	retryParam RetryParam,
	fn func(ctx context.Context) (T, failure.ClassifiedError),
) Result[T] {
	if retryParam.MaxAttempts < 1 {
		return Result[T]{
			err: &RetryError{
				Message: "max attempt cannot be 0",
				Cause:   ErrZeroAttempt,
			},
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	var lastErr failure.ClassifiedError
	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return Result[T]{value: value, attempts: attempt}
		}
		lastErr = err

		if !failure.IsRetryable(err) {
			return Result[T]{err: err, attempts: attempt}
		}

		if attempt == retryParam.MaxAttempts {
			break
		}

		delay := timeutil.ExponentialBackoffDelay(attempt, retryParam.Jitter, rng, retryParam.BackoffParam)
		if sleepErr := timeutil.Sleep(ctx, delay); sleepErr != nil {
			return Result[T]{
				err: &RetryError{
					Message: fmt.Sprintf("stopped after %d attempts: %v", attempt, sleepErr),
					Cause:    ErrCanceled,
					Attempts: attempt,
					Last:     lastErr,
				},
				attempts: attempt,
			}
		}
	}

	return Result[T]{
		err: &RetryError{
			Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
			Cause:     ErrExhaustedAttempts,
			Retryable: true,
			Attempts:  retryParam.MaxAttempts,
			Last:      lastErr,
		},
		attempts: retryParam.MaxAttempts,
	}
}
