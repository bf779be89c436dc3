package retry

import (
	"fmt"

	"github.com/rohmanhakim/krishield/pkg/failure"
)

type RetryErrorCause string

const (
	ErrZeroAttempt       RetryErrorCause = "zero attempt"
	ErrExhaustedAttempts RetryErrorCause = "exhausted attempt"
	ErrCanceled          RetryErrorCause = "canceled"
)

// RetryError ends a retried call that did not succeed. Last is the error of
// the final attempt, if any attempt ran.
type RetryError struct {
	Message   string
	Retryable bool
	Cause     RetryErrorCause
	Attempts  int
	Last      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("retry error: %s after %d attempt(s): %s", e.Cause, e.Attempts, e.Message)
}

// Severity follows the final attempt when there was one.
func (e *RetryError) Severity() failure.Severity {
	if last, ok := e.Last.(failure.ClassifiedError); ok && last.Severity() == failure.SeverityFatal {
		return failure.SeverityFatal
	}
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RetryError) IsRetryable() bool {
	return e.Retryable
}

// Detail is the farmer-facing reason when the last error carries none.
func (e *RetryError) Detail() string {
	switch e.Cause {
	case ErrCanceled:
		return "request was canceled"
	case ErrZeroAttempt:
		return "retries are misconfigured"
	}
	return fmt.Sprintf("service did not respond after %d attempts", e.Attempts)
}

func (e *RetryError) Unwrap() error {
	return e.Last
}
