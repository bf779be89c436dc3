package cache

import (
	"fmt"

	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

type StoreErrorCause string

const (
	ErrCauseReadFailure   StoreErrorCause = "read failed"
	ErrCauseWriteFailure  StoreErrorCause = "write failed"
	ErrCauseCorruptEntry  StoreErrorCause = "corrupt entry"
	ErrCauseUnavailable   StoreErrorCause = "backend unavailable"
	ErrCauseInvalidOption StoreErrorCause = "invalid option"
)

type StoreError struct {
	Message   string
	Retryable bool
	Cause     StoreErrorCause
	Backend   string
	Err       error
}

func (e *StoreError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cache error: %s: %s", e.Backend, e.Cause)
	}
	return fmt.Sprintf("cache error: %s: %s: %s", e.Backend, e.Cause, e.Message)
}

func (e *StoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(backend string, cause StoreErrorCause, err error) *StoreError {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &StoreError{
		Message:   msg,
		Retryable: cause != ErrCauseCorruptEntry && cause != ErrCauseInvalidOption,
		Cause:     cause,
		Backend:   backend,
		Err:       err,
	}
}

// MapErrorToMetadataCause maps cache errors to the canonical
// metadata.ErrorCause table. Observational only.
func MapErrorToMetadataCause(err *StoreError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseReadFailure, ErrCauseWriteFailure, ErrCauseUnavailable:
		return metadata.CauseStorageFailure
	case ErrCauseCorruptEntry:
		return metadata.CauseParseFailure
	case ErrCauseInvalidOption:
		return metadata.CauseInvalidConfiguration
	default:
		return metadata.CauseUnknown
	}
}
