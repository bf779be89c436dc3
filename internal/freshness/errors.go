package freshness

import (
	"fmt"

	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

type FetchErrorCause string

const (
	// the remote answered, but with a disguised error; Message carries the payload
	ErrCauseInvalidPayload FetchErrorCause = "invalid payload"
	// the remote call failed and no usable entry was cached
	ErrCauseRemoteFailure FetchErrorCause = "remote failure"

	ErrCauseInvalidRequest FetchErrorCause = "invalid request"
)

type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch error: %s: %s", e.Cause, e.Message)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// Detail is the human-facing part of the error: the rejected payload or the
// remote error text.
func (e *FetchError) Detail() string {
	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// mapFetchErrorToMetadataCause maps fetch errors to the canonical
// metadata.ErrorCause table. Observational only.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseInvalidPayload:
		return metadata.CauseContentInvalid
	case ErrCauseRemoteFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseInvalidRequest:
		return metadata.CauseInvalidConfiguration
	default:
		return metadata.CauseUnknown
	}
}
