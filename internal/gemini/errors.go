package gemini

import (
	"fmt"

	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

type GeminiErrorCause string

const (
	ErrCauseMissingAPIKey  GeminiErrorCause = "missing api key"
	ErrCauseInvalidRequest GeminiErrorCause = "invalid request"
	ErrCauseNetwork        GeminiErrorCause = "network failure"
	ErrCauseQuotaExceeded  GeminiErrorCause = "quota exceeded"
	ErrCauseServerError    GeminiErrorCause = "server error"
	ErrCauseRejected       GeminiErrorCause = "request rejected"
	ErrCauseBlocked        GeminiErrorCause = "blocked by safety filter"
	ErrCauseEmptyResponse  GeminiErrorCause = "empty response"
	ErrCauseDecode         GeminiErrorCause = "malformed response"
)

type GeminiError struct {
	Message    string
	Retryable  bool
	Cause      GeminiErrorCause
	StatusCode int
}

func (e *GeminiError) Error() string {
	return fmt.Sprintf("gemini error: %s: %s", e.Cause, e.Message)
}

func (e *GeminiError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *GeminiError) IsRetryable() bool {
	return e.Retryable
}

// Detail is the upstream message without the package prefix.
func (e *GeminiError) Detail() string {
	return e.Message
}

// mapGeminiErrorToMetadataCause maps client errors to the canonical
// metadata.ErrorCause table. Observational only.
func mapGeminiErrorToMetadataCause(err *GeminiError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNetwork, ErrCauseServerError:
		return metadata.CauseNetworkFailure
	case ErrCauseQuotaExceeded:
		return metadata.CauseQuotaExceeded
	case ErrCauseBlocked, ErrCauseEmptyResponse:
		return metadata.CauseContentInvalid
	case ErrCauseDecode:
		return metadata.CauseParseFailure
	case ErrCauseMissingAPIKey, ErrCauseRejected, ErrCauseInvalidRequest:
		return metadata.CauseInvalidConfiguration
	default:
		return metadata.CauseUnknown
	}
}
