package advisor

import (
	"errors"
	"fmt"

	"github.com/rohmanhakim/krishield/pkg/failure"
)

type AdvisorErrorCause string

const (
	ErrCauseInvalidInput     AdvisorErrorCause = "invalid input"
	ErrCauseMalformedPayload AdvisorErrorCause = "malformed payload"
)

type AdvisorError struct {
	Message   string
	Retryable bool
	Cause     AdvisorErrorCause
	Field     string
}

func (e *AdvisorError) Error() string {
	return fmt.Sprintf("advisor error: %s: %s: %s", e.Cause, e.Field, e.Message)
}

func (e *AdvisorError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *AdvisorError) IsRetryable() bool {
	return e.Retryable
}

func (e *AdvisorError) Detail() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

func invalidInput(field, message string) *AdvisorError {
	return &AdvisorError{Message: message, Cause: ErrCauseInvalidInput, Field: field}
}

func malformedPayload(field string, err error) *AdvisorError {
	return &AdvisorError{Message: err.Error(), Cause: ErrCauseMalformedPayload, Field: field}
}

var errEmptySchemes = errors.New("no schemes in payload")
