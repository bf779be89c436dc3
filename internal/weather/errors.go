package weather

import (
	"fmt"

	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

type WeatherErrorCause string

const (
	ErrCauseNetwork       WeatherErrorCause = "network failure"
	ErrCauseServerError   WeatherErrorCause = "server error"
	ErrCauseTooManyCalls  WeatherErrorCause = "too many requests"
	ErrCauseBadRequest    WeatherErrorCause = "bad request"
	ErrCauseDecode        WeatherErrorCause = "malformed response"
	ErrCausePlaceNotFound WeatherErrorCause = "place not found"
)

type WeatherError struct {
	Message    string
	Retryable  bool
	Cause      WeatherErrorCause
	StatusCode int
}

func (e *WeatherError) Error() string {
	return fmt.Sprintf("weather error: %s: %s", e.Cause, e.Message)
}

func (e *WeatherError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *WeatherError) IsRetryable() bool {
	return e.Retryable
}

func (e *WeatherError) Detail() string {
	return e.Message
}

func mapWeatherErrorToMetadataCause(err *WeatherError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNetwork, ErrCauseServerError:
		return metadata.CauseNetworkFailure
	case ErrCauseTooManyCalls:
		return metadata.CauseQuotaExceeded
	case ErrCauseDecode:
		return metadata.CauseParseFailure
	case ErrCauseBadRequest, ErrCausePlaceNotFound:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
