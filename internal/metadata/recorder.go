package metadata

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

/*
Metadata Collected
- Remote call endpoints, status codes, durations and attempts
- Cache outcomes per key with the age of the entry involved
- Classified errors

Metadata is write-only.
No component may read metadata to influence cache or retry decisions.
*/

type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordRemoteCall(
		endpoint string,
		httpStatus int,
		duration time.Duration,
		attempts int,
	)

	RecordCacheOutcome(key string, outcome CacheOutcome, age time.Duration)
}

// Recorder writes metadata events as structured zerolog entries.
type Recorder struct {
	logger zerolog.Logger
}

func NewRecorder(logger zerolog.Logger) *Recorder {
	return &Recorder{logger: logger}
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
	ev := r.logger.Error().
		Time("observed_at", observedAt).
		Str("package", packageName).
		Str("action", action).
		Str("cause", cause.String())
	for _, attr := range attrs {
		ev = ev.Str(string(attr.Key), attr.Value)
	}
	ev.Msg(details)
}

func (r *Recorder) RecordRemoteCall(endpoint string, httpStatus int, duration time.Duration, attempts int) {
	event := RemoteCallEvent{
		endpoint:   endpoint,
		httpStatus: httpStatus,
		duration:   duration,
		attempts:   attempts,
	}
	r.logger.Debug().
		Str("endpoint", event.endpoint).
		Int("http_status", event.httpStatus).
		Dur("duration", event.duration).
		Int("attempts", event.attempts).
		Msg("remote call")
}

func (r *Recorder) RecordCacheOutcome(key string, outcome CacheOutcome, age time.Duration) {
	level := zerolog.DebugLevel
	switch outcome {
	case OutcomeRejected, OutcomeStaleFallback:
		level = zerolog.WarnLevel
	case OutcomeUnavailable:
		level = zerolog.ErrorLevel
	}
	ev := r.logger.WithLevel(level).
		Str("key", key).
		Str("outcome", string(outcome))
	if age > 0 {
		ev = ev.Dur("age", age)
	}
	ev.Msg("cache")
}

// NewLogger builds the process logger. json=false gives a console writer for terminals.
func NewLogger(level string, json bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if !json {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// NoopSink implements MetadataSink and discards everything.
// Callers (or tests) choose between Recorder and NoopSink.
type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	details string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordRemoteCall(endpoint string, httpStatus int, duration time.Duration, attempts int) {
}

func (n *NoopSink) RecordCacheOutcome(key string, outcome CacheOutcome, age time.Duration) {}
