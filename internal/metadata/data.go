package metadata

import "time"

type RemoteCallEvent struct {
	endpoint   string
	httpStatus int
	duration   time.Duration
	attempts   int
}

/*
	ErrorCause is a closed, canonical classification used exclusively for
	observability (logging and reporting).

	Rules:
	 - ErrorCause MUST NOT influence control flow.
	 - ErrorCause MUST NOT be used for retry, fallback, or abort decisions.
	 - Packages MAY map their local errors to ErrorCause,
	   but MUST NOT invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown MUST be used.
*/
type ErrorCause int

/*
Canonical ErrorCause Table

# CauseUnknown

	Unexpected internal errors, unclassified third-party failures.

# CauseNetworkFailure

	Transport or remote availability: timeouts, DNS, connection resets, 5xx.

# CauseQuotaExceeded

	The remote refused because of throttling or quota (HTTP 429, quota text).

# CauseContentInvalid

	The remote answered but the payload is a disguised error
	(rate-limit, safety or internal-error text in a 200 response).

# CauseParseFailure

	Payload could not be decoded into the expected structure.

# CauseStorageFailure

	Cache store reads or writes failed.

# CauseInvalidConfiguration

	Missing credentials or unusable settings.
*/
const (
	CauseUnknown ErrorCause = iota
	CauseNetworkFailure
	CauseQuotaExceeded
	CauseContentInvalid
	CauseParseFailure
	CauseStorageFailure
	CauseInvalidConfiguration
)

func (c ErrorCause) String() string {
	switch c {
	case CauseNetworkFailure:
		return "network_failure"
	case CauseQuotaExceeded:
		return "quota_exceeded"
	case CauseContentInvalid:
		return "content_invalid"
	case CauseParseFailure:
		return "parse_failure"
	case CauseStorageFailure:
		return "storage_failure"
	case CauseInvalidConfiguration:
		return "invalid_configuration"
	default:
		return "unknown"
	}
}

// CacheOutcome names what the fetcher did with a single request.
type CacheOutcome string

const (
	OutcomeHit           CacheOutcome = "hit"
	OutcomeMiss          CacheOutcome = "miss"
	OutcomeExpired       CacheOutcome = "expired"
	OutcomeBypass        CacheOutcome = "bypass"
	OutcomeRefreshed     CacheOutcome = "refreshed"
	OutcomeRejected      CacheOutcome = "rejected"
	OutcomeStaleFallback CacheOutcome = "stale_fallback"
	OutcomeUnavailable   CacheOutcome = "unavailable"
)

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrKey        AttributeKey = "key"
	AttrEndpoint   AttributeKey = "endpoint"
	AttrURL        AttributeKey = "url"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrBackend    AttributeKey = "backend"
	AttrModel      AttributeKey = "model"
	AttrField      AttributeKey = "field"
)
