package freshness

import "strings"

// Validator classifies a payload as usable data (true) or a disguised
// upstream error (false).
type Validator func(payload string) bool

// DefaultIndicators are lowercase substrings that mark a payload as an error
// message returned with a success status.
var DefaultIndicators = []string{
	"rate limit",
	"quota exceeded",
	"internal error",
	"safety",
}

// NewKeywordValidator rejects empty or whitespace-only payloads and payloads
// whose lowercase form contains any of the indicators. With no indicators,
// DefaultIndicators are used.
func NewKeywordValidator(indicators ...string) Validator {
	if len(indicators) == 0 {
		indicators = DefaultIndicators
	}
	lowered := make([]string, 0, len(indicators))
	for _, ind := range indicators {
		ind = strings.ToLower(strings.TrimSpace(ind))
		if ind != "" {
			lowered = append(lowered, ind)
		}
	}

	return func(payload string) bool {
		if strings.TrimSpace(payload) == "" {
			return false
		}
		lower := strings.ToLower(payload)
		for _, ind := range lowered {
			if strings.Contains(lower, ind) {
				return false
			}
		}
		return true
	}
}

// All is valid only when every validator accepts the payload.
// Nil validators are skipped.
func All(validators ...Validator) Validator {
	return func(payload string) bool {
		for _, v := range validators {
			if v != nil && !v(payload) {
				return false
			}
		}
		return true
	}
}
