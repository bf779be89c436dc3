package llmtext

import (
	"errors"
	"strings"
)

const quotaMessage = "Quota Exceeded. Try later."

// UserMessage turns an error into a short line for the farmer: a fixed quota
// message when the error mentions quota, otherwise "Error: <detail>".
// The detail is taken from the innermost error in the chain that exposes one.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if strings.Contains(strings.ToLower(err.Error()), "quota") {
		return quotaMessage
	}
	return "Error: " + detail(err)
}

func detail(err error) string {
	type detailer interface {
		Detail() string
	}

	text := err.Error()
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if d, ok := cur.(detailer); ok && d.Detail() != "" {
			text = d.Detail()
		}
	}
	return text
}
