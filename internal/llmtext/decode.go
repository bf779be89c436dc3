package llmtext

import (
	"encoding/json"
	"strings"
)

// StripCodeFence returns the body of the first Markdown code fence in text,
// or the trimmed text when there is none. The fence info string (```json) is dropped.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}

	body := trimmed[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = strings.TrimPrefix(body, "json")
	}

	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

type Kind int

const (
	KindRawText Kind = iota
	KindStructured
)

func (k Kind) String() string {
	if k == KindStructured {
		return "structured"
	}
	return "raw_text"
}

// Decoded is either a structured value or the raw model text it could not be
// decoded from. Raw is always set.
type Decoded[T any] struct {
	kind  Kind
	value T
	raw   string
}

func Structured[T any](value T, raw string) Decoded[T] {
	return Decoded[T]{kind: KindStructured, value: value, raw: raw}
}

func RawText[T any](raw string) Decoded[T] {
	return Decoded[T]{kind: KindRawText, raw: raw}
}

func (d Decoded[T]) Kind() Kind {
	return d.kind
}

func (d Decoded[T]) IsStructured() bool {
	return d.kind == KindStructured
}

// Value returns the structured value and true, or the zero value and false.
func (d Decoded[T]) Value() (T, bool) {
	return d.value, d.kind == KindStructured
}

func (d Decoded[T]) Raw() string {
	return d.raw
}

func (d Decoded[T]) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind  string `json:"kind"`
		Value *T     `json:"value,omitempty"`
		Raw   string `json:"raw"`
	}{
		Kind: d.kind.String(),
		Raw:  d.raw,
	}
	if d.kind == KindStructured {
		out.Value = &d.value
	}
	return json.Marshal(out)
}

// DecodeJSON strips any code fence and unmarshals into T. Malformed JSON, or a
// value rejected by one of the accept checks, yields RawText instead of an error.
func DecodeJSON[T any](text string, accept ...func(T) bool) Decoded[T] {
	var value T
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &value); err != nil {
		return RawText[T](text)
	}
	for _, ok := range accept {
		if !ok(value) {
			return RawText[T](text)
		}
	}
	return Structured(value, text)
}

// BulletLines returns the lines of text that start with a bullet marker
// (•, -, *), with the marker removed.
func BulletLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, marker := range []string{"•", "-", "*"} {
			if strings.HasPrefix(line, marker) && !strings.HasPrefix(line, "**") {
				item := strings.TrimSpace(strings.TrimPrefix(line, marker))
				if item != "" {
					out = append(out, item)
				}
				break
			}
		}
	}
	return out
}
