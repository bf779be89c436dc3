package advisor

import (
	"context"
	"time"

	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/gemini"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

// Generator is the part of the Gemini client the advisors use.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, failure.ClassifiedError)
	GenerateJSON(ctx context.Context, prompt string, schema *gemini.Schema) (string, failure.ClassifiedError)
	AnalyzeImage(ctx context.Context, image []byte, mimeType, question string) (string, failure.ClassifiedError)
}

// Fetcher is the freshness-gated cache every repository adapts.
type Fetcher interface {
	Fetch(ctx context.Context, req freshness.Request, remote freshness.RemoteCall) (freshness.Result, failure.ClassifiedError)
}

// Policy is the per-category cache policy a repository hands to the fetcher.
type Policy struct {
	TTL       time.Duration
	Validator freshness.Validator
}

func (p Policy) request(key string, force bool) freshness.Request {
	return freshness.Request{
		Key:          key,
		TTL:          p.TTL,
		ForceRefresh: force,
		Validator:    p.Validator,
	}
}

// textCall adapts a Gemini text call to a fetcher remote call.
func textCall(gen Generator, prompt string) freshness.RemoteCall {
	return func(ctx context.Context) (string, error) {
		text, err := gen.GenerateText(ctx, prompt)
		if err != nil {
			return "", err
		}
		return text, nil
	}
}
