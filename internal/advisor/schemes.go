package advisor

import (
	"context"
	"encoding/json"

	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/gemini"
	"github.com/rohmanhakim/krishield/internal/llmtext"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

const schemesKey = "schemes"

const schemesPrompt = "List 10 specific government schemes for Indian farmers in JSON format. " +
	"Each item must have: title, description, benefits, eligibility, url (official website) and iconEmoji. " +
	"Include PM-KISAN, Pradhan Mantri Fasal Bima Yojana, Kisan Credit Card and Soil Health Card schemes. " +
	"Do not add any markdown formatting."

type Scheme struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Benefits    string `json:"benefits"`
	Eligibility string `json:"eligibility"`
	URL         string `json:"url"`
	IconEmoji   string `json:"iconEmoji"`
}

var schemeSchema = &gemini.Schema{
	Type: "array",
	Items: &gemini.Schema{
		Type: "object",
		Properties: map[string]*gemini.Schema{
			"title":       {Type: "string"},
			"description": {Type: "string"},
			"benefits":    {Type: "string"},
			"eligibility": {Type: "string"},
			"url":         {Type: "string"},
			"iconEmoji":   {Type: "string"},
		},
		Required: []string{"title", "description"},
	},
}

// ParseSchemes decodes a schemes payload. It fails on anything but a
// non-empty JSON array.
func ParseSchemes(payload string) ([]Scheme, error) {
	var schemes []Scheme
	if err := json.Unmarshal([]byte(llmtext.StripCodeFence(payload)), &schemes); err != nil {
		return nil, err
	}
	if len(schemes) == 0 {
		return nil, errEmptySchemes
	}
	return schemes, nil
}

func validSchemes(payload string) bool {
	_, err := ParseSchemes(payload)
	return err == nil
}

type SchemesRepository struct {
	fetcher   Fetcher
	generator Generator
	policy    Policy
}

// NewSchemesRepository caches only payloads that pass the policy validator
// and decode to at least one scheme.
func NewSchemesRepository(fetcher Fetcher, generator Generator, policy Policy) *SchemesRepository {
	base := policy.Validator
	if base == nil {
		base = freshness.NewKeywordValidator()
	}
	policy.Validator = freshness.All(base, validSchemes)
	return &SchemesRepository{fetcher: fetcher, generator: generator, policy: policy}
}

func (r *SchemesRepository) Schemes(ctx context.Context, force bool) ([]Scheme, freshness.Result, failure.ClassifiedError) {
	res, err := r.fetcher.Fetch(ctx, r.policy.request(schemesKey, force), r.remote)
	if err != nil {
		return nil, res, err
	}
	schemes, decodeErr := ParseSchemes(res.Payload)
	if decodeErr != nil {
		return nil, res, malformedPayload("schemes", decodeErr)
	}
	return schemes, res, nil
}

func (r *SchemesRepository) remote(ctx context.Context) (string, error) {
	text, err := r.generator.GenerateJSON(ctx, schemesPrompt, schemeSchema)
	if err != nil {
		return "", err
	}
	return llmtext.StripCodeFence(text), nil
}
