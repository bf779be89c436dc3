package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rohmanhakim/krishield/internal/gemini"
	"github.com/rohmanhakim/krishield/internal/llmtext"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

type PriceQuery struct {
	Crop          string
	CurrentPrice  float64
	LastWeekPrice float64
}

// Change returns the absolute and percent change from last week.
func (q PriceQuery) Change() (float64, float64) {
	diff := q.CurrentPrice - q.LastWeekPrice
	return diff, diff / q.LastWeekPrice * 100
}

type PriceAdvice struct {
	Trend          string `json:"trend"`
	Recommendation string `json:"recommendation"`
	Confidence     string `json:"confidence"`
	Reasoning      string `json:"reasoning"`
	Action         string `json:"action"`
}

var priceAdviceSchema = &gemini.Schema{
	Type: "object",
	Properties: map[string]*gemini.Schema{
		"trend":          {Type: "string", Enum: []string{"rising", "falling", "stable"}},
		"recommendation": {Type: "string", Enum: []string{"SELL NOW", "WAIT"}},
		"confidence":     {Type: "string", Enum: []string{"high", "medium", "low"}},
		"reasoning":      {Type: "string"},
		"action":         {Type: "string"},
	},
	Required: []string{"trend", "recommendation", "confidence", "reasoning", "action"},
}

// PriceAdvisor asks for a sell-or-wait call on a single price movement.
// Answers are not cached.
type PriceAdvisor struct {
	generator Generator
}

func NewPriceAdvisor(generator Generator) *PriceAdvisor {
	return &PriceAdvisor{generator: generator}
}

func (a *PriceAdvisor) Analyze(ctx context.Context, q PriceQuery) (llmtext.Decoded[PriceAdvice], failure.ClassifiedError) {
	if strings.TrimSpace(q.Crop) == "" {
		return llmtext.Decoded[PriceAdvice]{}, invalidInput("crop", "is required")
	}
	if q.LastWeekPrice <= 0 {
		return llmtext.Decoded[PriceAdvice]{}, invalidInput("last_week_price", "must be greater than zero")
	}
	if q.CurrentPrice < 0 {
		return llmtext.Decoded[PriceAdvice]{}, invalidInput("current_price", "must not be negative")
	}

	text, err := a.generator.GenerateJSON(ctx, pricePrompt(q), priceAdviceSchema)
	if err != nil {
		return llmtext.Decoded[PriceAdvice]{}, err
	}
	return llmtext.DecodeJSON[PriceAdvice](text, func(p PriceAdvice) bool {
		return p.Recommendation != ""
	}), nil
}

func pricePrompt(q PriceQuery) string {
	diff, percent := q.Change()
	return fmt.Sprintf(
		"You are a market analysis expert for Indian farmers.\n\n"+
			"Crop: %s\n"+
			"Last week price: ₹%.2f/quintal\n"+
			"Current price: ₹%.2f/quintal\n"+
			"Change: ₹%.2f (%.1f%%)\n\n"+
			"Analyze the price trend and respond in this EXACT JSON format:\n"+
			`{"trend": "rising|falling|stable", "recommendation": "SELL NOW|WAIT", "confidence": "high|medium|low", `+
			`"reasoning": "one or two sentences", "action": "what the farmer should do next"}`+"\n\n"+
			"Consider the trend direction, the magnitude of the change, seasonal patterns and market demand.\n"+
			"Respond ONLY with valid JSON.",
		q.Crop, q.LastWeekPrice, q.CurrentPrice, diff, percent,
	)
}
