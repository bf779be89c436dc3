package advisor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/llmtext"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

const DefaultSeason = "General"

type MarketQuery struct {
	City   string
	State  string
	Season string
	// Crop narrows the query to one crop. Empty means the top crops of the region.
	Crop string
}

func (q MarketQuery) season() string {
	if strings.TrimSpace(q.Season) == "" {
		return DefaultSeason
	}
	return q.Season
}

func (q MarketQuery) key() string {
	fields := []string{q.City, q.State, q.season()}
	if strings.TrimSpace(q.Crop) != "" {
		fields = append(fields, q.Crop)
	}
	return Key("market", fields...)
}

func (q MarketQuery) prompt() string {
	if crop := strings.TrimSpace(q.Crop); crop != "" {
		return fmt.Sprintf(
			"Act as an agriculture market expert. Return the current market price of %s in %s, %s. "+
				"Return ONLY a JSON array with one object: "+
				`[{"crop": "%s", "price": "2200", "unit": "₹/quintal", "trend": "Up", "recommendation": "short selling advice"}]`,
			crop, q.City, q.State, crop,
		)
	}
	return fmt.Sprintf(
		"Act as an agricultural market expert. Estimate current market prices in %s, %s for %s crops based on recent trends.\n"+
			"Provide:\n"+
			"1. Top 5 crops with estimated mandi price (₹/quintal)\n"+
			"2. Brief 30-day trend (rising/falling/stable)\n"+
			"3. Short selling recommendation\n\n"+
			"Format as:\n"+
			"CROPS:\n• Crop name: ₹price/quintal (trend)\n\n"+
			"RECOMMENDATION:\n• Point 1\n• Point 2\n• Point 3",
		q.City, q.State, q.season(),
	)
}

type MarketRepository struct {
	fetcher   Fetcher
	generator Generator
	policy    Policy
}

func NewMarketRepository(fetcher Fetcher, generator Generator, policy Policy) *MarketRepository {
	return &MarketRepository{fetcher: fetcher, generator: generator, policy: policy}
}

// Prices returns the market board for a region, served from cache while fresh.
func (r *MarketRepository) Prices(ctx context.Context, q MarketQuery, force bool) (freshness.Result, failure.ClassifiedError) {
	if strings.TrimSpace(q.City) == "" {
		return freshness.Result{}, invalidInput("city", "is required")
	}
	if strings.TrimSpace(q.State) == "" {
		return freshness.Result{}, invalidInput("state", "is required")
	}
	return r.fetcher.Fetch(ctx, r.policy.request(q.key(), force), textCall(r.generator, q.prompt()))
}

type CropPrice struct {
	Crop           string `json:"crop"`
	Price          string `json:"price"`
	Unit           string `json:"unit,omitempty"`
	Trend          string `json:"trend,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
}

type MarketBoard struct {
	Crops           []CropPrice `json:"crops"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// "Wheat: ₹2,275/quintal (rising)"
var cropLine = regexp.MustCompile(`^([^:]+):\s*(.+?)(?:\s*\(([^()]+)\))?$`)

// ParseMarketBoard decodes a market payload. A JSON array of crops is tried
// first, then the CROPS:/RECOMMENDATION: bullet layout. Anything else is kept
// as raw text.
func ParseMarketBoard(payload string) llmtext.Decoded[MarketBoard] {
	crops := llmtext.DecodeJSON[[]CropPrice](payload, func(c []CropPrice) bool { return len(c) > 0 })
	if list, ok := crops.Value(); ok {
		board := MarketBoard{Crops: list}
		for _, c := range list {
			if c.Recommendation != "" {
				board.Recommendations = append(board.Recommendations, c.Recommendation)
			}
		}
		return llmtext.Structured(board, payload)
	}

	board := parseBulletBoard(payload)
	if len(board.Crops) == 0 {
		return llmtext.RawText[MarketBoard](payload)
	}
	return llmtext.Structured(board, payload)
}

func parseBulletBoard(payload string) MarketBoard {
	var board MarketBoard
	section := "crops"
	for _, line := range strings.Split(payload, "\n") {
		trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "*#"))
		switch {
		case strings.HasPrefix(strings.ToUpper(trimmed), "CROPS"):
			section = "crops"
			continue
		case strings.HasPrefix(strings.ToUpper(trimmed), "RECOMMENDATION"):
			section = "recommendations"
			continue
		}

		items := llmtext.BulletLines(line)
		if len(items) == 0 {
			continue
		}
		item := items[0]
		if section == "recommendations" {
			board.Recommendations = append(board.Recommendations, item)
			continue
		}
		m := cropLine.FindStringSubmatch(item)
		if m == nil {
			continue
		}
		board.Crops = append(board.Crops, CropPrice{
			Crop:  strings.TrimSpace(m[1]),
			Price: strings.TrimSpace(m[2]),
			Trend: strings.TrimSpace(m[3]),
		})
	}
	return board
}

// FormatMarketBoard renders a decoded board one crop per line. Raw payloads
// are returned as they are.
func FormatMarketBoard(d llmtext.Decoded[MarketBoard]) string {
	board, ok := d.Value()
	if !ok {
		return d.Raw()
	}
	var sb strings.Builder
	for _, c := range board.Crops {
		sb.WriteString("• ")
		sb.WriteString(c.Crop)
		sb.WriteString(": ")
		sb.WriteString(c.Price)
		if c.Unit != "" {
			sb.WriteString(" ")
			sb.WriteString(c.Unit)
		}
		if c.Trend != "" {
			sb.WriteString(" (")
			sb.WriteString(c.Trend)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}
	for _, rec := range board.Recommendations {
		sb.WriteString("💡 Advice: ")
		sb.WriteString(rec)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
