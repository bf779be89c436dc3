package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/pkg/failure"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
)

// IrrigationIndicators extends the default indicators with "quota", which
// quota notices phrase without the word "exceeded".
var IrrigationIndicators = append(append([]string{}, freshness.DefaultIndicators...), "quota")

type IrrigationQuery struct {
	Crop        string
	Soil        string
	LastWatered string
	// Weather is a one-line summary of current conditions.
	Weather string
}

type IrrigationRepository struct {
	fetcher   Fetcher
	generator Generator
	policy    Policy
	clock     timeutil.Clock
}

func NewIrrigationRepository(fetcher Fetcher, generator Generator, policy Policy, clock timeutil.Clock) *IrrigationRepository {
	if policy.Validator == nil {
		policy.Validator = freshness.NewKeywordValidator(IrrigationIndicators...)
	}
	if clock == nil {
		clock = timeutil.SystemClock()
	}
	return &IrrigationRepository{fetcher: fetcher, generator: generator, policy: policy, clock: clock}
}

// Advice is cached per crop, soil, last watering and calendar day.
func (r *IrrigationRepository) Advice(ctx context.Context, q IrrigationQuery, force bool) (freshness.Result, failure.ClassifiedError) {
	if strings.TrimSpace(q.Crop) == "" {
		return freshness.Result{}, invalidInput("crop", "is required")
	}
	if strings.TrimSpace(q.Soil) == "" {
		return freshness.Result{}, invalidInput("soil", "is required")
	}
	key := Key("irrigation", q.Crop, q.Soil, q.LastWatered, r.clock.Now().Format("20060102"))
	return r.fetcher.Fetch(ctx, r.policy.request(key, force), textCall(r.generator, irrigationPrompt(q)))
}

func irrigationPrompt(q IrrigationQuery) string {
	weather := strings.TrimSpace(q.Weather)
	if weather == "" {
		weather = "unknown"
	}
	lastWatered := strings.TrimSpace(q.LastWatered)
	if lastWatered == "" {
		lastWatered = "unknown"
	}
	return fmt.Sprintf(
		"You are an expert agronomist.\n"+
			"User Input:\n"+
			"- Crop: %s\n"+
			"- Soil: %s\n"+
			"- Last Watered: %s\n"+
			"- Current Location Weather: %s\n\n"+
			"Task: Provide a recommendation (Water Today / Do Not Water / Wait) with a very short reason (2 lines max). "+
			"Keep it simple and direct for a farmer.",
		q.Crop, q.Soil, lastWatered, weather,
	)
}
