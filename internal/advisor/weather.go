package advisor

import (
	"context"
	"strconv"

	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/weather"
	"github.com/rohmanhakim/krishield/pkg/failure"
)

// ForecastSource is the part of the Open-Meteo client the weather repository uses.
type ForecastSource interface {
	ForecastJSON(ctx context.Context, latitude, longitude float64) (string, failure.ClassifiedError)
}

type WeatherRepository struct {
	fetcher Fetcher
	source  ForecastSource
	policy  Policy
}

// NewWeatherRepository caches only forecast payloads that decode.
func NewWeatherRepository(fetcher Fetcher, source ForecastSource, policy Policy) *WeatherRepository {
	policy.Validator = freshness.All(policy.Validator, validForecast)
	return &WeatherRepository{fetcher: fetcher, source: source, policy: policy}
}

func validForecast(payload string) bool {
	_, err := weather.ParseForecast(payload)
	return err == nil
}

// WeatherKey rounds coordinates to two decimals, roughly a kilometre.
func WeatherKey(latitude, longitude float64) string {
	return Key("weather",
		strconv.FormatFloat(latitude, 'f', 2, 64),
		strconv.FormatFloat(longitude, 'f', 2, 64),
	)
}

func (r *WeatherRepository) Forecast(ctx context.Context, latitude, longitude float64, force bool) (weather.Forecast, freshness.Result, failure.ClassifiedError) {
	if latitude < -90 || latitude > 90 {
		return weather.Forecast{}, freshness.Result{}, invalidInput("latitude", "must be within [-90, 90]")
	}
	if longitude < -180 || longitude > 180 {
		return weather.Forecast{}, freshness.Result{}, invalidInput("longitude", "must be within [-180, 180]")
	}

	remote := func(ctx context.Context) (string, error) {
		body, err := r.source.ForecastJSON(ctx, latitude, longitude)
		if err != nil {
			return "", err
		}
		return body, nil
	}
	res, err := r.fetcher.Fetch(ctx, r.policy.request(WeatherKey(latitude, longitude), force), remote)
	if err != nil {
		return weather.Forecast{}, res, err
	}
	forecast, decodeErr := weather.ParseForecast(res.Payload)
	if decodeErr != nil {
		return weather.Forecast{}, res, malformedPayload("forecast", decodeErr)
	}
	return forecast, res, nil
}
