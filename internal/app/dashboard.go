package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/krishield/internal/advisor"
	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/llmtext"
	"github.com/rohmanhakim/krishield/internal/weather"
	"golang.org/x/sync/errgroup"
)

// Section is one panel of the dashboard. Error holds the user-facing message
// when the panel could not be filled; the other panels are still returned.
type Section[T any] struct {
	Data        T         `json:"data,omitempty"`
	Source      string    `json:"source,omitempty"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type Dashboard struct {
	Place   weather.Place                                 `json:"place"`
	Weather Section[weather.Forecast]                     `json:"weather"`
	Market  Section[llmtext.Decoded[advisor.MarketBoard]] `json:"market"`
	Schemes Section[[]advisor.Scheme]                     `json:"schemes"`
}

type DashboardQuery struct {
	// Place is resolved through geocoding when coordinates are not given.
	Place     string
	Latitude  *float64
	Longitude *float64
	City      string
	State     string
	Season    string
}

func sectionMeta[T any](s *Section[T], res freshness.Result) {
	s.Source = string(res.Source)
	s.LastUpdated = res.LastUpdated
}

// Dashboard loads weather, market prices and schemes concurrently.
// Only a failure to locate the place fails the whole call.
func (a *App) Dashboard(ctx context.Context, q DashboardQuery, force bool) (Dashboard, error) {
	place, err := a.Locate(ctx, q.Place, q.Latitude, q.Longitude)
	if err != nil {
		return Dashboard{}, err
	}
	if q.City == "" {
		q.City = place.Name
	}
	if q.State == "" {
		q.State = place.State
	}

	out := Dashboard{Place: place}
	var mu sync.Mutex
	g, grpCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		forecast, res, err := a.Forecasts.Forecast(grpCtx, place.Latitude, place.Longitude, force)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			out.Weather.Error = llmtext.UserMessage(err)
			return nil
		}
		out.Weather.Data = forecast
		sectionMeta(&out.Weather, res)
		return nil
	})
	g.Go(func() error {
		res, err := a.Market.Prices(grpCtx, advisor.MarketQuery{City: q.City, State: q.State, Season: q.Season}, force)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			out.Market.Error = llmtext.UserMessage(err)
			return nil
		}
		out.Market.Data = advisor.ParseMarketBoard(res.Payload)
		sectionMeta(&out.Market, res)
		return nil
	})
	g.Go(func() error {
		schemes, res, err := a.Schemes.Schemes(grpCtx, force)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			out.Schemes.Error = llmtext.UserMessage(err)
			return nil
		}
		out.Schemes.Data = schemes
		sectionMeta(&out.Schemes, res)
		return nil
	})

	// panels report their own errors
	_ = g.Wait()
	return out, nil
}

// Locate returns a place for explicit coordinates, or geocodes name.
func (a *App) Locate(ctx context.Context, name string, latitude, longitude *float64) (weather.Place, error) {
	if latitude != nil && longitude != nil {
		return weather.Place{Name: strings.TrimSpace(name), Latitude: *latitude, Longitude: *longitude}, nil
	}
	place, err := a.Weather.Geocode(ctx, name)
	if err != nil {
		return weather.Place{}, err
	}
	return place, nil
}

// IrrigationAdvice fills in current weather for the given coordinates before
// asking for advice. A weather failure leaves the weather unknown.
func (a *App) IrrigationAdvice(ctx context.Context, q advisor.IrrigationQuery, latitude, longitude *float64, force bool) (freshness.Result, error) {
	if q.Weather == "" && latitude != nil && longitude != nil {
		forecast, _, err := a.Forecasts.Forecast(ctx, *latitude, *longitude, false)
		if err != nil {
			a.logger.Warn().Err(err).Msg("irrigation advice without weather")
		} else {
			q.Weather = forecast.Current.Summary()
		}
	}
	res, err := a.Irrigation.Advice(ctx, q, force)
	if err != nil {
		return freshness.Result{}, err
	}
	return res, nil
}
