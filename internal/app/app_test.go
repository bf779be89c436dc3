package app_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rohmanhakim/krishield/internal/advisor"
	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/internal/config"
	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

const (
	forecastBody = `{"latitude":28.6,"longitude":77.2,"timezone":"Asia/Kolkata","current_weather":{"temperature":31.4,"weathercode":2,"windspeed":9.7,"time":"2026-03-14T09:00"},"daily":{"time":["2026-03-14"],"temperature_2m_max":[33.1],"temperature_2m_min":[19.8],"weathercode":[2]}}`
	geocodeBody  = `{"results":[{"name":"Delhi","admin1":"Delhi","country":"India","latitude":28.65,"longitude":77.23}]}`
	marketText   = "CROPS:\n• Wheat: ₹2,275/quintal (rising)\n\nRECOMMENDATION:\n• Hold wheat"
	schemesText  = `[{"title":"PM-KISAN","description":"Income support","benefits":"₹6,000","eligibility":"All landholders","url":"https://pmkisan.gov.in","iconEmoji":"💰"}]`
)

type upstream struct {
	server      *httptest.Server
	geminiCalls atomic.Int32
	prompts     chan string
	failGemini  atomic.Bool
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{prompts: make(chan string, 16)}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, forecastBody)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, geocodeBody)
	})
	mux.HandleFunc("/v1beta/models/", func(w http.ResponseWriter, r *http.Request) {
		u.geminiCalls.Add(1)
		if u.failGemini.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			io.WriteString(w, `{"error":{"message":"backend overloaded"}}`)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		body := string(raw)
		select {
		case u.prompts <- body:
		default:
		}
		text := marketText
		switch {
		case strings.Contains(body, "government schemes"):
			text = schemesText
		case strings.Contains(body, "agronomist"):
			text = "Wait. Rain is not expected but soil is still moist."
		}
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

func newApp(t *testing.T, u *upstream) (*app.App, *timeutil.ManualClock) {
	cfg, err := config.WithDefault().
		WithGeminiAPIKey("test-key").
		WithGeminiBaseURL(u.server.URL).
		WithForecastBaseURL(u.server.URL).
		WithGeocodingBaseURL(u.server.URL).
		WithCacheBackend(cache.BackendMemory).
		WithLLMMinInterval(0).
		WithJitter(0).
		WithMaxAttempt(1).
		Build()
	require.NoError(t, err)

	clock := timeutil.NewManualClock(t0)
	a, err := app.New(context.Background(), cfg, zerolog.Nop(), app.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, clock
}

func TestDashboard_LoadsAllPanels(t *testing.T) {
	u := newUpstream(t)
	a, _ := newApp(t, u)

	d, err := a.Dashboard(context.Background(), app.DashboardQuery{Place: "Delhi"}, false)

	require.NoError(t, err)
	assert.Equal(t, "Delhi", d.Place.Name)
	assert.Empty(t, d.Weather.Error)
	assert.InDelta(t, 31.4, d.Weather.Data.Current.Temperature, 0.001)
	assert.Empty(t, d.Market.Error)
	board, ok := d.Market.Data.Value()
	require.True(t, ok)
	assert.Equal(t, "Wheat", board.Crops[0].Crop)
	require.Len(t, d.Schemes.Data, 1)
	assert.Equal(t, string(freshness.SourceRemote), d.Schemes.Source)

	state, err := a.CacheState(context.Background(), "market_Delhi_Delhi_General", a.Config().MarketTTL())
	require.NoError(t, err)
	assert.Equal(t, freshness.StateFresh, state)
}

func TestDashboard_ServesStaleWhenGeminiDown(t *testing.T) {
	u := newUpstream(t)
	a, clock := newApp(t, u)
	lat, lon := 28.65, 77.23
	q := app.DashboardQuery{Latitude: &lat, Longitude: &lon, City: "Delhi", State: "Delhi"}

	_, err := a.Dashboard(context.Background(), q, false)
	require.NoError(t, err)

	u.failGemini.Store(true)
	clock.Advance(48 * time.Hour)
	d, err := a.Dashboard(context.Background(), q, false)

	require.NoError(t, err)
	assert.Empty(t, d.Market.Error)
	assert.Equal(t, string(freshness.SourceStale), d.Market.Source)
	assert.Equal(t, string(freshness.SourceStale), d.Schemes.Source)
	assert.Equal(t, string(freshness.SourceRemote), d.Weather.Source)
}

func TestDashboard_PanelErrorsDoNotFailTheCall(t *testing.T) {
	u := newUpstream(t)
	u.failGemini.Store(true)
	a, _ := newApp(t, u)
	lat, lon := 28.65, 77.23

	d, err := a.Dashboard(context.Background(), app.DashboardQuery{Latitude: &lat, Longitude: &lon, City: "Delhi", State: "Delhi"}, false)

	require.NoError(t, err)
	assert.NotEmpty(t, d.Market.Error)
	assert.NotEmpty(t, d.Schemes.Error)
	assert.Empty(t, d.Weather.Error)
}

func TestIrrigationAdvice_UsesCurrentWeather(t *testing.T) {
	u := newUpstream(t)
	a, _ := newApp(t, u)
	lat, lon := 28.65, 77.23

	res, err := a.IrrigationAdvice(context.Background(), advisor.IrrigationQuery{Crop: "Wheat", Soil: "Loamy", LastWatered: "yesterday"}, &lat, &lon, false)

	require.NoError(t, err)
	assert.Contains(t, res.Payload, "Wait.")
	prompt := <-u.prompts
	assert.Contains(t, prompt, "Partly cloudy, 31.4°C")
}

func TestSavedAPIKeyOverridesConfigured(t *testing.T) {
	u := newUpstream(t)
	backend := cache.NewMemoryStore()
	cfg, err := config.WithDefault().
		WithGeminiBaseURL(u.server.URL).
		WithCacheBackend(cache.BackendMemory).
		WithLLMMinInterval(0).
		WithMaxAttempt(1).
		Build()
	require.NoError(t, err)

	first, err := app.New(context.Background(), cfg, zerolog.Nop(), app.WithBackend(backend))
	require.NoError(t, err)
	assert.False(t, first.Gemini.HasAPIKey())
	require.NoError(t, first.Settings.SaveAPIKey(context.Background(), "AIzaSaved"))

	second, err := app.New(context.Background(), cfg, zerolog.Nop(), app.WithBackend(backend))
	require.NoError(t, err)
	assert.True(t, second.Gemini.HasAPIKey())
}
