package server_test

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

	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/internal/config"
	"github.com/rohmanhakim/krishield/internal/server"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	forecastBody = `{"latitude":28.6,"longitude":77.2,"timezone":"Asia/Kolkata","current_weather":{"temperature":31.4,"weathercode":0,"windspeed":9.7,"time":"2026-03-14T09:00"},"daily":{"time":["2026-03-14"],"temperature_2m_max":[33.1],"temperature_2m_min":[19.8],"weathercode":[0]}}`
	geocodeBody  = `{"results":[{"name":"Ludhiana","admin1":"Punjab","country":"India","latitude":30.9,"longitude":75.85}]}`
)

// fakeUpstream stands in for both Gemini and Open-Meteo.
type fakeUpstream struct {
	reply      atomic.Value
	status     atomic.Int32
	geminiHits atomic.Int32
}

func (u *fakeUpstream) setReply(text string) {
	u.reply.Store(text)
}

func newTestServer(t *testing.T) (*server.Server, *fakeUpstream) {
	u := &fakeUpstream{}
	u.setReply("• Sow wheat after the first week of November")
	u.status.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/forecast", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, forecastBody)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.URL.Query().Get("name"), "atlantis") {
			io.WriteString(w, `{}`)
			return
		}
		io.WriteString(w, geocodeBody)
	})
	mux.HandleFunc("/v1beta/models/", func(w http.ResponseWriter, r *http.Request) {
		u.geminiHits.Add(1)
		if status := int(u.status.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			io.WriteString(w, `{"error":{"message":"Resource has been exhausted (e.g. check quota)."}}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": u.reply.Load().(string)}}},
			}},
		})
	})
	upstream := httptest.NewServer(mux)
	t.Cleanup(upstream.Close)

	cfg, err := config.WithDefault().
		WithGeminiAPIKey("test-key").
		WithGeminiBaseURL(upstream.URL).
		WithForecastBaseURL(upstream.URL).
		WithGeocodingBaseURL(upstream.URL).
		WithCacheBackend(cache.BackendMemory).
		WithLLMMinInterval(0).
		WithJitter(0).
		WithMaxAttempt(1).
		Build()
	require.NoError(t, err)

	clock := timeutil.NewManualClock(time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC))
	a, err := app.New(context.Background(), cfg, zerolog.Nop(), app.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return server.New(a, zerolog.Nop()), u
}

func do(t *testing.T, s *server.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}
