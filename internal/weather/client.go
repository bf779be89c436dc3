package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/pkg/failure"
	"github.com/rohmanhakim/krishield/pkg/limiter"
	"github.com/rohmanhakim/krishield/pkg/retry"
)

const (
	Endpoint     = "open-meteo"
	maxBodyBytes = 1 << 20
)

type Options struct {
	ForecastBaseURL  string
	GeocodingBaseURL string
	Timezone         string
	// comma separated daily metric names
	DailyMetrics string
	UserAgent    string
}

// Client queries the Open-Meteo forecast and geocoding APIs. No key is needed.
type Client struct {
	httpClient   *http.Client
	rateLimiter  limiter.RateLimiter
	retryParam   retry.RetryParam
	metadataSink metadata.MetadataSink
	opts         Options
}

func NewClient(
	httpClient *http.Client,
	rateLimiter limiter.RateLimiter,
	retryParam retry.RetryParam,
	metadataSink metadata.MetadataSink,
	opts Options,
) *Client {
	opts.ForecastBaseURL = strings.TrimRight(opts.ForecastBaseURL, "/")
	opts.GeocodingBaseURL = strings.TrimRight(opts.GeocodingBaseURL, "/")
	return &Client{
		httpClient:   httpClient,
		rateLimiter:  rateLimiter,
		retryParam:   retryParam,
		metadataSink: metadataSink,
		opts:         opts,
	}
}

// ForecastJSON returns the raw forecast body, suitable for caching.
func (c *Client) ForecastJSON(ctx context.Context, latitude, longitude float64) (string, failure.ClassifiedError) {
	query := url.Values{}
	query.Set("latitude", strconv.FormatFloat(latitude, 'f', -1, 64))
	query.Set("longitude", strconv.FormatFloat(longitude, 'f', -1, 64))
	query.Set("current_weather", "true")
	query.Set("daily", c.opts.DailyMetrics)
	query.Set("timezone", c.opts.Timezone)

	body, err := c.get(ctx, "Client.Forecast", c.opts.ForecastBaseURL+"/v1/forecast?"+query.Encode())
	if err != nil {
		return "", err
	}
	if _, decodeErr := ParseForecast(string(body)); decodeErr != nil {
		return "", &WeatherError{Message: decodeErr.Error(), Cause: ErrCauseDecode}
	}
	return string(body), nil
}

func (c *Client) Forecast(ctx context.Context, latitude, longitude float64) (Forecast, failure.ClassifiedError) {
	payload, err := c.ForecastJSON(ctx, latitude, longitude)
	if err != nil {
		return Forecast{}, err
	}
	forecast, decodeErr := ParseForecast(payload)
	if decodeErr != nil {
		return Forecast{}, &WeatherError{Message: decodeErr.Error(), Cause: ErrCauseDecode}
	}
	return forecast, nil
}

// Geocode resolves a place name to coordinates using the best match.
func (c *Client) Geocode(ctx context.Context, name string) (Place, failure.ClassifiedError) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Place{}, &WeatherError{Message: "place name is empty", Cause: ErrCauseBadRequest}
	}

	query := url.Values{}
	query.Set("name", name)
	query.Set("count", "1")
	query.Set("language", "en")
	query.Set("format", "json")

	body, err := c.get(ctx, "Client.Geocode", c.opts.GeocodingBaseURL+"/v1/search?"+query.Encode())
	if err != nil {
		return Place{}, err
	}

	var resp geocodingResponse
	if decodeErr := json.Unmarshal(body, &resp); decodeErr != nil {
		return Place{}, &WeatherError{Message: decodeErr.Error(), Cause: ErrCauseDecode}
	}
	if len(resp.Results) == 0 {
		return Place{}, &WeatherError{Message: fmt.Sprintf("no match for %q", name), Cause: ErrCausePlaceNotFound}
	}
	return resp.Results[0], nil
}

func (c *Client) get(ctx context.Context, callerMethod, rawURL string) ([]byte, failure.ClassifiedError) {
	startTime := time.Now()
	lastStatus := 0

	result := retry.Retry(ctx, c.retryParam, func(ctx context.Context) ([]byte, failure.ClassifiedError) {
		if err := c.rateLimiter.Wait(ctx, Endpoint); err != nil {
			return nil, &WeatherError{Message: err.Error(), Cause: ErrCauseNetwork}
		}
		body, status, err := c.performGet(ctx, rawURL)
		lastStatus = status
		if err != nil {
			if err.Cause == ErrCauseTooManyCalls {
				c.rateLimiter.Backoff(Endpoint)
			}
			return nil, err
		}
		c.rateLimiter.ResetBackoff(Endpoint)
		return body, nil
	})

	c.metadataSink.RecordRemoteCall(Endpoint, lastStatus, time.Since(startTime), result.Attempts())

	if result.IsFailure() {
		c.recordError(callerMethod, rawURL, result.Err())
		return nil, result.Err()
	}
	return result.Value(), nil
}

func (c *Client) performGet(ctx context.Context, rawURL string) ([]byte, int, *WeatherError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, &WeatherError{Message: fmt.Sprintf("failed to create request: %v", err), Cause: ErrCauseBadRequest}
	}
	req.Header.Set("Accept", "application/json")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &WeatherError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: ctx.Err() == nil,
			Cause:     ErrCauseNetwork,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, &WeatherError{Message: fmt.Sprintf("failed to read body: %v", err), Retryable: true, Cause: ErrCauseNetwork}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resp.StatusCode, &WeatherError{Message: reason(body, resp.Status), Retryable: true, Cause: ErrCauseTooManyCalls, StatusCode: resp.StatusCode}
	case resp.StatusCode >= 500:
		return nil, resp.StatusCode, &WeatherError{Message: reason(body, resp.Status), Retryable: true, Cause: ErrCauseServerError, StatusCode: resp.StatusCode}
	default:
		return nil, resp.StatusCode, &WeatherError{Message: reason(body, resp.Status), Cause: ErrCauseBadRequest, StatusCode: resp.StatusCode}
	}
}

// reason extracts Open-Meteo's {"error":true,"reason":"..."} message.
func reason(body []byte, status string) string {
	var e struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Reason != "" {
		return e.Reason
	}
	return status
}

func (c *Client) recordError(callerMethod, rawURL string, err failure.ClassifiedError) {
	cause := metadata.CauseUnknown
	var weatherErr *WeatherError
	if errors.As(err, &weatherErr) {
		cause = mapWeatherErrorToMetadataCause(weatherErr)
	}
	c.metadataSink.RecordError(
		time.Now(),
		"weather",
		callerMethod,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, rawURL),
		},
	)
}
