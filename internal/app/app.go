package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rohmanhakim/krishield/internal/advisor"
	"github.com/rohmanhakim/krishield/internal/build"
	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/internal/community"
	"github.com/rohmanhakim/krishield/internal/config"
	"github.com/rohmanhakim/krishield/internal/freshness"
	"github.com/rohmanhakim/krishield/internal/gemini"
	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/rohmanhakim/krishield/internal/settings"
	"github.com/rohmanhakim/krishield/internal/weather"
	"github.com/rohmanhakim/krishield/pkg/limiter"
	"github.com/rohmanhakim/krishield/pkg/retry"
	"github.com/rohmanhakim/krishield/pkg/timeutil"
	"github.com/rs/zerolog"
)

/*
App owns every long-lived dependency of a KriShield process: the cache
backend, the freshness fetcher, the remote clients and the repositories built
on top of them. The CLI and the HTTP server are both thin layers over it.
*/
type App struct {
	cfg     config.Config
	logger  zerolog.Logger
	sink    metadata.MetadataSink
	clock   timeutil.Clock
	backend cache.Backend

	Fetcher   *freshness.Fetcher
	Gemini    *gemini.Client
	Weather   *weather.Client
	Settings  *settings.Store
	Community *community.Service

	Market     *advisor.MarketRepository
	Schemes    *advisor.SchemesRepository
	Irrigation *advisor.IrrigationRepository
	Forecasts  *advisor.WeatherRepository
	Prices     *advisor.PriceAdvisor
	Assistant  *advisor.Assistant
}

type Option func(*options)

type options struct {
	clock      timeutil.Clock
	httpClient *http.Client
	backend    cache.Backend
}

func WithClock(clock timeutil.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithBackend replaces the configured cache backend. App.Close closes it.
func WithBackend(b cache.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

func New(ctx context.Context, cfg config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	o := options{clock: timeutil.SystemClock()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.Timeout()}
	}

	backend := o.backend
	if backend == nil {
		var err error
		backend, err = cache.Open(ctx, cfg.CacheOptions())
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}

	sink := metadata.NewRecorder(logger)
	a := &App{
		cfg:     cfg,
		logger:  logger,
		sink:    sink,
		clock:   o.clock,
		backend: backend,
	}

	a.Settings = settings.NewStore(cache.Namespace(backend, cache.NamespaceSettings), o.clock)
	a.Community = community.NewService(cache.Namespace(backend, cache.NamespaceCommunity), o.clock)

	apiKey, err := a.Settings.Resolve(ctx, cfg.GeminiAPIKey())
	if err != nil {
		logger.Warn().Err(err).Msg("saved api key unreadable, using configured key")
	}

	backoff := timeutil.NewBackoffParam(cfg.BackoffInitialDuration(), cfg.BackoffMultiplier(), cfg.BackoffMaxDuration())
	retryParam := retry.NewRetryParam(cfg.Jitter(), cfg.RandomSeed(), cfg.MaxAttempt(), backoff)

	llmLimiter := limiter.NewConcurrentRateLimiter(cfg.LLMMinInterval(), cfg.Jitter(), backoff)
	llmLimiter.SetRandomSeed(cfg.RandomSeed())
	weatherLimiter := limiter.NewConcurrentRateLimiter(0, 0, backoff)

	a.Gemini = gemini.NewClient(o.httpClient, llmLimiter, retryParam, sink, gemini.Options{
		BaseURL: cfg.GeminiBaseURL(),
		Model:   cfg.GeminiModel(),
		APIKey:  apiKey,
	})
	a.Weather = weather.NewClient(o.httpClient, weatherLimiter, retryParam, sink, weather.Options{
		ForecastBaseURL:  cfg.ForecastBaseURL(),
		GeocodingBaseURL: cfg.GeocodingBaseURL(),
		Timezone:         cfg.Timezone(),
		DailyMetrics:     cfg.DailyMetrics(),
		UserAgent:        build.UserAgent(),
	})

	a.Fetcher = freshness.NewFetcher(
		cache.Namespace(backend, cache.NamespaceFeeds),
		sink,
		freshness.WithClock(o.clock),
		freshness.WithDefaultValidator(freshness.NewKeywordValidator(cfg.ErrorIndicators()...)),
	)
	a.wireRepositories()
	return a, nil
}

func (a *App) wireRepositories() {
	indicators := freshness.NewKeywordValidator(a.cfg.ErrorIndicators()...)
	a.Market = advisor.NewMarketRepository(a.Fetcher, a.Gemini, advisor.Policy{TTL: a.cfg.MarketTTL(), Validator: indicators})
	a.Schemes = advisor.NewSchemesRepository(a.Fetcher, a.Gemini, advisor.Policy{TTL: a.cfg.SchemesTTL(), Validator: indicators})
	a.Irrigation = advisor.NewIrrigationRepository(a.Fetcher, a.Gemini, advisor.Policy{
		TTL:       a.cfg.IrrigationTTL(),
		Validator: freshness.NewKeywordValidator(append(a.cfg.ErrorIndicators(), "quota")...),
	}, a.clock)
	a.Forecasts = advisor.NewWeatherRepository(a.Fetcher, a.Weather, advisor.Policy{TTL: a.cfg.WeatherTTL()})
	a.Prices = advisor.NewPriceAdvisor(a.Gemini)
	a.Assistant = advisor.NewAssistant(a.Gemini)
}

// UseAPIKey switches every Gemini-backed repository to key.
func (a *App) UseAPIKey(key string) {
	a.Gemini = a.Gemini.WithAPIKey(key)
	a.wireRepositories()
}

func (a *App) Config() config.Config {
	return a.cfg
}

func (a *App) Logger() zerolog.Logger {
	return a.logger
}

func (a *App) Now() time.Time {
	return a.clock.Now()
}

// CacheState reports EMPTY, FRESH or STALE for a feed key under ttl.
func (a *App) CacheState(ctx context.Context, key string, ttl time.Duration) (freshness.State, error) {
	return a.Fetcher.State(ctx, key, ttl)
}

func (a *App) Close() error {
	return a.backend.Close()
}
