package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rohmanhakim/krishield/internal/cache"
)

type Config struct {
	//===============
	// Gemini
	//===============
	// API key sent in the x-goog-api-key header. A key saved through settings overrides it.
	geminiAPIKey  string
	geminiBaseURL string
	geminiModel   string
	// Minimum time between two Gemini calls
	llmMinInterval time.Duration

	//===============
	// Open-Meteo
	//===============
	forecastBaseURL  string
	geocodingBaseURL string
	timezone         string
	// Comma separated daily metrics requested with every forecast
	dailyMetrics string

	//===============
	// Freshness
	//===============
	marketTTL     time.Duration
	schemesTTL    time.Duration
	irrigationTTL time.Duration
	weatherTTL    time.Duration
	// Lowercase substrings that mark a payload as a disguised error
	errorIndicators []string

	//===============
	// Remote calls
	//===============
	// Maximum time of a single remote request
	timeout   time.Duration
	userAgent string
	// Randomized variation added on top of backoff delays
	jitter     time.Duration
	randomSeed int64
	// maximum attempt during retry
	maxAttempt             int
	backoffInitialDuration time.Duration
	backoffMultiplier      float64
	backoffMaxDuration     time.Duration

	//===============
	// Cache backend
	//===============
	cacheBackend cache.BackendKind
	// Maximum number of entries for the in-memory backend. 0 means unbounded.
	cacheCapacity int
	cacheDir      string
	redisAddr     string
	redisPassword string
	redisDB       int
	keyPrefix     string
	s3            cache.S3Options
	postgresDSN   string

	//===============
	// Server and logging
	//===============
	listenAddr string
	logLevel   string
	logJSON    bool
}

type s3DTO struct {
	Bucket    string `json:"bucket,omitempty"`
	Prefix    string `json:"prefix,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
}

type configDTO struct {
	GeminiAPIKey           string        `json:"geminiApiKey,omitempty"`
	GeminiBaseURL          string        `json:"geminiBaseUrl,omitempty"`
	GeminiModel            string        `json:"geminiModel,omitempty"`
	LLMMinInterval         time.Duration `json:"llmMinInterval,omitempty"`
	ForecastBaseURL        string        `json:"forecastBaseUrl,omitempty"`
	GeocodingBaseURL       string        `json:"geocodingBaseUrl,omitempty"`
	Timezone               string        `json:"timezone,omitempty"`
	DailyMetrics           string        `json:"dailyMetrics,omitempty"`
	MarketTTL              time.Duration `json:"marketTtl,omitempty"`
	SchemesTTL             time.Duration `json:"schemesTtl,omitempty"`
	IrrigationTTL          time.Duration `json:"irrigationTtl,omitempty"`
	WeatherTTL             time.Duration `json:"weatherTtl,omitempty"`
	ErrorIndicators        []string      `json:"errorIndicators,omitempty"`
	Timeout                time.Duration `json:"timeout,omitempty"`
	UserAgent              string        `json:"userAgent,omitempty"`
	Jitter                 time.Duration `json:"jitter,omitempty"`
	RandomSeed             int64         `json:"randomSeed,omitempty"`
	MaxAttempt             int           `json:"maxAttempt,omitempty"`
	BackoffInitialDuration time.Duration `json:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64       `json:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     time.Duration `json:"backoffMaxDuration,omitempty"`
	CacheBackend           string        `json:"cacheBackend,omitempty"`
	CacheCapacity          int           `json:"cacheCapacity,omitempty"`
	CacheDir               string        `json:"cacheDir,omitempty"`
	RedisAddr              string        `json:"redisAddr,omitempty"`
	RedisPassword          string        `json:"redisPassword,omitempty"`
	RedisDB                int           `json:"redisDb,omitempty"`
	KeyPrefix              string        `json:"keyPrefix,omitempty"`
	S3                     s3DTO         `json:"s3,omitempty"`
	PostgresDSN            string        `json:"postgresDsn,omitempty"`
	ListenAddr             string        `json:"listenAddr,omitempty"`
	LogLevel               string        `json:"logLevel,omitempty"`
	LogJSON                bool          `json:"logJson,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := WithDefault()

	// only override what the file sets
	setString(&cfg.geminiAPIKey, dto.GeminiAPIKey)
	setString(&cfg.geminiBaseURL, dto.GeminiBaseURL)
	setString(&cfg.geminiModel, dto.GeminiModel)
	setDuration(&cfg.llmMinInterval, dto.LLMMinInterval)
	setString(&cfg.forecastBaseURL, dto.ForecastBaseURL)
	setString(&cfg.geocodingBaseURL, dto.GeocodingBaseURL)
	setString(&cfg.timezone, dto.Timezone)
	setString(&cfg.dailyMetrics, dto.DailyMetrics)
	setDuration(&cfg.marketTTL, dto.MarketTTL)
	setDuration(&cfg.schemesTTL, dto.SchemesTTL)
	setDuration(&cfg.irrigationTTL, dto.IrrigationTTL)
	setDuration(&cfg.weatherTTL, dto.WeatherTTL)
	if len(dto.ErrorIndicators) > 0 {
		cfg.errorIndicators = dto.ErrorIndicators
	}
	setDuration(&cfg.timeout, dto.Timeout)
	setString(&cfg.userAgent, dto.UserAgent)
	setDuration(&cfg.jitter, dto.Jitter)
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	setDuration(&cfg.backoffInitialDuration, dto.BackoffInitialDuration)
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	setDuration(&cfg.backoffMaxDuration, dto.BackoffMaxDuration)
	if dto.CacheBackend != "" {
		cfg.cacheBackend = cache.BackendKind(dto.CacheBackend)
	}
	if dto.CacheCapacity != 0 {
		cfg.cacheCapacity = dto.CacheCapacity
	}
	setString(&cfg.cacheDir, dto.CacheDir)
	setString(&cfg.redisAddr, dto.RedisAddr)
	setString(&cfg.redisPassword, dto.RedisPassword)
	if dto.RedisDB != 0 {
		cfg.redisDB = dto.RedisDB
	}
	setString(&cfg.keyPrefix, dto.KeyPrefix)
	setString(&cfg.s3.Bucket, dto.S3.Bucket)
	setString(&cfg.s3.Prefix, dto.S3.Prefix)
	setString(&cfg.s3.Region, dto.S3.Region)
	setString(&cfg.s3.Endpoint, dto.S3.Endpoint)
	setString(&cfg.s3.AccessKey, dto.S3.AccessKey)
	setString(&cfg.s3.SecretKey, dto.S3.SecretKey)
	setString(&cfg.postgresDSN, dto.PostgresDSN)
	setString(&cfg.listenAddr, dto.ListenAddr)
	setString(&cfg.logLevel, dto.LogLevel)
	// bool zero value is false, so the DTO value is used as-is
	cfg.logJSON = dto.LogJSON

	return cfg.Build()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// WithConfigFile reads a JSON config file on top of the defaults.
func WithConfigFile(path string) (*Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}

	configContent, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	cfgDTO := configDTO{}
	err = json.Unmarshal(configContent, &cfgDTO)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	cfg, err := newConfigFromDTO(cfgDTO)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WithDefault creates a new Config with default values for all fields.
func WithDefault() *Config {
	defaultConfig := Config{
		geminiBaseURL:          "https://generativelanguage.googleapis.com",
		geminiModel:            "gemini-2.0-flash",
		llmMinInterval:         time.Second,
		forecastBaseURL:        "https://api.open-meteo.com",
		geocodingBaseURL:       "https://geocoding-api.open-meteo.com",
		timezone:               "Asia/Kolkata",
		dailyMetrics:           "temperature_2m_max,temperature_2m_min,weathercode",
		marketTTL:              24 * time.Hour,
		schemesTTL:             24 * time.Hour,
		irrigationTTL:          6 * time.Hour,
		weatherTTL:             time.Hour,
		errorIndicators:        []string{"rate limit", "quota exceeded", "internal error", "safety"},
		timeout:                30 * time.Second,
		userAgent:              "krishield/1.0",
		jitter:                 250 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		maxAttempt:             3,
		backoffInitialDuration: 500 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     10 * time.Second,
		cacheBackend:           cache.BackendFile,
		cacheDir:               defaultCacheDir(),
		keyPrefix:              "krishield",
		s3: cache.S3Options{
			Prefix: "krishield",
			Region: "us-east-1",
		},
		listenAddr: ":8080",
		logLevel:   "info",
	}
	return &defaultConfig
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".krishield"
	}
	return filepath.Join(dir, "krishield")
}

// WithEnv overlays KRISHIELD_* environment variables. The given dotenv files,
// or ".env" when none are given, are loaded first; missing files are ignored
// and variables already set in the environment win.
func (c *Config) WithEnv(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
		}
	}

	if v, ok := lookup("KRISHIELD_GEMINI_API_KEY"); ok {
		c.geminiAPIKey = v
	} else if v, ok := lookup("GEMINI_API_KEY"); ok {
		c.geminiAPIKey = v
	}
	if v, ok := lookup("KRISHIELD_CACHE_BACKEND"); ok {
		c.cacheBackend = cache.BackendKind(v)
	}
	if v, ok := lookup("KRISHIELD_CACHE_DIR"); ok {
		c.cacheDir = v
	}
	if v, ok := lookup("KRISHIELD_CACHE_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: KRISHIELD_CACHE_CAPACITY: %s", ErrInvalidConfig, err.Error())
		}
		c.cacheCapacity = n
	}
	if v, ok := lookup("KRISHIELD_REDIS_ADDR"); ok {
		c.redisAddr = v
	}
	if v, ok := lookup("KRISHIELD_REDIS_PASSWORD"); ok {
		c.redisPassword = v
	}
	if v, ok := lookup("KRISHIELD_POSTGRES_DSN"); ok {
		c.postgresDSN = v
	}
	if v, ok := lookup("KRISHIELD_S3_BUCKET"); ok {
		c.s3.Bucket = v
	}
	if v, ok := lookup("KRISHIELD_S3_ENDPOINT"); ok {
		c.s3.Endpoint = v
	}
	if v, ok := lookup("KRISHIELD_S3_ACCESS_KEY"); ok {
		c.s3.AccessKey = v
	}
	if v, ok := lookup("KRISHIELD_S3_SECRET_KEY"); ok {
		c.s3.SecretKey = v
	}
	if v, ok := lookup("KRISHIELD_LISTEN_ADDR"); ok {
		c.listenAddr = v
	}
	if v, ok := lookup("KRISHIELD_LOG_LEVEL"); ok {
		c.logLevel = v
	}
	return c, nil
}

// lookup ignores variables that are set but blank.
func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (c *Config) WithGeminiAPIKey(key string) *Config {
	c.geminiAPIKey = strings.TrimSpace(key)
	return c
}

func (c *Config) WithGeminiBaseURL(u string) *Config {
	c.geminiBaseURL = u
	return c
}

func (c *Config) WithGeminiModel(model string) *Config {
	c.geminiModel = model
	return c
}

func (c *Config) WithLLMMinInterval(d time.Duration) *Config {
	c.llmMinInterval = d
	return c
}

func (c *Config) WithForecastBaseURL(u string) *Config {
	c.forecastBaseURL = u
	return c
}

func (c *Config) WithGeocodingBaseURL(u string) *Config {
	c.geocodingBaseURL = u
	return c
}

func (c *Config) WithMarketTTL(ttl time.Duration) *Config {
	c.marketTTL = ttl
	return c
}

func (c *Config) WithSchemesTTL(ttl time.Duration) *Config {
	c.schemesTTL = ttl
	return c
}

func (c *Config) WithIrrigationTTL(ttl time.Duration) *Config {
	c.irrigationTTL = ttl
	return c
}

func (c *Config) WithWeatherTTL(ttl time.Duration) *Config {
	c.weatherTTL = ttl
	return c
}

func (c *Config) WithErrorIndicators(indicators []string) *Config {
	c.errorIndicators = indicators
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoff(initial time.Duration, multiplier float64, max time.Duration) *Config {
	c.backoffInitialDuration = initial
	c.backoffMultiplier = multiplier
	c.backoffMaxDuration = max
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithCacheBackend(kind cache.BackendKind) *Config {
	c.cacheBackend = kind
	return c
}

func (c *Config) WithCacheCapacity(capacity int) *Config {
	c.cacheCapacity = capacity
	return c
}

func (c *Config) WithCacheDir(dir string) *Config {
	c.cacheDir = dir
	return c
}

func (c *Config) WithRedis(addr, password string, db int) *Config {
	c.redisAddr = addr
	c.redisPassword = password
	c.redisDB = db
	return c
}

func (c *Config) WithS3(opts cache.S3Options) *Config {
	c.s3 = opts
	return c
}

func (c *Config) WithPostgresDSN(dsn string) *Config {
	c.postgresDSN = dsn
	return c
}

func (c *Config) WithListenAddr(addr string) *Config {
	c.listenAddr = addr
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) WithLogJSON(enabled bool) *Config {
	c.logJSON = enabled
	return c
}

func (c *Config) Build() (Config, error) {
	ttls := map[string]time.Duration{
		"marketTtl":     c.marketTTL,
		"schemesTtl":    c.schemesTTL,
		"irrigationTtl": c.irrigationTTL,
		"weatherTtl":    c.weatherTTL,
	}
	for name, ttl := range ttls {
		if ttl <= 0 {
			return Config{}, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	if c.maxAttempt < 1 {
		return Config{}, fmt.Errorf("%w: maxAttempt must be at least 1", ErrInvalidConfig)
	}
	if c.timeout <= 0 {
		return Config{}, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.cacheCapacity < 0 {
		return Config{}, fmt.Errorf("%w: cacheCapacity cannot be negative", ErrInvalidConfig)
	}
	if !c.cacheBackend.Valid() {
		return Config{}, fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.cacheBackend)
	}

	switch c.cacheBackend {
	case cache.BackendFile:
		if c.cacheDir == "" {
			return Config{}, fmt.Errorf("%w: cacheDir is required for the file backend", ErrInvalidConfig)
		}
	case cache.BackendRedis:
		if c.redisAddr == "" {
			return Config{}, fmt.Errorf("%w: redisAddr is required for the redis backend", ErrInvalidConfig)
		}
	case cache.BackendS3:
		if c.s3.Bucket == "" || c.s3.Endpoint == "" {
			return Config{}, fmt.Errorf("%w: s3 bucket and endpoint are required for the s3 backend", ErrInvalidConfig)
		}
		if c.s3.AccessKey == "" || c.s3.SecretKey == "" {
			return Config{}, fmt.Errorf("%w: s3 credentials are required for the s3 backend", ErrInvalidConfig)
		}
	case cache.BackendPostgres:
		if c.postgresDSN == "" {
			return Config{}, fmt.Errorf("%w: postgresDsn is required for the postgres backend", ErrInvalidConfig)
		}
	}
	return *c, nil
}

func (c Config) GeminiAPIKey() string {
	return c.geminiAPIKey
}

func (c Config) GeminiBaseURL() string {
	return c.geminiBaseURL
}

func (c Config) GeminiModel() string {
	return c.geminiModel
}

func (c Config) LLMMinInterval() time.Duration {
	return c.llmMinInterval
}

func (c Config) ForecastBaseURL() string {
	return c.forecastBaseURL
}

func (c Config) GeocodingBaseURL() string {
	return c.geocodingBaseURL
}

func (c Config) Timezone() string {
	return c.timezone
}

func (c Config) DailyMetrics() string {
	return c.dailyMetrics
}

func (c Config) MarketTTL() time.Duration {
	return c.marketTTL
}

func (c Config) SchemesTTL() time.Duration {
	return c.schemesTTL
}

func (c Config) IrrigationTTL() time.Duration {
	return c.irrigationTTL
}

func (c Config) WeatherTTL() time.Duration {
	return c.weatherTTL
}

func (c Config) ErrorIndicators() []string {
	indicators := make([]string, len(c.errorIndicators))
	copy(indicators, c.errorIndicators)
	return indicators
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

// CacheOptions returns what cache.Open needs for the configured backend.
func (c Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:       c.cacheBackend,
		Capacity:      c.cacheCapacity,
		Dir:           c.cacheDir,
		RedisAddr:     c.redisAddr,
		RedisPassword: c.redisPassword,
		RedisDB:       c.redisDB,
		KeyPrefix:     c.keyPrefix,
		S3:            c.s3,
		PostgresDSN:   c.postgresDSN,
	}
}

func (c Config) CacheBackend() cache.BackendKind {
	return c.cacheBackend
}

func (c Config) ListenAddr() string {
	return c.listenAddr
}

func (c Config) LogLevel() string {
	return c.logLevel
}

func (c Config) LogJSON() bool {
	return c.logJSON
}
