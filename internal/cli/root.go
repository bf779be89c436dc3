package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rohmanhakim/krishield/internal/advisor"
	"github.com/rohmanhakim/krishield/internal/app"
	"github.com/rohmanhakim/krishield/internal/cache"
	"github.com/rohmanhakim/krishield/internal/config"
	"github.com/rohmanhakim/krishield/internal/metadata"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	apiKey       string
	cacheBackend string
	cacheDir     string
	logLevel     string
	logJSON      bool
	refreshFlag  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "krishield",
	Short: "Farming assistant backed by Gemini and Open-Meteo.",
	Long: `krishield answers farming questions for Indian conditions: mandi prices,
government schemes, irrigation advice, weather, crop disease diagnosis and
price trend analysis.

Answers are cached per request. Within their freshness window they are served
from the cache; when the upstream service fails, the last good answer is
served instead, however old.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/krishield.json)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key for this run (overrides config and saved key)")
	rootCmd.PersistentFlags().StringVar(&cacheBackend, "cache-backend", "", "cache backend: memory, lru, file, redis, s3 or postgres")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "directory for the file cache backend")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON instead of console text")

	rootCmd.AddCommand(
		marketCmd,
		schemesCmd,
		irrigationCmd,
		weatherCmd,
		chatCmd,
		priceCmd,
		diagnoseCmd,
		communityCmd,
		settingsCmd,
		dashboardCmd,
		serveCmd,
		versionCmd,
	)
}

// InitConfigWithError layers the config file (or defaults), the environment
// and the command line flags, in that order.
func InitConfigWithError() (config.Config, error) {
	configBuilder := config.WithDefault()
	if cfgFile != "" {
		fromFile, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("error initializing config from file: %w", err)
		}
		configBuilder = fromFile
	}

	configBuilder, err := configBuilder.WithEnv()
	if err != nil {
		return config.Config{}, err
	}

	if apiKey != "" {
		configBuilder = configBuilder.WithGeminiAPIKey(apiKey)
	}
	if cacheBackend != "" {
		configBuilder = configBuilder.WithCacheBackend(cache.BackendKind(cacheBackend))
	}
	if cacheDir != "" {
		configBuilder = configBuilder.WithCacheDir(cacheDir)
	}
	if logLevel != "" {
		configBuilder = configBuilder.WithLogLevel(logLevel)
	}
	if logJSON {
		configBuilder = configBuilder.WithLogJSON(logJSON)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newApp builds the application for one command run. The caller closes it.
func newApp(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	cfg, err := InitConfigWithError()
	if err != nil {
		return nil, err
	}
	logger := metadata.NewLogger(cfg.LogLevel(), cfg.LogJSON(), cmd.ErrOrStderr())
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	// an explicit --api-key wins over a saved one
	if apiKey != "" {
		a.UseAPIKey(apiKey)
	}
	return a, nil
}

// withApp runs fn with a fresh App and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func ResetFlags() {
	cfgFile = ""
	apiKey = ""
	cacheBackend = ""
	cacheDir = ""
	logLevel = ""
	logJSON = false
	refreshFlag = false
	listenAddr = ""

	marketCity, marketState, marketSeason, marketCrop = "", "", advisor.DefaultSeason, ""
	irrigationCrop, irrigationSoil, irrigationLastWatered = "", "", ""
	placeName, latitude, longitude = "", 0, 0
	priceCrop, priceCurrent, priceLastWeek = "", 0, 0
	imagePath, diagnoseQuestion = "", ""
	communityName, communityDescription = "", ""
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetAPIKeyForTest(key string) {
	apiKey = key
}

func SetCacheBackendForTest(backend string) {
	cacheBackend = backend
}

func SetCacheDirForTest(dir string) {
	cacheDir = dir
}

func SetLogLevelForTest(level string) {
	logLevel = level
}

// RootCommand exposes the command tree so tests can run it with SetArgs.
func RootCommand() *cobra.Command {
	return rootCmd
}
