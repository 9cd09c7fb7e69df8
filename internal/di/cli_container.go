package di

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/adapters/cli"
	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/factory"
	"github.com/mikey/food-safety-agent/internal/logging"
)

// CLIFlags contains all command line flags for the inspector
type CLIFlags struct {
	// Sensor readings
	PH          float64
	GasLevel    int
	StorageTime int
	Temperature optionalFloat

	// Provider overrides
	Providers       string
	QualityProvider string
	RoboflowAPIKey  string
	WorkflowURL     string
	GeminiAPIKey    string
	OpenAIAPIKey    string

	// Input flags
	ConfigFile string
	InputFile  string
	Verbose    bool
	JSONLog    bool
	NoCache    bool
}

// optionalFloat is a float flag that remembers whether it was set
type optionalFloat struct {
	value float64
	set   bool
}

func (o *optionalFloat) String() string {
	if !o.set {
		return ""
	}
	return strconv.FormatFloat(o.value, 'f', -1, 64)
}

func (o *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	o.value, o.set = v, true
	return nil
}

// Signal returns the sensor readings given on the command line
func (f *CLIFlags) Signal() core.SignalProcessingData {
	s := core.SignalProcessingData{PH: f.PH, GasLevel: f.GasLevel, StorageTime: f.StorageTime}
	if f.Temperature.set {
		t := f.Temperature.value
		s.Temperature = &t
	}
	return s
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags(fs *flag.FlagSet, args []string) (*CLIFlags, error) {
	flags := &CLIFlags{}

	// Sensor flags
	fs.Float64Var(&flags.PH, "ph", 7.0, "pH reading (0-14)")
	fs.IntVar(&flags.GasLevel, "gas", 0, "Gas level in ppm (0-500)")
	fs.IntVar(&flags.StorageTime, "hours", 0, "Storage time in hours (0-168)")
	fs.Var(&flags.Temperature, "temp", "Storage temperature in °C (-20-30), optional")

	// Provider flags
	fs.StringVar(&flags.Providers, "providers", "", "Comma-separated detection providers in order (roboflow, huggingface, openai)")
	fs.StringVar(&flags.QualityProvider, "quality", "", "Quality analyzer (gemini, openai, bedrock, none)")
	fs.StringVar(&flags.RoboflowAPIKey, "roboflow-api-key", "", "API key for Roboflow")
	fs.StringVar(&flags.WorkflowURL, "workflow-url", "", "Roboflow workflow URL")
	fs.StringVar(&flags.GeminiAPIKey, "gemini-api-key", "", "API key for Google Gemini")
	fs.StringVar(&flags.OpenAIAPIKey, "openai-api-key", "", "API key for OpenAI")

	// Input flags
	fs.StringVar(&flags.ConfigFile, "config", "", "Configuration file (defaults and environment only if not specified)")
	fs.StringVar(&flags.InputFile, "file", "", "Input image file (use stdin if not specified)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging and print the step log")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.BoolVar(&flags.NoCache, "no-cache", false, "Skip the analysis cache")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.InputFile == "" && fs.NArg() > 0 {
		flags.InputFile = fs.Arg(0)
	}
	return flags, nil
}

// BuildCLIContainer creates and configures a dependency injection container for the inspector
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration: defaults and environment, an optional file, then flags
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := createConfigFromFlags(flags)
		if err != nil {
			return nil, err
		}
		if flags.ConfigFile != "" {
			logger.Info("Loaded configuration from file", zap.String("file", flags.ConfigFile))
		}
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register cache repository; an in-memory cache is useless for one run
	if err := container.Provide(func(f *factory.CacheFactory, cfg *config.Config) (core.CacheRepository, error) {
		if cfg.GetCache().Type == "memory" {
			return nil, nil
		}
		return f.CreateCacheRepository(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register alert notifier; the CLI never mails
	if err := container.Provide(func() core.AlertNotifier { return nil }); err != nil {
		return nil, err
	}

	// Register inspector
	if err := container.Provide(func(service *core.AssessmentService, logger *zap.Logger, flags *CLIFlags) *cli.Inspector {
		return cli.NewInspector(service, logger, os.Stdout, flags.Verbose)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags builds the inspector configuration without searching the
// server's config paths
func createConfigFromFlags(flags *CLIFlags) (*config.Config, error) {
	v := config.NewEmptyViper()
	if flags.ConfigFile != "" {
		v.SetConfigFile(flags.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", flags.ConfigFile, err)
		}
	}

	cfg := config.NewFromViper(v)
	applyFlags(cfg, flags)
	return cfg, nil
}

// applyFlags overrides configuration with the flags that were given
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	if flags.Providers != "" {
		providers := strings.Split(flags.Providers, ",")
		for i, p := range providers {
			providers[i] = strings.TrimSpace(p)
		}
		cfg.Set("detection.providers", providers)
	}
	if flags.QualityProvider != "" {
		cfg.Set("quality.provider", flags.QualityProvider)
	}
	if flags.RoboflowAPIKey != "" {
		cfg.Set("roboflow.api_key", flags.RoboflowAPIKey)
	}
	if flags.WorkflowURL != "" {
		cfg.Set("roboflow.workflow_url", flags.WorkflowURL)
	}
	if flags.GeminiAPIKey != "" {
		cfg.Set("gemini.api_key", flags.GeminiAPIKey)
	}
	if flags.OpenAIAPIKey != "" {
		cfg.Set("openai.api_key", flags.OpenAIAPIKey)
	}
	cfg.Set("alerts.enabled", false)
	if flags.NoCache {
		cfg.Set("cache.enabled", false)
	}
}
