package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// legacyEnv maps config keys to the environment names used by the browser app.
// They are consulted after the FOOD_SAFETY_ prefixed names.
var legacyEnv = map[string]string{
	"roboflow.api_key":      "NEXT_PUBLIC_ROBOFLOW_API_KEY",
	"roboflow.workflow_url": "NEXT_PUBLIC_ROBOFLOW_WORKFLOW_URL",
	"roboflow.api_url":      "NEXT_PUBLIC_ROBOFLOW_API_URL",
	"roboflow.workspace":    "NEXT_PUBLIC_ROBOFLOW_WORKSPACE",
	"roboflow.workflow":     "NEXT_PUBLIC_ROBOFLOW_WORKFLOW",
	"huggingface.api_key":   "NEXT_PUBLIC_HUGGINGFACE_API_KEY",
	"gemini.api_key":        "NEXT_PUBLIC_GEMINI_API_KEY",
	"openai.api_key":        "NEXT_PUBLIC_OPENAI_API_KEY",
	"flowise.classify_url":  "NEXT_PUBLIC_FLOWISE_CLASSIFY_URL",
	"flowise.feedback_url":  "NEXT_PUBLIC_FLOWISE_FEEDBACK_URL",
}

// New creates a new configuration instance
func New() (*Config, error) {
	loadDotEnv(".env.local", ".env")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/food-safety-agent/")
	v.AddConfigPath("$HOME/.food-safety-agent")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults and env bindings.
// No config file is searched for.
func NewEmptyViper() *viper.Viper {
	loadDotEnv(".env.local", ".env")

	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	return v
}

// loadDotEnv loads each file that exists. Variables already set win.
func loadDotEnv(files ...string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("FOOD_SAFETY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		// BindEnv with explicit names replaces the automatic one, so list both
		_ = v.BindEnv(key, "FOOD_SAFETY_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), legacy)
	}
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Detection defaults
	v.SetDefault("detection.providers", []string{"roboflow", "huggingface"})

	// Roboflow defaults
	v.SetDefault("roboflow.api_key", "")
	v.SetDefault("roboflow.workflow_url", "")
	v.SetDefault("roboflow.api_url", "https://serverless.roboflow.com")
	v.SetDefault("roboflow.workspace", "nutriguard")
	v.SetDefault("roboflow.workflow", "yolov8")
	v.SetDefault("roboflow.proxy_url", "")
	v.SetDefault("roboflow.timeout", "30s")

	// Hugging Face defaults
	v.SetDefault("huggingface.api_key", "")
	v.SetDefault("huggingface.api_url", "https://api-inference.huggingface.co/models")
	v.SetDefault("huggingface.models", []string{
		"google/vit-base-patch16-224",
		"microsoft/resnet-50",
		"facebook/deit-base-distilled-patch16-224",
	})
	v.SetDefault("huggingface.proxy_url", "")
	v.SetDefault("huggingface.timeout", "30s")

	// Quality vision defaults
	v.SetDefault("quality.provider", "gemini")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.models", []string{"gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash-exp"})
	v.SetDefault("gemini.max_tokens", 1024)
	v.SetDefault("gemini.temperature", 0.2)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model_name", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1000)
	v.SetDefault("openai.temperature", 0.2)

	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.model_id", "anthropic.claude-3-haiku-20240307-v1:0")
	v.SetDefault("bedrock.max_tokens", 1000)
	v.SetDefault("bedrock.temperature", 0.2)

	// Flowise defaults
	v.SetDefault("flowise.classify_url", "")
	v.SetDefault("flowise.feedback_url", "")
	v.SetDefault("flowise.timeout", "60s")

	// Retry and batch defaults
	v.SetDefault("retry.max_attempts", 2)
	v.SetDefault("retry.delay", "10s")
	v.SetDefault("retry.multiplier", 1.0)
	v.SetDefault("batch.delay", "1s")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_frequency", "1h")
	v.SetDefault("cache.sqlite_path", "/data/food_safety_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/food_safety")
	v.SetDefault("cache.redis_url", "redis://localhost:6379/0")

	// Session defaults
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("session.cleanup", "10m")

	// Server defaults
	v.SetDefault("server.listen_address", "0.0.0.0:8080")
	v.SetDefault("server.body_limit", 20*1024*1024)
	v.SetDefault("server.allowed_origins", "*")
	v.SetDefault("server.allowed_upstream_hosts", []string{
		"serverless.roboflow.com",
		"detect.roboflow.com",
		"api-inference.huggingface.co",
	})

	// Alert defaults
	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.smtp_address", "localhost:25")
	v.SetDefault("alerts.username", "")
	v.SetDefault("alerts.password", "")
	v.SetDefault("alerts.from", "food-safety@localhost")
	v.SetDefault("alerts.to", []string{})
	v.SetDefault("alerts.min_risk", "high")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "food-safety-agent")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration.
// Comma separated env values are split.
func (c *Config) GetStringSlice(key string) []string {
	values := c.v.GetStringSlice(key)
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// Set overrides a configuration value
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
