package config

import (
	"strings"
	"time"
)

// DetectionConfig lists the detection providers in the order they are tried
type DetectionConfig struct {
	Providers []string
}

// RoboflowConfig represents the configuration for the Roboflow workflow API
type RoboflowConfig struct {
	APIKey      string
	WorkflowURL string
	APIURL      string
	Workspace   string
	Workflow    string
	ProxyURL    string
	Timeout     time.Duration
}

// IsConfigured reports whether requests can be made
func (r RoboflowConfig) IsConfigured() bool {
	return len(r.MissingKeys()) == 0
}

// MissingKeys returns the environment variables still to be set
func (r RoboflowConfig) MissingKeys() []string {
	var missing []string
	if r.APIKey == "" {
		missing = append(missing, "FOOD_SAFETY_ROBOFLOW_API_KEY")
	}
	if r.WorkflowURL == "" {
		missing = append(missing, "FOOD_SAFETY_ROBOFLOW_WORKFLOW_URL")
	}
	return missing
}

// HuggingFaceConfig represents the configuration for the Hugging Face inference API
type HuggingFaceConfig struct {
	APIKey   string
	APIURL   string
	Models   []string
	ProxyURL string
	Timeout  time.Duration
}

// IsConfigured reports whether requests can be made. The public inference API
// accepts anonymous calls, so only a model list is required.
func (h HuggingFaceConfig) IsConfigured() bool {
	return len(h.MissingKeys()) == 0
}

// MissingKeys returns the environment variables still to be set
func (h HuggingFaceConfig) MissingKeys() []string {
	if len(h.Models) == 0 {
		return []string{"FOOD_SAFETY_HUGGINGFACE_MODELS"}
	}
	return nil
}

// QualityConfig selects the quality vision provider
type QualityConfig struct {
	Provider string
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	Models      []string
	MaxTokens   int
	Temperature float32
}

// IsConfigured reports whether requests can be made
func (g GeminiConfig) IsConfigured() bool {
	return len(g.MissingKeys()) == 0
}

// MissingKeys returns the environment variables still to be set
func (g GeminiConfig) MissingKeys() []string {
	if g.APIKey == "" {
		return []string{"FOOD_SAFETY_GEMINI_API_KEY"}
	}
	return nil
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
}

// IsConfigured reports whether requests can be made
func (o OpenAIConfig) IsConfigured() bool {
	return len(o.MissingKeys()) == 0
}

// MissingKeys returns the environment variables still to be set
func (o OpenAIConfig) MissingKeys() []string {
	if o.APIKey == "" {
		return []string{"FOOD_SAFETY_OPENAI_API_KEY"}
	}
	return nil
}

// BedrockConfig represents the configuration for Amazon Bedrock.
// Credentials come from the AWS default chain.
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
}

// FlowiseConfig represents the configuration for the Flowise prediction endpoints
type FlowiseConfig struct {
	ClassifyURL string
	FeedbackURL string
	Timeout     time.Duration
}

// RetryConfig controls retries of transient provider failures
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
}

// CacheConfig represents the analysis cache configuration
type CacheConfig struct {
	Type             string
	Enabled          bool
	TTL              time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	RedisURL         string
}

// SessionConfig controls how long idle sessions are kept
type SessionConfig struct {
	TTL     time.Duration
	Cleanup time.Duration
}

// ServerConfig represents the HTTP frontend configuration
type ServerConfig struct {
	ListenAddress        string
	BodyLimit            int
	AllowedOrigins       string
	AllowedUpstreamHosts []string
}

// AlertsConfig represents the SMTP alert configuration
type AlertsConfig struct {
	Enabled     bool
	SMTPAddress string
	Username    string
	Password    string
	From        string
	To          []string
	MinRisk     string
}

// TracingConfig represents the OpenTelemetry exporter configuration
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// GetDetection returns the detection configuration
func (c *Config) GetDetection() DetectionConfig {
	providers := c.GetStringSlice("detection.providers")
	for i, p := range providers {
		providers[i] = strings.ToLower(p)
	}
	return DetectionConfig{Providers: providers}
}

// GetRoboflow returns the Roboflow configuration. The workflow URL falls back to
// <api_url>/<workspace>/<workflow> when only the parts are configured.
func (c *Config) GetRoboflow() RoboflowConfig {
	cfg := RoboflowConfig{
		APIKey:      c.GetString("roboflow.api_key"),
		WorkflowURL: c.GetString("roboflow.workflow_url"),
		APIURL:      c.GetString("roboflow.api_url"),
		Workspace:   c.GetString("roboflow.workspace"),
		Workflow:    c.GetString("roboflow.workflow"),
		ProxyURL:    c.GetString("roboflow.proxy_url"),
		Timeout:     c.durationOr("roboflow.timeout", 30*time.Second),
	}
	if cfg.WorkflowURL == "" && cfg.APIURL != "" && cfg.Workspace != "" && cfg.Workflow != "" {
		cfg.WorkflowURL = strings.TrimRight(cfg.APIURL, "/") + "/" + cfg.Workspace + "/" + cfg.Workflow
	}
	return cfg
}

// GetHuggingFace returns the Hugging Face configuration
func (c *Config) GetHuggingFace() HuggingFaceConfig {
	return HuggingFaceConfig{
		APIKey:   c.GetString("huggingface.api_key"),
		APIURL:   strings.TrimRight(c.GetString("huggingface.api_url"), "/"),
		Models:   c.GetStringSlice("huggingface.models"),
		ProxyURL: c.GetString("huggingface.proxy_url"),
		Timeout:  c.durationOr("huggingface.timeout", 30*time.Second),
	}
}

// GetQuality returns the quality provider selection
func (c *Config) GetQuality() QualityConfig {
	return QualityConfig{Provider: strings.ToLower(c.GetString("quality.provider"))}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		Models:      c.GetStringSlice("gemini.models"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
	}
}

// GetFlowise returns the Flowise configuration
func (c *Config) GetFlowise() FlowiseConfig {
	return FlowiseConfig{
		ClassifyURL: c.GetString("flowise.classify_url"),
		FeedbackURL: c.GetString("flowise.feedback_url"),
		Timeout:     c.durationOr("flowise.timeout", time.Minute),
	}
}

// GetRetry returns the retry configuration
func (c *Config) GetRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts: c.GetInt("retry.max_attempts"),
		Delay:       c.durationOr("retry.delay", 10*time.Second),
		Multiplier:  c.GetFloat64("retry.multiplier"),
	}
}

// GetBatchDelay returns the pause between batch items
func (c *Config) GetBatchDelay() time.Duration {
	return c.durationOr("batch.delay", time.Second)
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:             strings.ToLower(c.GetString("cache.type")),
		Enabled:          c.GetBool("cache.enabled"),
		TTL:              c.durationOr("cache.ttl", 24*time.Hour),
		CleanupFrequency: c.durationOr("cache.cleanup_frequency", time.Hour),
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisURL:         c.GetString("cache.redis_url"),
	}
}

// GetSession returns the session store configuration
func (c *Config) GetSession() SessionConfig {
	return SessionConfig{
		TTL:     c.durationOr("session.ttl", 2*time.Hour),
		Cleanup: c.durationOr("session.cleanup", 10*time.Minute),
	}
}

// GetServer returns the HTTP frontend configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:        c.GetString("server.listen_address"),
		BodyLimit:            c.GetInt("server.body_limit"),
		AllowedOrigins:       c.GetString("server.allowed_origins"),
		AllowedUpstreamHosts: c.GetStringSlice("server.allowed_upstream_hosts"),
	}
}

// GetAlerts returns the alert configuration
func (c *Config) GetAlerts() AlertsConfig {
	return AlertsConfig{
		Enabled:     c.GetBool("alerts.enabled"),
		SMTPAddress: c.GetString("alerts.smtp_address"),
		Username:    c.GetString("alerts.username"),
		Password:    c.GetString("alerts.password"),
		From:        c.GetString("alerts.from"),
		To:          c.GetStringSlice("alerts.to"),
		MinRisk:     strings.ToLower(c.GetString("alerts.min_risk")),
	}
}

// GetTracing returns the tracing configuration
func (c *Config) GetTracing() TracingConfig {
	return TracingConfig{
		Enabled:     c.GetBool("tracing.enabled"),
		Endpoint:    c.GetString("tracing.endpoint"),
		ServiceName: c.GetString("tracing.service_name"),
	}
}

func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return fallback
	}
	return d
}
