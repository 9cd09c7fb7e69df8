package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

const providerName = "gemini"

// generator sends one multimodal request to a named model and returns its text
type generator interface {
	Generate(ctx context.Context, model string, parts ...genai.Part) (string, error)
	Close() error
}

type generatorFunc func(ctx context.Context, apiKey string, temperature float32, maxTokens int) (generator, error)

// QualityAnalyzer is an implementation of the QualityAnalyzer interface using Google Gemini.
// Models are tried in order until one answers with parsable JSON.
type QualityAnalyzer struct {
	apiKey        string
	models        []string
	maxTokens     int
	temperature   float32
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
	newGenerator  generatorFunc
}

// NewQualityAnalyzer creates a new Gemini quality analyzer
func NewQualityAnalyzer(cfg config.GeminiConfig, textProcessor *utils.TextProcessor, logger *zap.Logger) *QualityAnalyzer {
	return &QualityAnalyzer{
		apiKey:        cfg.APIKey,
		models:        cfg.Models,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		textProcessor: textProcessor,
		logger:        logger,
		newGenerator:  newGenaiGenerator,
	}
}

// WithAPIKey returns a copy of the analyzer using another API key
func (a *QualityAnalyzer) WithAPIKey(apiKey string) *QualityAnalyzer {
	cp := *a
	cp.apiKey = apiKey
	return &cp
}

// HasAPIKey reports whether a key is set
func (a *QualityAnalyzer) HasAPIKey() bool {
	return a.apiKey != ""
}

// Name identifies the analyzer
func (a *QualityAnalyzer) Name() string {
	return providerName
}

// AnalyzeQuality asks Gemini for a structured quality verdict on an image
func (a *QualityAnalyzer) AnalyzeQuality(ctx context.Context, image string, foodName string) (*core.QualityAssessment, error) {
	if a.apiKey == "" {
		return nil, &core.NotConfiguredError{Provider: providerName, Missing: []string{"FOOD_SAFETY_GEMINI_API_KEY"}}
	}
	if len(a.models) == 0 {
		return nil, &core.NotConfiguredError{Provider: providerName, Missing: []string{"FOOD_SAFETY_GEMINI_MODELS"}}
	}

	data, err := utils.DecodeImage(image)
	if err != nil || len(data) == 0 {
		return nil, core.ErrNoImage
	}

	gen, err := a.newGenerator(ctx, a.apiKey, a.temperature, a.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	defer gen.Close()

	prompt := core.BuildQualityPrompt(foodName)
	format := utils.ImageFormat(image)

	var lastErr error
	for _, model := range a.models {
		a.logger.Debug("Trying Gemini model", zap.String("model", model))

		text, err := gen.Generate(ctx, model, genai.Text(prompt), genai.ImageData(format, data))
		if err != nil {
			lastErr = upstreamError(err)
			a.logger.Warn("Gemini model failed", zap.String("model", model), zap.Error(err))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		assessment, err := a.parse(text, model)
		if err != nil {
			lastErr = err
			a.logger.Warn("Gemini reply could not be parsed", zap.String("model", model), zap.Error(err))
			continue
		}

		a.logger.Info("Gemini quality analysis complete",
			zap.String("model", model),
			zap.String("quality", assessment.OverallQuality),
			zap.Float64("freshness_score", assessment.FreshnessScore))
		return assessment, nil
	}

	return nil, fmt.Errorf("all Gemini models failed: %w", lastErr)
}

func (a *QualityAnalyzer) parse(text, model string) (*core.QualityAssessment, error) {
	jsonStr, err := a.textProcessor.ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var payload core.QualityPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse model reply as JSON: %w", err)
	}
	return core.NormalizeQuality(payload, model), nil
}

// upstreamError keeps the HTTP status of Google API errors
func upstreamError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &core.UpstreamError{Provider: providerName, StatusCode: gerr.Code, Body: gerr.Message, Err: err}
	}
	return err
}

type genaiGenerator struct {
	client      *genai.Client
	temperature float32
	maxTokens   int
}

func newGenaiGenerator(ctx context.Context, apiKey string, temperature float32, maxTokens int) (generator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &genaiGenerator{client: client, temperature: temperature, maxTokens: maxTokens}, nil
}

func (g *genaiGenerator) Generate(ctx context.Context, model string, parts ...genai.Part) (string, error) {
	m := g.client.GenerativeModel(model)
	m.SetTemperature(g.temperature)
	if g.maxTokens > 0 {
		m.SetMaxOutputTokens(int32(g.maxTokens))
	}
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return sb.String(), nil
}

func (g *genaiGenerator) Close() error {
	return g.client.Close()
}
