package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

const providerName = "openai"

const identifyPrompt = `Analyze this food image and respond ONLY with valid JSON in this format:
{
  "foodName": "name of the food (e.g. Banana, Apple, Tomato)",
  "category": "fruit|vegetable|meat|dairy|grain|seafood|processed|other",
  "freshness": "fresh|ripening|rotten",
  "moldDetected": true|false,
  "confidence": 0.0-1.0,
  "description": "short visual description"
}

Respond ONLY with the JSON, no other text.`

// VisionClient is an implementation of the DetectionProvider and QualityAnalyzer
// interfaces using OpenAI vision chat completions
type VisionClient struct {
	client        *openai.Client
	configured    bool
	modelName     string
	maxTokens     int
	temperature   float32
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

// identification is the reply to identifyPrompt
type identification struct {
	FoodName     string  `json:"foodName"`
	Category     string  `json:"category"`
	Freshness    string  `json:"freshness"`
	MoldDetected bool    `json:"moldDetected"`
	Confidence   float64 `json:"confidence"`
	Description  string  `json:"description"`
}

// NewVisionClient creates a new OpenAI vision client
func NewVisionClient(cfg config.OpenAIConfig, textProcessor *utils.TextProcessor, logger *zap.Logger) *VisionClient {
	return newVisionClient(cfg, openai.DefaultConfig(cfg.APIKey), textProcessor, logger)
}

func newVisionClient(cfg config.OpenAIConfig, clientConfig openai.ClientConfig, textProcessor *utils.TextProcessor, logger *zap.Logger) *VisionClient {
	return &VisionClient{
		client:        openai.NewClientWithConfig(clientConfig),
		configured:    cfg.IsConfigured(),
		modelName:     cfg.ModelName,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Name identifies the provider
func (c *VisionClient) Name() string {
	return providerName
}

// Detect identifies the food and reports it as a small detection set:
// the food itself, then its freshness and mold as extra classes.
func (c *VisionClient) Detect(ctx context.Context, image string) (core.DetectionSet, error) {
	text, err := c.complete(ctx, identifyPrompt, image)
	if err != nil {
		return core.DetectionSet{}, err
	}

	var id identification
	if err := c.decode(text, &id); err != nil {
		return core.DetectionSet{}, err
	}

	set := core.DetectionSet{Provider: providerName, Model: c.modelName, Shape: core.ShapeSingleLabel, Detections: []core.Detection{}}
	name := strings.TrimSpace(id.FoodName)
	if name == "" {
		return set, nil
	}
	confidence := min(max(id.Confidence, 0), 1)

	set.Detections = append(set.Detections, core.Detection{Class: name, Confidence: confidence})
	if f := strings.ToLower(id.Freshness); f == string(core.FreshnessRipening) || f == string(core.FreshnessRotten) {
		set.Detections = append(set.Detections, core.Detection{Class: f, Confidence: confidence})
	}
	if id.MoldDetected {
		set.Detections = append(set.Detections, core.Detection{Class: "mold", Confidence: confidence})
	}

	c.logger.Debug("OpenAI identified food",
		zap.String("food", name),
		zap.String("freshness", id.Freshness),
		zap.Float64("confidence", confidence))

	return set, nil
}

// AnalyzeQuality asks the model for a structured quality verdict on an image
func (c *VisionClient) AnalyzeQuality(ctx context.Context, image string, foodName string) (*core.QualityAssessment, error) {
	text, err := c.complete(ctx, core.BuildQualityPrompt(foodName), image)
	if err != nil {
		return nil, err
	}

	var payload core.QualityPayload
	if err := c.decode(text, &payload); err != nil {
		return nil, err
	}
	return core.NormalizeQuality(payload, c.modelName), nil
}

func (c *VisionClient) complete(ctx context.Context, prompt, image string) (string, error) {
	if !c.configured {
		return "", &core.NotConfiguredError{Provider: providerName, Missing: []string{"FOOD_SAFETY_OPENAI_API_KEY"}}
	}
	if utils.StripDataURI(image) == "" {
		return "", core.ErrNoImage
	}

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    utils.ToDataURI(image),
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", upstreamError(err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	c.logger.Debug("OpenAI completion received",
		zap.String("id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return resp.Choices[0].Message.Content, nil
}

func (c *VisionClient) decode(text string, v any) error {
	jsonStr, err := c.textProcessor.ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		return fmt.Errorf("failed to parse model reply as JSON: %w", err)
	}
	return nil
}

// upstreamError keeps the HTTP status of OpenAI API errors
func upstreamError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &core.UpstreamError{Provider: providerName, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &core.UpstreamError{Provider: providerName, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
}
