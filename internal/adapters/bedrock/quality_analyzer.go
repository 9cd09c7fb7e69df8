package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

const (
	providerName     = "bedrock"
	anthropicVersion = "bedrock-2023-05-31"
)

// ModelInvoker is the part of the Bedrock runtime client the analyzer uses
type ModelInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// QualityAnalyzer is an implementation of the QualityAnalyzer interface using
// Anthropic Claude 3 models on Amazon Bedrock
type QualityAnalyzer struct {
	client        ModelInvoker
	modelID       string
	maxTokens     int
	temperature   float32
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float32         `json:"temperature"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string          `json:"role"`
	Content []claudeContent `json:"content"`
}

type claudeContent struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Source *claudeSource `json:"source,omitempty"`
}

type claudeSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type claudeResponse struct {
	Content []claudeContent `json:"content"`
}

// NewQualityAnalyzer creates a new Bedrock quality analyzer
func NewQualityAnalyzer(
	client ModelInvoker,
	modelID string,
	maxTokens int,
	temperature float32,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *QualityAnalyzer {
	return &QualityAnalyzer{
		client:        client,
		modelID:       modelID,
		maxTokens:     maxTokens,
		temperature:   temperature,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Name identifies the analyzer
func (a *QualityAnalyzer) Name() string {
	return providerName
}

// AnalyzeQuality asks Claude for a structured quality verdict on an image
func (a *QualityAnalyzer) AnalyzeQuality(ctx context.Context, image string, foodName string) (*core.QualityAssessment, error) {
	if !strings.HasPrefix(a.modelID, "anthropic.claude-3") {
		return nil, fmt.Errorf("model %s does not accept images", a.modelID)
	}
	data := utils.StripDataURI(image)
	if data == "" {
		return nil, core.ErrNoImage
	}

	payload, err := json.Marshal(claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        a.maxTokens,
		Temperature:      a.temperature,
		Messages: []claudeMessage{{
			Role: "user",
			Content: []claudeContent{
				{Type: "image", Source: &claudeSource{Type: "base64", MediaType: utils.MIMEType(image), Data: data}},
				{Type: "text", Text: core.BuildQualityPrompt(foodName)},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resp, err := a.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(a.modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, upstreamError(err)
	}

	var claudeResp claudeResponse
	if err := json.Unmarshal(resp.Body, &claudeResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal Claude response: %w", err)
	}
	var sb strings.Builder
	for _, c := range claudeResp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}

	jsonStr, err := a.textProcessor.ExtractJSON(sb.String())
	if err != nil {
		return nil, err
	}
	var qp core.QualityPayload
	if err := json.Unmarshal([]byte(jsonStr), &qp); err != nil {
		return nil, fmt.Errorf("failed to parse model reply as JSON: %w", err)
	}

	q := core.NormalizeQuality(qp, a.modelID)
	a.logger.Debug("Bedrock quality analysis complete",
		zap.String("model", a.modelID),
		zap.String("quality", q.OverallQuality))
	return q, nil
}

// upstreamError keeps the HTTP status of AWS response errors
func upstreamError(err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return &core.UpstreamError{Provider: providerName, StatusCode: re.HTTPStatusCode(), Err: err}
	}
	return fmt.Errorf("failed to invoke Bedrock model: %w", err)
}
