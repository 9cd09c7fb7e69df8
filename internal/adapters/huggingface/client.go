package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

const (
	providerName = "huggingface"
	maxErrorBody = 500
	// maxResponse caps how much of a provider reply is read
	maxResponse  = 10 << 20
)

// Client is an implementation of the DetectionProvider interface using the
// Hugging Face inference API. Candidate models are tried in order.
type Client struct {
	httpClient    *http.Client
	apiKey        string
	apiURL        string
	models        []string
	proxyURL      string
	retry         core.RetryPolicy
	maxResponse   int64
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

// ProxyRequest is the body accepted by the /api/huggingface proxy route
type ProxyRequest struct {
	Model       string `json:"model"`
	ImageBase64 string `json:"imageBase64"`
}

// NewClient creates a new Hugging Face client
func NewClient(
	cfg config.HuggingFaceConfig,
	retry core.RetryPolicy,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		apiKey:        cfg.APIKey,
		apiURL:        cfg.APIURL,
		models:        cfg.Models,
		proxyURL:      cfg.ProxyURL,
		retry:         retry,
		maxResponse:   maxResponse,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Name identifies the provider
func (c *Client) Name() string {
	return providerName
}

// Detect tries each candidate model; the first one producing a detection wins
func (c *Client) Detect(ctx context.Context, image string) (core.DetectionSet, error) {
	if len(c.models) == 0 {
		return core.DetectionSet{}, &core.NotConfiguredError{
			Provider: providerName,
			Missing:  []string{"FOOD_SAFETY_HUGGINGFACE_MODELS"},
		}
	}

	var errs []error
	for _, model := range c.models {
		if err := ctx.Err(); err != nil {
			return core.DetectionSet{}, err
		}

		c.logger.Debug("Trying Hugging Face model", zap.String("model", model))
		policy := c.retry
		policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			c.logger.Info("Model is loading, retrying",
				zap.String("model", model),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait))
		}

		var raw []byte
		err := policy.Do(ctx, func(ctx context.Context) error {
			var err error
			if c.proxyURL != "" {
				raw, err = c.viaProxy(ctx, model, image)
			} else {
				raw, err = c.Infer(ctx, model, image)
			}
			return err
		})
		if err != nil {
			c.logger.Warn("Hugging Face model failed", zap.String("model", model), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
			continue
		}

		set := core.ParseDetections(raw)
		if set.Empty() {
			errs = append(errs, fmt.Errorf("%s: %w", model, core.ErrNoDetections))
			continue
		}
		set.Provider = providerName
		set.Model = model
		return set, nil
	}

	return core.DetectionSet{}, fmt.Errorf("all Hugging Face models failed: %w", errors.Join(errs...))
}

// Infer calls a model directly and returns the raw JSON response
func (c *Client) Infer(ctx context.Context, model, image string) ([]byte, error) {
	body, err := json.Marshal(inferenceRequest{Inputs: utils.ToDataURI(image)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}
	return c.post(ctx, c.ModelURL(model), bytes.NewReader(body), true)
}

// ModelURL returns the inference endpoint of a model
func (c *Client) ModelURL(model string) string {
	return c.apiURL + "/" + strings.TrimLeft(model, "/")
}

func (c *Client) viaProxy(ctx context.Context, model, image string) ([]byte, error) {
	body, err := json.Marshal(ProxyRequest{Model: model, ImageBase64: image})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proxy payload: %w", err)
	}
	return c.post(ctx, c.proxyURL, bytes.NewReader(body), false)
}

func (c *Client) post(ctx context.Context, target string, body io.Reader, auth bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if auth && c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &core.UpstreamError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return nil, &core.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(raw)) > c.maxResponse {
		return nil, &core.UpstreamError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response larger than %d bytes", c.maxResponse),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		ue := &core.UpstreamError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       c.textProcessor.ClipBody(raw, maxErrorBody),
		}
		// the API also reports warm-up with other statuses
		if strings.Contains(strings.ToLower(ue.Body), "loading") {
			ue.Err = core.ErrModelLoading
		}
		return nil, ue
	}
	return raw, nil
}
