package roboflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

const (
	providerName = "roboflow"
	maxErrorBody = 500
	// maxResponse caps how much of a provider reply is read
	maxResponse  = 10 << 20
)

// Client is an implementation of the DetectionProvider interface using a Roboflow workflow
type Client struct {
	httpClient    *http.Client
	apiKey        string
	workflowURL   string
	proxyURL      string
	retry         core.RetryPolicy
	maxResponse   int64
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

type workflowRequest struct {
	APIKey string         `json:"api_key"`
	Inputs workflowInputs `json:"inputs"`
}

type workflowInputs struct {
	Image workflowImage `json:"image"`
}

type workflowImage struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ProxyRequest is the body accepted by the /api/roboflow proxy route
type ProxyRequest struct {
	Image       string `json:"image"`
	APIKey      string `json:"apiKey"`
	WorkflowURL string `json:"workflowUrl"`
}

// NewClient creates a new Roboflow client
func NewClient(
	cfg config.RoboflowConfig,
	retry core.RetryPolicy,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		apiKey:        cfg.APIKey,
		workflowURL:   cfg.WorkflowURL,
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

// Detect runs the workflow on an image and normalizes the predictions
func (c *Client) Detect(ctx context.Context, image string) (core.DetectionSet, error) {
	var missing []string
	if c.apiKey == "" {
		missing = append(missing, "FOOD_SAFETY_ROBOFLOW_API_KEY")
	}
	if c.workflowURL == "" {
		missing = append(missing, "FOOD_SAFETY_ROBOFLOW_WORKFLOW_URL")
	}
	if len(missing) > 0 {
		return core.DetectionSet{}, &core.NotConfiguredError{Provider: providerName, Missing: missing}
	}

	var raw []byte
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		if c.proxyURL != "" {
			raw, err = c.viaProxy(ctx, image)
		} else {
			raw, err = c.Forward(ctx, c.apiKey, c.workflowURL, image)
		}
		return err
	})
	if err != nil {
		return core.DetectionSet{}, err
	}

	set := core.ParseDetections(raw)
	set.Provider = providerName
	set.Model = workflowName(c.workflowURL)

	c.logger.Debug("Roboflow response parsed",
		zap.String("shape", string(set.Shape)),
		zap.Int("detections", len(set.Detections)))

	return set, nil
}

// Forward posts an image to a workflow URL and returns the raw JSON response.
// A non-auth failure of the JSON format is retried once with the image as a
// form-encoded body; if that fails too, the first error is returned.
func (c *Client) Forward(ctx context.Context, apiKey, workflowURL, image string) ([]byte, error) {
	target, err := withAPIKey(workflowURL, apiKey)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(workflowRequest{
		APIKey: apiKey,
		Inputs: workflowInputs{Image: workflowImage{Type: "base64", Value: utils.StripDataURI(image)}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	c.logger.Debug("Sending request to Roboflow",
		zap.String("workflow", workflowName(workflowURL)),
		zap.Int("image_kb", len(image)/1024))

	raw, err := c.post(ctx, target, "application/json", bytes.NewReader(body))
	if err == nil {
		return raw, nil
	}

	ue, ok := err.(*core.UpstreamError)
	if !ok || ue.StatusCode == 0 || !retriesAltFormat(ue.StatusCode) {
		return nil, err
	}

	c.logger.Info("Trying alternative request format", zap.Int("status", ue.StatusCode))
	altRaw, altErr := c.post(ctx, target, "application/x-www-form-urlencoded", strings.NewReader(utils.StripDataURI(image)))
	if altErr != nil {
		c.logger.Warn("Alternative format also failed", zap.Error(altErr))
		return nil, err
	}
	return altRaw, nil
}

func (c *Client) viaProxy(ctx context.Context, image string) ([]byte, error) {
	body, err := json.Marshal(ProxyRequest{Image: image, APIKey: c.apiKey, WorkflowURL: c.workflowURL})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proxy payload: %w", err)
	}
	return c.post(ctx, c.proxyURL, "application/json", bytes.NewReader(body))
}

func (c *Client) post(ctx context.Context, target, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

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
		return nil, &core.UpstreamError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       c.textProcessor.ClipBody(raw, maxErrorBody),
		}
	}
	return raw, nil
}

// ErrorMessage renders an upstream failure the way the proxy route reports it
func ErrorMessage(ue *core.UpstreamError) string {
	switch ue.StatusCode {
	case http.StatusUnauthorized:
		return "Unauthorized: Invalid API key. Please check your FOOD_SAFETY_ROBOFLOW_API_KEY"
	case http.StatusNotFound:
		return "Not Found: Invalid workflow URL. Please check your FOOD_SAFETY_ROBOFLOW_WORKFLOW_URL"
	case http.StatusBadRequest:
		return "Bad Request: " + ue.Body
	case 0:
		return fmt.Sprintf("Roboflow request failed: %v", ue.Err)
	default:
		return fmt.Sprintf("Roboflow API error: %d - %s", ue.StatusCode, ue.Body)
	}
}

func retriesAltFormat(status int) bool {
	switch status {
	case http.StatusUnauthorized, http.StatusNotFound, http.StatusBadRequest:
		return false
	}
	return true
}

func withAPIKey(workflowURL, apiKey string) (string, error) {
	u, err := url.Parse(workflowURL)
	if err != nil {
		return "", fmt.Errorf("invalid workflow URL: %w", err)
	}
	q := u.Query()
	q.Set("api_key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// workflowName returns the last path element of a workflow URL
func workflowName(workflowURL string) string {
	u, err := url.Parse(workflowURL)
	if err != nil || u.Path == "" {
		return ""
	}
	return path.Base(u.Path)
}
