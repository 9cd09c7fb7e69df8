package flowise

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
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

const (
	providerName = "flowise"
	chunkSize    = 4096
	maxErrorBody = 500
)

// Explainer is an implementation of the Explainer interface using a Flowise prediction endpoint
type Explainer struct {
	httpClient    *http.Client
	endpoint      string
	envKey        string
	textProcessor *utils.TextProcessor
	logger        *zap.Logger
}

type predictionRequest struct {
	Question       string         `json:"question"`
	OverrideConfig map[string]any `json:"overrideConfig,omitempty"`
}

type predictionResponse struct {
	Text     string `json:"text"`
	Response string `json:"response"`
}

// NewExplainer creates an explainer for one endpoint. envKey names the setting
// reported when the endpoint is empty.
func NewExplainer(endpoint, envKey string, timeout time.Duration, textProcessor *utils.TextProcessor, logger *zap.Logger) *Explainer {
	return &Explainer{
		httpClient:    &http.Client{Timeout: timeout},
		endpoint:      endpoint,
		envKey:        envKey,
		textProcessor: textProcessor,
		logger:        logger,
	}
}

// Explain posts the question and streams the body to onChunk as it arrives.
// JSON bodies are reduced to their text or response field.
func (e *Explainer) Explain(ctx context.Context, question string, override map[string]any, onChunk func(string)) (string, error) {
	if e.endpoint == "" {
		return "", &core.NotConfiguredError{Provider: providerName, Missing: []string{e.envKey}}
	}

	body, err := json.Marshal(predictionRequest{Question: question, OverrideConfig: override})
	if err != nil {
		return "", fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &core.UpstreamError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody*2))
		return "", &core.UpstreamError{
			Provider:   providerName,
			StatusCode: resp.StatusCode,
			Body:       e.textProcessor.ClipBody(raw, maxErrorBody),
		}
	}

	var full strings.Builder
	emit := func(b []byte) {
		if len(b) == 0 {
			return
		}
		chunk := e.textProcessor.SanitizeUTF8(string(b))
		full.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	buf := make([]byte, chunkSize)
	var pending []byte
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			data := append(pending, buf[:n]...)
			cut := completeRunes(data)
			emit(data[:cut])
			pending = append([]byte(nil), data[cut:]...)
		}
		if errors.Is(err, io.EOF) {
			emit(pending)
			break
		}
		if err != nil {
			return "", &core.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode, Err: err}
		}
	}

	text := full.String()
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		text = fromJSON(text)
	}

	e.logger.Debug("Flowise answered",
		zap.String("endpoint", e.endpoint),
		zap.Int("length", len(text)))

	return text, nil
}

// completeRunes returns the length of the prefix of b that does not end inside a UTF-8 sequence
func completeRunes(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return i
			}
			break
		}
	}
	return len(b)
}

func fromJSON(text string) string {
	var pr predictionResponse
	if err := json.Unmarshal([]byte(text), &pr); err != nil {
		return text
	}
	switch {
	case pr.Text != "":
		return pr.Text
	case pr.Response != "":
		return pr.Response
	}
	return text
}
