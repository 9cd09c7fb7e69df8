package utils

import (
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrNoJSON is returned when a model reply contains no JSON object
var ErrNoJSON = errors.New("no JSON object found in response")

// TextProcessor cleans up text that crosses a provider boundary:
// model replies, upstream error bodies and streamed chunks.
type TextProcessor struct {
	logger *zap.Logger
}

// NewTextProcessor creates a new TextProcessor
func NewTextProcessor(logger *zap.Logger) *TextProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextProcessor{
		logger: logger,
	}
}

// Truncate cuts text to maxSize bytes without splitting a UTF-8 sequence
func (tp *TextProcessor) Truncate(text string, maxSize int) string {
	if maxSize <= 0 || len(text) <= maxSize {
		return text
	}

	truncated := text[:maxSize]
	for !utf8.ValidString(truncated) && len(truncated) > 0 {
		truncated = truncated[:len(truncated)-1]
	}

	tp.logger.Debug("Text truncated",
		zap.Int("original_size", len(text)),
		zap.Int("truncated_size", len(truncated)))

	return truncated + "..."
}

// SanitizeUTF8 drops invalid UTF-8 bytes
func (tp *TextProcessor) SanitizeUTF8(text string) string {
	if utf8.ValidString(text) {
		return text
	}
	return strings.ToValidUTF8(text, "")
}

// ClipBody prepares an upstream response body for an error message
func (tp *TextProcessor) ClipBody(body []byte, maxSize int) string {
	return strings.TrimSpace(tp.Truncate(tp.SanitizeUTF8(string(body)), maxSize))
}

// ExtractJSON returns the outermost JSON object in a model reply.
// Markdown code fences and surrounding prose are ignored.
func (tp *TextProcessor) ExtractJSON(text string) (string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end < start {
		tp.logger.Debug("No JSON object in model reply", zap.Int("length", len(text)))
		return "", ErrNoJSON
	}
	return cleaned[start : end+1], nil
}
