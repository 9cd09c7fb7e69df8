package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

const testImage = "data:image/png;base64,aGVsbG8="

type fakeGenerator struct {
	replies map[string]string
	errs    map[string]error
	models  []string
	parts   []genai.Part
	closed  bool
}

func (f *fakeGenerator) Generate(ctx context.Context, model string, parts ...genai.Part) (string, error) {
	f.models = append(f.models, model)
	f.parts = parts
	if err := f.errs[model]; err != nil {
		return "", err
	}
	return f.replies[model], nil
}

func (f *fakeGenerator) Close() error {
	f.closed = true
	return nil
}

func newTestAnalyzer(gen *fakeGenerator, apiKey string) *QualityAnalyzer {
	a := NewQualityAnalyzer(
		config.GeminiConfig{APIKey: apiKey, Models: []string{"gemini-1.5-flash", "gemini-1.5-pro"}},
		utils.NewTextProcessor(nil),
		zap.NewNop(),
	)
	a.newGenerator = func(ctx context.Context, key string, temperature float32, maxTokens int) (generator, error) {
		return gen, nil
	}
	return a
}

func TestAnalyzeQuality(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]string{
		"gemini-1.5-flash": "```json\n{\"overallQuality\":\"good\",\"freshnessScore\":82,\"issues\":[],\"moldDetected\":false,\"safeToEat\":true}\n```",
	}}

	q, err := newTestAnalyzer(gen, "key").AnalyzeQuality(context.Background(), testImage, "Banana")

	require.NoError(t, err)
	assert.Equal(t, "good", q.OverallQuality)
	assert.Equal(t, 82.0, q.FreshnessScore)
	assert.Equal(t, "gemini-1.5-flash", q.Model)
	assert.Equal(t, "Unable to determine condition", q.Description)
	assert.True(t, gen.closed)

	require.Len(t, gen.parts, 2)
	assert.Contains(t, string(gen.parts[0].(genai.Text)), `"Banana"`)
	blob := gen.parts[1].(genai.Blob)
	assert.Equal(t, "image/png", blob.MIMEType)
	assert.Equal(t, []byte("hello"), blob.Data)
}

func TestAnalyzeQualityFallsBackToNextModel(t *testing.T) {
	gen := &fakeGenerator{
		errs: map[string]error{"gemini-1.5-flash": &googleapi.Error{Code: http.StatusNotFound, Message: "model not found"}},
		replies: map[string]string{
			"gemini-1.5-pro": `{"overallQuality":"poor","freshnessScore":140,"moldDetected":true,"safeToEat":false}`,
		},
	}

	q, err := newTestAnalyzer(gen, "key").AnalyzeQuality(context.Background(), testImage, "Bread")

	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-1.5-flash", "gemini-1.5-pro"}, gen.models)
	assert.Equal(t, "gemini-1.5-pro", q.Model)
	assert.Equal(t, 100.0, q.FreshnessScore)
	assert.True(t, q.MoldDetected)
	assert.False(t, q.SafeToEat)
}

func TestAnalyzeQualityAllModelsFail(t *testing.T) {
	gen := &fakeGenerator{
		errs:    map[string]error{"gemini-1.5-flash": errors.New("boom")},
		replies: map[string]string{"gemini-1.5-pro": "I cannot help with that"},
	}

	_, err := newTestAnalyzer(gen, "key").AnalyzeQuality(context.Background(), testImage, "")

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrNoJSON)
	assert.Contains(t, err.Error(), "all Gemini models failed")
}

func TestUpstreamErrorKeepsStatus(t *testing.T) {
	err := upstreamError(&googleapi.Error{Code: http.StatusForbidden, Message: "API key not valid"})

	var ue *core.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusForbidden, ue.StatusCode)
	assert.Equal(t, "gemini rejected the credentials", core.Diagnose(err).Message)
}

func TestAnalyzeQualityNotConfigured(t *testing.T) {
	_, err := newTestAnalyzer(&fakeGenerator{}, "").AnalyzeQuality(context.Background(), testImage, "Apple")
	assert.ErrorIs(t, err, core.ErrNotConfigured)

	a := newTestAnalyzer(&fakeGenerator{replies: map[string]string{"gemini-1.5-flash": `{"freshnessScore":70}`}}, "")
	q, err := a.WithAPIKey("request-key").AnalyzeQuality(context.Background(), testImage, "Apple")
	require.NoError(t, err)
	assert.Equal(t, 70.0, q.FreshnessScore)
}

func TestAnalyzeQualityRejectsEmptyImage(t *testing.T) {
	_, err := newTestAnalyzer(&fakeGenerator{}, "key").AnalyzeQuality(context.Background(), "data:image/png;base64,", "Apple")
	assert.ErrorIs(t, err, core.ErrNoImage)
}
