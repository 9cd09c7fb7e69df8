package flowise

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

func newTestExplainer(endpoint string) *Explainer {
	return NewExplainer(endpoint, "FOOD_SAFETY_FLOWISE_CLASSIFY_URL", 5*time.Second, utils.NewTextProcessor(nil), zap.NewNop())
}

func TestExplainStreamsPlainText(t *testing.T) {
	long := strings.Repeat("fresh ", 1500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Is it safe?", req.Question)
		assert.Equal(t, "A", req.OverrideConfig["grade"])

		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(long))
	}))
	defer srv.Close()

	var chunks []string
	text, err := newTestExplainer(srv.URL).Explain(context.Background(), "Is it safe?",
		map[string]any{"grade": "A"}, func(c string) { chunks = append(chunks, c) })

	require.NoError(t, err)
	assert.Equal(t, long, text)
	assert.Greater(t, len(chunks), 1)
	assert.Equal(t, long, strings.Join(chunks, ""))
}

func TestExplainJSONBody(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"text":"Grade A produce."}`, "Grade A produce."},
		{`{"response":"Eat soon."}`, "Eat soon."},
		{`{"other":1}`, `{"other":1}`},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(tt.body))
		}))

		text, err := newTestExplainer(srv.URL).Explain(context.Background(), "q", nil, nil)
		srv.Close()

		require.NoError(t, err)
		assert.Equal(t, tt.want, text)
	}
}

func TestExplainUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chatflow not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestExplainer(srv.URL).Explain(context.Background(), "q", nil, nil)

	var ue *core.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.StatusCode)
	assert.Equal(t, "chatflow not found", ue.Body)
}

func TestExplainNotConfigured(t *testing.T) {
	_, err := newTestExplainer("").Explain(context.Background(), "q", nil, nil)

	assert.ErrorIs(t, err, core.ErrNotConfigured)
	assert.Contains(t, err.Error(), "FOOD_SAFETY_FLOWISE_CLASSIFY_URL")
}

func TestCompleteRunes(t *testing.T) {
	b := []byte("ok °C")
	assert.Equal(t, len(b), completeRunes(b))
	assert.Equal(t, 3, completeRunes(b[:4]))
	assert.Equal(t, 0, completeRunes(nil))
}
