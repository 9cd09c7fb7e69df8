package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, p)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newTestClient(apiURL string, models ...string) *Client {
	return NewClient(
		config.HuggingFaceConfig{APIKey: "hf-key", APIURL: apiURL, Models: models, Timeout: 5 * time.Second},
		core.RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond},
		utils.NewTextProcessor(nil),
		zap.NewNop(),
	)
}

func TestDetectFirstModelWithDetectionsWins(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		assert.Equal(t, "Bearer hf-key", r.Header.Get("Authorization"))

		var body inferenceRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, strings.HasPrefix(body.Inputs, "data:image/jpeg;base64,"))

		switch r.URL.Path {
		case "/google/vit":
			w.Write([]byte(`[]`))
		case "/microsoft/resnet-50":
			w.Write([]byte(`[{"label":"banana","score":0.88},{"label":"lemon","score":0.05}]`))
		default:
			t.Errorf("unexpected model %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "google/vit", "microsoft/resnet-50", "facebook/deit")
	set, err := c.Detect(context.Background(), "aGVsbG8=")

	require.NoError(t, err)
	assert.Equal(t, "microsoft/resnet-50", set.Model)
	assert.Equal(t, "huggingface", set.Provider)
	assert.Equal(t, core.ShapeLabelScoreList, set.Shape)
	assert.Equal(t, "banana", set.Detections[0].Class)
	assert.Equal(t, []string{"/google/vit", "/microsoft/resnet-50"}, rec.all())
}

func TestDetectRetriesLoadingModel(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		if len(rec.all()) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"Model google/vit is currently loading","estimated_time":20}`))
			return
		}
		w.Write([]byte(`[{"label":"Granny Smith","score":0.7}]`))
	}))
	defer srv.Close()

	set, err := newTestClient(srv.URL, "google/vit").Detect(context.Background(), "aGVsbG8=")

	require.NoError(t, err)
	assert.Equal(t, "Granny Smith", set.Detections[0].Class)
	assert.Len(t, rec.all(), 2)
}

func TestDetectDoesNotRetryClientErrors(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.Path)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "a/one", "b/two").Detect(context.Background(), "aGVsbG8=")

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.Contains(t, err.Error(), "a/one")
	assert.Contains(t, err.Error(), "b/two")
	assert.Equal(t, []string{"/a/one", "/b/two"}, rec.all())
}

func TestLoadingBodyIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model is loading"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "m").Infer(context.Background(), "m", "aGVsbG8=")

	assert.ErrorIs(t, err, core.ErrModelLoading)
	assert.True(t, core.Transient(err))
}

func TestDetectAllEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "m").Detect(context.Background(), "aGVsbG8=")

	assert.ErrorIs(t, err, core.ErrNoDetections)
}

func TestDetectViaProxy(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var body ProxyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "google/vit", body.Model)
		assert.Equal(t, "aGVsbG8=", body.ImageBase64)
		w.Write([]byte(`{"label":"pizza","score":0.9}`))
	}))
	defer proxy.Close()

	c := NewClient(
		config.HuggingFaceConfig{APIURL: "https://api-inference.huggingface.co/models", Models: []string{"google/vit"}, ProxyURL: proxy.URL},
		core.RetryPolicy{MaxAttempts: 1},
		utils.NewTextProcessor(nil),
		zap.NewNop(),
	)
	set, err := c.Detect(context.Background(), "aGVsbG8=")

	require.NoError(t, err)
	assert.Equal(t, core.ShapeSingleLabel, set.Shape)
	assert.Equal(t, "https://api-inference.huggingface.co/models/google/vit", c.ModelURL("google/vit"))
}

func TestDetectNotConfigured(t *testing.T) {
	_, err := newTestClient("http://unused").Detect(context.Background(), "aGVsbG8=")
	assert.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestDetectRejectsOversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"label":"banana","score":0.88},{"label":"lemon","score":0.05}]`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "google/vit")
	c.maxResponse = 16

	_, err := c.Detect(context.Background(), "aGVsbG8=")

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.False(t, core.Transient(err))
}
