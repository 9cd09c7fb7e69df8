package roboflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

const testImage = "data:image/jpeg;base64,aGVsbG8="

const workflowResponse = `{"outputs":[{"predictions":{"image":{"width":640,"height":480},"predictions":[
	{"class":"banana","confidence":0.72,"x":10,"y":10,"width":100,"height":50},
	{"class":"apple","confidence":0.91,"x":200,"y":120,"width":80,"height":80}]}}]}`

func newTestClient(workflowURL, proxyURL string) *Client {
	return NewClient(
		config.RoboflowConfig{APIKey: "rf-key", WorkflowURL: workflowURL, ProxyURL: proxyURL, Timeout: 5 * time.Second},
		core.RetryPolicy{MaxAttempts: 1},
		utils.NewTextProcessor(nil),
		zap.NewNop(),
	)
}

func TestDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rf-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body workflowRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "base64", body.Inputs.Image.Type)
		assert.Equal(t, "aGVsbG8=", body.Inputs.Image.Value)

		w.Write([]byte(workflowResponse))
	}))
	defer srv.Close()

	set, err := newTestClient(srv.URL+"/nutriguard/yolov8", "").Detect(context.Background(), testImage)

	require.NoError(t, err)
	assert.Equal(t, "roboflow", set.Provider)
	assert.Equal(t, "yolov8", set.Model)
	assert.Equal(t, core.ShapeWorkflowOutputs, set.Shape)
	require.Len(t, set.Detections, 2)
	require.NotNil(t, set.ImageSize)
	assert.Equal(t, 640.0, set.ImageSize.Width)
}

func TestDetectNotConfigured(t *testing.T) {
	c := NewClient(config.RoboflowConfig{}, core.RetryPolicy{}, utils.NewTextProcessor(nil), zap.NewNop())

	_, err := c.Detect(context.Background(), testImage)

	assert.ErrorIs(t, err, core.ErrNotConfigured)
	assert.Contains(t, err.Error(), "FOOD_SAFETY_ROBOFLOW_API_KEY")
}

func TestDetectUnauthorizedSkipsAlternativeFormat(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL+"/w", "").Detect(context.Background(), testImage)

	var ue *core.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusUnauthorized, ue.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, ErrorMessage(ue), "Invalid API key")
}

func TestForwardFallsBackToFormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") == "application/json" {
			http.Error(w, "workflow crashed", http.StatusInternalServerError)
			return
		}
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "aGVsbG8=", string(body))
		w.Write([]byte(`{"predictions":[{"class":"apple","confidence":0.8}]}`))
	}))
	defer srv.Close()

	raw, err := newTestClient(srv.URL+"/w", "").Forward(context.Background(), "rf-key", srv.URL+"/w", testImage)

	require.NoError(t, err)
	assert.Len(t, core.ParseDetections(raw).Detections, 1)
}

func TestForwardReturnsFirstErrorWhenBothFormatsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") == "application/json" {
			http.Error(w, "first", http.StatusBadGateway)
			return
		}
		http.Error(w, "second", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL+"/w", "").Forward(context.Background(), "rf-key", srv.URL+"/w", testImage)

	var ue *core.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)
	assert.Equal(t, "Roboflow API error: 502 - first", ErrorMessage(ue))
}

func TestDetectViaProxy(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body ProxyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, testImage, body.Image)
		assert.Equal(t, "rf-key", body.APIKey)
		assert.Equal(t, "https://serverless.roboflow.com/nutriguard/yolov8", body.WorkflowURL)
		w.Write([]byte(`{"predictions":[{"class":"fresh_banana","confidence":0.6}]}`))
	}))
	defer proxy.Close()

	c := newTestClient("https://serverless.roboflow.com/nutriguard/yolov8", proxy.URL+"/api/roboflow")
	set, err := c.Detect(context.Background(), testImage)

	require.NoError(t, err)
	assert.Equal(t, "fresh_banana", set.Detections[0].Class)
}

func TestErrorMessage(t *testing.T) {
	assert.Contains(t, ErrorMessage(&core.UpstreamError{StatusCode: http.StatusNotFound}), "Invalid workflow URL")
	assert.Equal(t, "Bad Request: missing inputs", ErrorMessage(&core.UpstreamError{StatusCode: http.StatusBadRequest, Body: "missing inputs"}))
}

func TestDetectRejectsOversizedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(workflowResponse))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, "")
	c.maxResponse = 64

	_, err := c.Detect(context.Background(), testImage)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUpstream)
	assert.Contains(t, err.Error(), "response larger than 64 bytes")

	c.maxResponse = int64(len(workflowResponse))
	set, err := c.Detect(context.Background(), testImage)
	require.NoError(t, err)
	assert.Len(t, set.Detections, 2)
}
