package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotConfigured is returned when a provider lacks its key or endpoint
	ErrNotConfigured = errors.New("provider not configured")
	// ErrNoDetections is returned when no provider located any detection
	ErrNoDetections = errors.New("no detections found")
	// ErrModelLoading is returned when an upstream model is still warming up
	ErrModelLoading = errors.New("model is loading")
	// ErrUpstream is returned for upstream HTTP failures
	ErrUpstream = errors.New("upstream request failed")
	// ErrNoImage is returned when a step needs an image and none was given
	ErrNoImage = errors.New("no image provided")
	// ErrMissingStage is returned when a step runs before the step it depends on
	ErrMissingStage = errors.New("previous step has not completed")
	// ErrInvalidSignal is returned when sensor readings are out of range
	ErrInvalidSignal = errors.New("invalid signal data")
)

// UpstreamError carries the status and body of a failed upstream call.
// StatusCode is 0 when the request never got a response.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	if e.Body == "" {
		if e.Err != nil {
			return fmt.Sprintf("%s returned HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("%s returned HTTP %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Is makes UpstreamError match ErrUpstream, and ErrModelLoading for 503s
func (e *UpstreamError) Is(target error) bool {
	if target == ErrUpstream {
		return true
	}
	return target == ErrModelLoading && e.StatusCode == http.StatusServiceUnavailable
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NotConfiguredError names the settings a provider is missing
type NotConfiguredError struct {
	Provider string
	Missing  []string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("%s not configured: set %s", e.Provider, strings.Join(e.Missing, ", "))
}

func (e *NotConfiguredError) Is(target error) bool {
	return target == ErrNotConfigured
}

// Transient reports whether err is worth retrying: transport failures and model warm-up
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrModelLoading) {
		return true
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode == 0
	}
	return false
}

// Diagnostic is a short user-facing failure message with next steps
type Diagnostic struct {
	Message   string   `json:"message"`
	NextSteps []string `json:"nextSteps,omitempty"`
}

// Diagnose turns an error into a Diagnostic. It never exposes stack traces.
func Diagnose(err error) Diagnostic {
	if err == nil {
		return Diagnostic{Message: "ok"}
	}

	var notConfigured *NotConfiguredError
	if errors.As(err, &notConfigured) {
		steps := make([]string, 0, len(notConfigured.Missing)+1)
		for _, key := range notConfigured.Missing {
			steps = append(steps, "Set "+key+" in .env.local or the config file")
		}
		steps = append(steps, "Restart the service after changing configuration")
		return Diagnostic{
			Message:   fmt.Sprintf("%s is not configured", notConfigured.Provider),
			NextSteps: steps,
		}
	}

	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		switch upstream.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return Diagnostic{
				Message:   fmt.Sprintf("%s rejected the credentials", upstream.Provider),
				NextSteps: []string{"Check the API key", "Make sure the key has access to this model or workflow"},
			}
		case http.StatusNotFound:
			return Diagnostic{
				Message:   fmt.Sprintf("%s endpoint not found", upstream.Provider),
				NextSteps: []string{"Check the workflow or model URL", "Make sure the workflow is published"},
			}
		case http.StatusBadRequest:
			return Diagnostic{
				Message:   fmt.Sprintf("%s rejected the request", upstream.Provider),
				NextSteps: []string{"Check the image format (JPEG or PNG, base64 encoded)", "Check the workflow input names"},
			}
		case http.StatusServiceUnavailable:
			return Diagnostic{
				Message:   fmt.Sprintf("%s model is still loading", upstream.Provider),
				NextSteps: []string{"Wait a few seconds and try again"},
			}
		case 0:
			return Diagnostic{
				Message:   fmt.Sprintf("could not reach %s", upstream.Provider),
				NextSteps: []string{"Check your network connection", "Check the endpoint URL"},
			}
		}
		return Diagnostic{
			Message:   fmt.Sprintf("%s returned HTTP %d", upstream.Provider, upstream.StatusCode),
			NextSteps: []string{"Try again later"},
		}
	}

	switch {
	case errors.Is(err, ErrNoImage):
		return Diagnostic{Message: "no image was provided", NextSteps: []string{"Upload a photo of the food"}}
	case errors.Is(err, ErrMissingStage):
		return Diagnostic{Message: err.Error(), NextSteps: []string{"Complete the previous step first"}}
	case errors.Is(err, ErrInvalidSignal):
		return Diagnostic{Message: err.Error(), NextSteps: []string{"Adjust the sensor readings to their valid ranges"}}
	case errors.Is(err, ErrNoDetections):
		return Diagnostic{Message: "no food could be detected in the image", NextSteps: []string{"Try a clearer, well-lit photo"}}
	case errors.Is(err, ErrModelLoading):
		return Diagnostic{Message: "the model is still loading", NextSteps: []string{"Wait a few seconds and try again"}}
	}

	return Diagnostic{Message: "analysis failed", NextSteps: []string{"Try again", "Check the service logs for details"}}
}
