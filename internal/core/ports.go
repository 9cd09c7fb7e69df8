package core

import (
	"context"
)

// DetectionProvider turns an image into a normalized detection set
type DetectionProvider interface {
	// Name identifies the provider in logs and results
	Name() string

	// Detect analyzes a base64 image, with or without a data-URI prefix.
	// An unparsable response yields an empty set and a nil error.
	Detect(ctx context.Context, image string) (DetectionSet, error)
}

// QualityAnalyzer asks a vision model for a structured quality assessment
type QualityAnalyzer interface {
	Name() string
	AnalyzeQuality(ctx context.Context, image string, foodName string) (*QualityAssessment, error)
}

// Explainer produces narrative text for a question, streaming chunks to onChunk as they arrive
type Explainer interface {
	Explain(ctx context.Context, question string, override map[string]any, onChunk func(string)) (string, error)
}

// AlertNotifier is told about verdicts at or above the configured risk
type AlertNotifier interface {
	Notify(ctx context.Context, snapshot SessionSnapshot) error
}

// CacheRepository defines the interface for caching image analysis results
type CacheRepository interface {
	// Get retrieves a cached entry for an image hash
	Get(ctx context.Context, imageHash string) (*AnalysisCacheEntry, error)

	// Set stores a cache entry
	Set(ctx context.Context, entry *AnalysisCacheEntry) error

	// Delete removes a cache entry
	Delete(ctx context.Context, imageHash string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}
