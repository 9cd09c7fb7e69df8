package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeQualityDefaults(t *testing.T) {
	q := NormalizeQuality(QualityPayload{}, "gemini-1.5-flash")

	assert.Equal(t, "fair", q.OverallQuality)
	assert.Equal(t, 50.0, q.FreshnessScore)
	assert.Equal(t, "Unable to determine condition", q.Description)
	assert.NotNil(t, q.Issues)
	assert.NotNil(t, q.Recommendations)
	assert.True(t, q.SafeToEat)
	assert.Equal(t, "gemini-1.5-flash", q.Model)
}

func TestNormalizeQualityClamps(t *testing.T) {
	assert.Equal(t, 100.0, NormalizeQuality(QualityPayload{FreshnessScore: ptr(140.0)}, "").FreshnessScore)
	assert.Equal(t, 0.0, NormalizeQuality(QualityPayload{FreshnessScore: ptr(-3.0)}, "").FreshnessScore)
	assert.False(t, NormalizeQuality(QualityPayload{SafeToEat: ptr(false)}, "").SafeToEat)
}

func TestMergeQuality(t *testing.T) {
	base := ImageAnalysisResult{
		Freshness:     FreshnessFresh,
		ColorAnalysis: ColorFor(FreshnessFresh),
	}

	merged := MergeQuality(base, &QualityAssessment{FreshnessScore: 80, MoldDetected: true, Discoloration: true})
	assert.True(t, merged.MoldDetected)
	assert.InDelta(t, 20, merged.MoldPercentage, 1e-9)
	assert.InDelta(t, 100, merged.ColorAnalysis.Healthy+merged.ColorAnalysis.Warning+merged.ColorAnalysis.Danger, 1e-9)
	assert.Greater(t, merged.ColorAnalysis.Danger, merged.ColorAnalysis.Warning)
	assert.NotNil(t, merged.Quality)

	clean := MergeQuality(base, &QualityAssessment{FreshnessScore: 85})
	assert.False(t, clean.MoldDetected)
	assert.Zero(t, clean.MoldPercentage)
	assert.Equal(t, ColorAnalysis{Healthy: 85, Warning: 10, Danger: 5}, clean.ColorAnalysis)

	assert.Equal(t, base, MergeQuality(base, nil))
}

func TestMergeQualityKeepsDetectorMold(t *testing.T) {
	base := ImageAnalysisResult{MoldDetected: true, MoldPercentage: 50}
	merged := MergeQuality(base, &QualityAssessment{FreshnessScore: 30})
	assert.True(t, merged.MoldDetected)
	assert.InDelta(t, 70, merged.MoldPercentage, 1e-9)
}

func TestBuildQualityPrompt(t *testing.T) {
	assert.Contains(t, BuildQualityPrompt("Banana"), `food image of "Banana"`)
	assert.Contains(t, BuildQualityPrompt(""), `food image of "food"`)
}
