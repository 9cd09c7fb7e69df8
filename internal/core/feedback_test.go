package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFeedbackHealthy(t *testing.T) {
	image := ImageAnalysisResult{ColorAnalysis: ColorAnalysis{Healthy: 90, Warning: 7, Danger: 3}}
	signal := SignalProcessingData{PH: 6.5, GasLevel: 50, StorageTime: 24, Temperature: ptr(4.0)}

	f := BuildFeedback(Score(image, signal), image, signal)

	assert.True(t, f.IsSafe)
	assert.Equal(t, RiskLow, f.RiskLevel)
	assert.Equal(t, recommendSafeLow, f.Recommendation)
	assert.Equal(t, []string{
		"No visible mold was detected. The color distribution shows 90% healthy appearance.",
		"The pH level of 6.5 is within the normal range for food products.",
		"Gas sensor readings (50ppm) are within acceptable limits.",
	}, f.Explanation)
}

func TestBuildFeedbackSpoiled(t *testing.T) {
	image := ImageAnalysisResult{
		MoldDetected:   true,
		MoldPercentage: 20,
		ColorAnalysis:  ColorAnalysis{Healthy: 60, Danger: 40},
	}
	signal := SignalProcessingData{PH: 3, GasLevel: 250, StorageTime: 100, Temperature: ptr(10.0)}

	f := BuildFeedback(Score(image, signal), image, signal)

	require.Len(t, f.Explanation, 4)
	assert.Equal(t, "Mold was detected covering approximately 20.0% of the visible surface. This is a strong indicator of spoilage.", f.Explanation[0])
	assert.Equal(t, "The pH level of 3 is unusually acidic, which may indicate fermentation or spoilage.", f.Explanation[1])
	assert.Equal(t, "High VOC levels (250ppm) detected, strongly suggesting decomposition or microbial activity.", f.Explanation[2])
	assert.Equal(t, "Extended storage time of 100 hours increases spoilage risk significantly.", f.Explanation[3])
}

func TestBuildFeedbackMiddleBands(t *testing.T) {
	image := ImageAnalysisResult{ColorAnalysis: ColorAnalysis{Healthy: 100}}
	signal := SignalProcessingData{PH: 7.5, GasLevel: 150, StorageTime: 60}

	f := BuildFeedback(QualityClassification{Score: 65}, image, signal)

	assert.True(t, f.IsSafe)
	assert.Equal(t, RiskMedium, f.RiskLevel)
	assert.Equal(t, recommendSafeSoon, f.Recommendation)
	assert.Contains(t, f.Explanation, "The pH level of 7.5 is alkaline, which could indicate bacterial activity.")
	assert.Contains(t, f.Explanation, "Elevated VOC levels (150ppm) detected. The food may be starting to spoil.")
	assert.Contains(t, f.Explanation, "Storage duration of 60 hours is approaching recommended limits.")
}

func TestMoldIsNeverSafe(t *testing.T) {
	image := ImageAnalysisResult{MoldDetected: true, ColorAnalysis: ColorAnalysis{Healthy: 100}}
	signal := SignalProcessingData{PH: 6}

	for _, score := range []float64{100, 90, 60, 45, 10} {
		f := BuildFeedback(QualityClassification{Score: score}, image, signal)
		assert.False(t, f.IsSafe, "score %v", score)
	}

	f := BuildFeedback(QualityClassification{Score: 50}, image, signal)
	assert.Equal(t, recommendNotAdvised, f.Recommendation)
}

func TestQuestions(t *testing.T) {
	image := ImageAnalysisResult{MoldDetected: true, MoldPercentage: 12.34, ColorAnalysis: ColorAnalysis{Healthy: 55}}
	signal := SignalProcessingData{PH: 5.5, GasLevel: 80, StorageTime: 12, Temperature: ptr(4.0)}

	q := ClassificationQuestion(image, signal)
	assert.Contains(t, q, "Mold detected (12.3%)")
	assert.Contains(t, q, "Storage: 12h at 4°C.")

	c := QualityClassification{Grade: GradeC, Score: 61.456, Factors: QualityFactors{Visual: 10, Chemical: 20, Storage: 94}}
	q = FeedbackQuestion(c, image, signal)
	assert.Contains(t, q, "Grade: C (61.46/100)")
	assert.Contains(t, q, "Is this food safe to consume?")

	signal.Temperature = nil
	assert.Contains(t, ClassificationQuestion(image, signal), "Storage: 12h.")
}
