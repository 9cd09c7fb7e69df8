package core

import (
	"math"
)

// Score computes the quality classification from visual and sensor findings.
// It is total: out-of-range inputs flow through the arithmetic unchanged.
func Score(image ImageAnalysisResult, signal SignalProcessingData) QualityClassification {
	score := 100.0

	if image.MoldDetected {
		score -= 30
	}
	score -= image.MoldPercentage * 2
	score -= image.ColorAnalysis.Danger * 0.5
	score -= image.ColorAnalysis.Warning * 0.2

	if signal.PH < 4.5 || signal.PH > 7.0 {
		score -= 15
	}

	switch {
	case signal.GasLevel > 200:
		score -= 25
	case signal.GasLevel > 100:
		score -= 10
	}

	switch {
	case signal.StorageTime > 72:
		score -= 20
	case signal.StorageTime > 48:
		score -= 10
	}

	if signal.Temperature != nil && *signal.Temperature > 8 {
		score -= 15
	}

	score = clampScore(score)

	return QualityClassification{
		Grade:   GradeFor(score),
		Score:   score,
		Factors: Factors(image, signal),
	}
}

// GradeFor maps a score to its letter grade
func GradeFor(score float64) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 75:
		return GradeB
	case score >= 60:
		return GradeC
	case score >= 40:
		return GradeD
	default:
		return GradeF
	}
}

// Factors computes the visual, chemical and storage sub-scores, each floored at 0
func Factors(image ImageAnalysisResult, signal SignalProcessingData) QualityFactors {
	return QualityFactors{
		Visual:   max(0, 100-image.MoldPercentage*5-image.ColorAnalysis.Danger),
		Chemical: max(0, 100-float64(signal.GasLevel)/5-math.Abs(signal.PH-6)*5),
		Storage:  max(0, 100-float64(signal.StorageTime)/2),
	}
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return min(max(score, 0), 100)
}
