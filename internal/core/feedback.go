package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	recommendSafeLow      = "This food appears safe for consumption. All indicators are within acceptable parameters."
	recommendSafeSoon     = "This food is likely safe but should be consumed soon. Some indicators suggest early stages of degradation."
	recommendDoNotConsume = "DO NOT CONSUME. Multiple critical indicators suggest this food is unsafe and may cause illness."
	recommendNotAdvised   = "Consumption is NOT recommended. Several indicators suggest potential safety concerns."
)

// RiskFor maps a score to a risk level
func RiskFor(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 60:
		return RiskMedium
	case score >= 40:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// BuildFeedback derives the safety verdict, explanations and recommendation
func BuildFeedback(classification QualityClassification, image ImageAnalysisResult, signal SignalProcessingData) FinalFeedback {
	isSafe := classification.Score >= 60 && !image.MoldDetected
	risk := RiskFor(classification.Score)

	return FinalFeedback{
		IsSafe:         isSafe,
		Recommendation: recommendation(isSafe, risk),
		Explanation:    explanations(image, signal),
		RiskLevel:      risk,
	}
}

func recommendation(isSafe bool, risk RiskLevel) string {
	switch {
	case isSafe && risk == RiskLow:
		return recommendSafeLow
	case isSafe:
		return recommendSafeSoon
	case risk == RiskCritical:
		return recommendDoNotConsume
	default:
		return recommendNotAdvised
	}
}

func explanations(image ImageAnalysisResult, signal SignalProcessingData) []string {
	out := make([]string, 0, 4)

	if image.MoldDetected {
		out = append(out, fmt.Sprintf("Mold was detected covering approximately %.1f%% of the visible surface. This is a strong indicator of spoilage.", image.MoldPercentage))
	} else {
		out = append(out, fmt.Sprintf("No visible mold was detected. The color distribution shows %.0f%% healthy appearance.", image.ColorAnalysis.Healthy))
	}

	ph := formatNumber(signal.PH)
	switch {
	case signal.PH < 4.5:
		out = append(out, fmt.Sprintf("The pH level of %s is unusually acidic, which may indicate fermentation or spoilage.", ph))
	case signal.PH > 7.0:
		out = append(out, fmt.Sprintf("The pH level of %s is alkaline, which could indicate bacterial activity.", ph))
	default:
		out = append(out, fmt.Sprintf("The pH level of %s is within the normal range for food products.", ph))
	}

	switch {
	case signal.GasLevel > 200:
		out = append(out, fmt.Sprintf("High VOC levels (%dppm) detected, strongly suggesting decomposition or microbial activity.", signal.GasLevel))
	case signal.GasLevel > 100:
		out = append(out, fmt.Sprintf("Elevated VOC levels (%dppm) detected. The food may be starting to spoil.", signal.GasLevel))
	default:
		out = append(out, fmt.Sprintf("Gas sensor readings (%dppm) are within acceptable limits.", signal.GasLevel))
	}

	switch {
	case signal.StorageTime > 72:
		out = append(out, fmt.Sprintf("Extended storage time of %d hours increases spoilage risk significantly.", signal.StorageTime))
	case signal.StorageTime > 48:
		out = append(out, fmt.Sprintf("Storage duration of %d hours is approaching recommended limits.", signal.StorageTime))
	}

	return out
}

// ClassificationQuestion is the narrative prompt for the classification step
func ClassificationQuestion(image ImageAnalysisResult, signal SignalProcessingData) string {
	mold := "not detected"
	if image.MoldDetected {
		mold = "detected"
	}
	var b strings.Builder
	b.WriteString("Analyze food safety based on:\n")
	fmt.Fprintf(&b, "Visual Analysis: Mold %s (%.1f%%),\n", mold, image.MoldPercentage)
	fmt.Fprintf(&b, "Color health score: %.1f%%,\n", image.ColorAnalysis.Healthy)
	fmt.Fprintf(&b, "pH: %s, Gas: %dppm,\n", formatNumber(signal.PH), signal.GasLevel)
	fmt.Fprintf(&b, "Storage: %dh%s.\n", signal.StorageTime, temperatureSuffix(signal))
	b.WriteString("Provide a quality grade (A-F) and classification.")
	return b.String()
}

// FeedbackQuestion is the narrative prompt for the feedback step
func FeedbackQuestion(classification QualityClassification, image ImageAnalysisResult, signal SignalProcessingData) string {
	mold := "not detected"
	if image.MoldDetected {
		mold = "detected"
	}
	f := classification.Factors
	var b strings.Builder
	b.WriteString("Provide a detailed food safety recommendation based on:\n")
	fmt.Fprintf(&b, "Grade: %s (%s/100),\n", classification.Grade, formatNumber(classification.Score))
	fmt.Fprintf(&b, "Visual: %s%%, Chemical: %s%%, Storage: %s%%,\n", formatNumber(f.Visual), formatNumber(f.Chemical), formatNumber(f.Storage))
	fmt.Fprintf(&b, "Mold: %s,\n", mold)
	fmt.Fprintf(&b, "pH: %s, Gas: %dppm,\n", formatNumber(signal.PH), signal.GasLevel)
	fmt.Fprintf(&b, "Storage: %dh%s.\n", signal.StorageTime, temperatureSuffix(signal))
	b.WriteString("Is this food safe to consume? Explain why or why not.")
	return b.String()
}

func temperatureSuffix(signal SignalProcessingData) string {
	if signal.Temperature == nil {
		return ""
	}
	return " at " + formatNumber(*signal.Temperature) + "°C"
}

// formatNumber prints at most two decimals without trailing zeros: 6.5, 3, 97.1
func formatNumber(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
