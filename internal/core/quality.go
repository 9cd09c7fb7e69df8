package core

import (
	"fmt"
)

// QualityPrompt is sent with the image to quality-vision models
const QualityPrompt = `Analyze this food image of "%s" for quality and freshness.

IMPORTANT: Respond ONLY with a valid JSON object, no other text.

Evaluate:
1. Overall visual quality
2. Signs of mold or fungal growth
3. Discoloration or unusual colors
4. Texture abnormalities
5. Signs of spoilage or decay
6. Whether it's safe to eat

Respond in this exact JSON format:
{
  "overallQuality": "excellent|good|fair|poor|unsafe",
  "freshnessScore": <number 0-100>,
  "issues": ["issue1", "issue2"],
  "description": "Brief description of the food's condition",
  "recommendations": ["recommendation1", "recommendation2"],
  "moldDetected": true|false,
  "discoloration": true|false,
  "safeToEat": true|false
}`

// BuildQualityPrompt fills the quality prompt for a food name
func BuildQualityPrompt(foodName string) string {
	if foodName == "" {
		foodName = "food"
	}
	return fmt.Sprintf(QualityPrompt, foodName)
}

// QualityPayload is the raw JSON a quality model answers with. Every field may be missing.
type QualityPayload struct {
	OverallQuality  string   `json:"overallQuality"`
	FreshnessScore  *float64 `json:"freshnessScore"`
	Issues          []string `json:"issues"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
	MoldDetected    bool     `json:"moldDetected"`
	Discoloration   bool     `json:"discoloration"`
	SafeToEat       *bool    `json:"safeToEat"`
}

// NormalizeQuality fills defaults and clamps the freshness score to [0,100]
func NormalizeQuality(p QualityPayload, model string) *QualityAssessment {
	q := &QualityAssessment{
		OverallQuality:  p.OverallQuality,
		FreshnessScore:  50,
		Issues:          p.Issues,
		Description:     p.Description,
		Recommendations: p.Recommendations,
		MoldDetected:    p.MoldDetected,
		Discoloration:   p.Discoloration,
		SafeToEat:       p.SafeToEat == nil || *p.SafeToEat,
		Model:           model,
	}
	if q.OverallQuality == "" {
		q.OverallQuality = "fair"
	}
	if p.FreshnessScore != nil {
		q.FreshnessScore = min(max(*p.FreshnessScore, 0), 100)
	}
	if q.Issues == nil {
		q.Issues = []string{}
	}
	if q.Recommendations == nil {
		q.Recommendations = []string{}
	}
	if q.Description == "" {
		q.Description = "Unable to determine condition"
	}
	return q
}

// MergeQuality folds a quality assessment into a detector-based analysis.
// Mold is an OR of both sources; the colour split follows the quality verdict.
func MergeQuality(result ImageAnalysisResult, q *QualityAssessment) ImageAnalysisResult {
	if q == nil {
		return result
	}
	result.Quality = q
	result.MoldDetected = result.MoldDetected || q.MoldDetected
	if result.MoldDetected {
		result.MoldPercentage = 100 - q.FreshnessScore
	} else {
		result.MoldPercentage = 0
	}

	color := ColorAnalysis{Healthy: q.FreshnessScore, Warning: 10, Danger: 5}
	if q.Discoloration {
		color.Warning = 30
	}
	if q.MoldDetected {
		color.Danger = 40
	}
	result.ColorAnalysis = color.Normalize()
	return result
}
