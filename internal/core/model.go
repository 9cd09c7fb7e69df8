package core

import (
	"slices"
	"sort"
	"time"
)

// Freshness is the coarse spoilage state of a food item
type Freshness string

const (
	FreshnessFresh    Freshness = "fresh"
	FreshnessRipening Freshness = "ripening"
	FreshnessRotten   Freshness = "rotten"
)

// FoodCategory is the coarse food family used for storage advice
type FoodCategory string

const (
	CategoryFruit     FoodCategory = "fruit"
	CategoryVegetable FoodCategory = "vegetable"
	CategoryMeat      FoodCategory = "meat"
	CategoryDairy     FoodCategory = "dairy"
	CategoryGrain     FoodCategory = "grain"
	CategorySeafood   FoodCategory = "seafood"
	CategoryProcessed FoodCategory = "processed"
	CategoryOther     FoodCategory = "other"
)

// Grade is the letter summary of a quality score
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// RiskLevel summarizes food-safety risk
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// AtLeast reports whether r is as severe as other or worse.
// Unknown levels never match.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	a, ok1 := riskRank[r]
	b, ok2 := riskRank[other]
	return ok1 && ok2 && a >= b
}

// ParseRiskLevel converts a config value into a RiskLevel
func ParseRiskLevel(s string) (RiskLevel, bool) {
	r := RiskLevel(s)
	_, ok := riskRank[r]
	return r, ok
}

// BoundingBox is a detected region, in pixel or normalized coordinates depending on the provider
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns width * height
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// Detection is a single labeled output from a vision provider
type Detection struct {
	Class       string       `json:"class"`
	Confidence  float64      `json:"confidence"`
	BoundingBox *BoundingBox `json:"boundingBox,omitempty"`
}

// ImageSize is the size reported by a provider for the analyzed image
type ImageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DetectionSet is the normalized output of a detection provider
type DetectionSet struct {
	Provider   string        `json:"provider,omitempty"`
	Model      string        `json:"model,omitempty"`
	Shape      ResponseShape `json:"shape"`
	Detections []Detection   `json:"detections"`
	ImageSize  *ImageSize    `json:"imageSize,omitempty"`
}

// Empty reports whether the set holds no detections
func (s DetectionSet) Empty() bool {
	return len(s.Detections) == 0
}

// Sorted returns the detections ordered by descending confidence.
// The receiver is not modified.
func (s DetectionSet) Sorted() []Detection {
	out := make([]Detection, len(s.Detections))
	copy(out, s.Detections)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// HasGeometry reports whether any detection carries a bounding box
func (s DetectionSet) HasGeometry() bool {
	for _, d := range s.Detections {
		if d.BoundingBox != nil {
			return true
		}
	}
	return false
}

// FoodType describes the identified food
type FoodType struct {
	Name           string       `json:"name"`
	Category       FoodCategory `json:"category"`
	Confidence     float64      `json:"confidence"`
	ShelfLife      string       `json:"shelfLife"`
	OptimalStorage string       `json:"optimalStorage"`
}

// ColorAnalysis is the healthy/warning/danger split of the visible surface
type ColorAnalysis struct {
	Healthy float64 `json:"healthy"`
	Warning float64 `json:"warning"`
	Danger  float64 `json:"danger"`
}

// Normalize rescales the three components so they sum to 100.
// An all-zero split becomes fully healthy.
func (c ColorAnalysis) Normalize() ColorAnalysis {
	h, w, d := max(c.Healthy, 0), max(c.Warning, 0), max(c.Danger, 0)
	total := h + w + d
	switch total {
	case 0:
		return ColorAnalysis{Healthy: 100}
	case 100:
		return ColorAnalysis{Healthy: h, Warning: w, Danger: d}
	}
	h = h / total * 100
	w = w / total * 100
	return ColorAnalysis{Healthy: h, Warning: w, Danger: 100 - h - w}
}

// ImageAnalysisResult is the output of the image analysis stage
type ImageAnalysisResult struct {
	FoodType       FoodType           `json:"foodType"`
	Freshness      Freshness          `json:"freshness"`
	MoldDetected   bool               `json:"moldDetected"`
	MoldPercentage float64            `json:"moldPercentage"`
	ColorAnalysis  ColorAnalysis      `json:"colorAnalysis"`
	Confidence     float64            `json:"confidence"`
	Detections     []Detection        `json:"detections,omitempty"`
	Provider       string             `json:"provider,omitempty"`
	Quality        *QualityAssessment `json:"quality,omitempty"`
	Degraded       bool               `json:"degraded"`
	Notes          []string           `json:"notes,omitempty"`
}

// SignalProcessingData holds user-supplied sensor readings
type SignalProcessingData struct {
	PH          float64  `json:"ph" validate:"gte=0,lte=14"`
	GasLevel    int      `json:"gasLevel" validate:"gte=0,lte=500"`
	StorageTime int      `json:"storageTime" validate:"gte=0,lte=168"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=-20,lte=30"`
}

// QualityFactors are the per-dimension sub-scores, displayed separately from the main score
type QualityFactors struct {
	Visual   float64 `json:"visual"`
	Chemical float64 `json:"chemical"`
	Storage  float64 `json:"storage"`
}

// QualityClassification is the output of the scoring engine
type QualityClassification struct {
	Grade     Grade          `json:"grade"`
	Score     float64        `json:"score"`
	Factors   QualityFactors `json:"factors"`
	Narrative string         `json:"narrative,omitempty"`
}

// FinalFeedback is the safety verdict shown to the user
type FinalFeedback struct {
	IsSafe         bool      `json:"isSafe"`
	Recommendation string    `json:"recommendation"`
	Explanation    []string  `json:"explanation"`
	RiskLevel      RiskLevel `json:"riskLevel"`
	Narrative      string    `json:"narrative,omitempty"`
}

// QualityAssessment is the structured verdict of a quality-vision model
type QualityAssessment struct {
	OverallQuality  string   `json:"overallQuality"`
	FreshnessScore  float64  `json:"freshnessScore"`
	Issues          []string `json:"issues"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
	MoldDetected    bool     `json:"moldDetected"`
	Discoloration   bool     `json:"discoloration"`
	SafeToEat       bool     `json:"safeToEat"`
	Model           string   `json:"model,omitempty"`
}

// AnalysisCacheEntry is a cached image analysis keyed by image hash
type AnalysisCacheEntry struct {
	ImageHash string
	Result    *ImageAnalysisResult
	CreatedAt time.Time
	ExpiresAt time.Time
}

// LogType classifies a step log line
type LogType string

const (
	LogInfo       LogType = "info"
	LogSuccess    LogType = "success"
	LogWarning    LogType = "warning"
	LogError      LogType = "error"
	LogProcessing LogType = "processing"
)

// StepLog is one line of the per-session processing log
type StepLog struct {
	ID        string    `json:"id"`
	Stage     string    `json:"stage"`
	Type      LogType   `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a deep copy
func (r ImageAnalysisResult) Clone() ImageAnalysisResult {
	if r.Detections != nil {
		detections := make([]Detection, len(r.Detections))
		for i, d := range r.Detections {
			if d.BoundingBox != nil {
				box := *d.BoundingBox
				d.BoundingBox = &box
			}
			detections[i] = d
		}
		r.Detections = detections
	}
	if r.Quality != nil {
		q := r.Quality.Clone()
		r.Quality = &q
	}
	r.Notes = slices.Clone(r.Notes)
	return r
}

// Clone returns a deep copy
func (q QualityAssessment) Clone() QualityAssessment {
	q.Issues = slices.Clone(q.Issues)
	q.Recommendations = slices.Clone(q.Recommendations)
	return q
}

// Clone returns a deep copy
func (d SignalProcessingData) Clone() SignalProcessingData {
	if d.Temperature != nil {
		t := *d.Temperature
		d.Temperature = &t
	}
	return d
}

// Clone returns a deep copy
func (f FinalFeedback) Clone() FinalFeedback {
	f.Explanation = slices.Clone(f.Explanation)
	return f
}
