package core

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// FallbackFoodName is used when nothing could be detected
	FallbackFoodName = "Food Item"

	defaultImageWidth  = 640
	defaultImageHeight = 480
	improveWindow      = 5
)

// Resolution is the resolver's reading of a detection set
type Resolution struct {
	FoodName       string
	Category       FoodCategory
	Freshness      Freshness
	MoldDetected   bool
	MoldPercentage float64
	// Confidence is in [0,1]
	Confidence    float64
	ColorAnalysis ColorAnalysis
	Storage       StorageInfo
	Degraded      bool
}

// Resolver maps raw detection classes onto freshness, category and mold findings.
// It is stateless and safe for concurrent use.
type Resolver struct{}

// NewResolver creates a new resolver
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve reads a detection set. An empty set resolves to the degraded fallback.
func (r *Resolver) Resolve(set DetectionSet) Resolution {
	if set.Empty() {
		return Resolution{
			FoodName:      FallbackFoodName,
			Category:      CategoryOther,
			Freshness:     FreshnessFresh,
			ColorAnalysis: ColorFor(FreshnessFresh),
			Storage:       LookupStorage(CategoryOther, FreshnessFresh),
			Degraded:      true,
		}
	}

	sorted := set.Sorted()
	best := sorted[0]
	category := CategorizeClass(best.Class)
	if category == CategoryOther {
		for _, d := range sorted[1:min(len(sorted), improveWindow)] {
			if c := CategorizeClass(d.Class); c != CategoryOther {
				best, category = d, c
				break
			}
		}
	}

	classes := make([]string, len(sorted))
	for i, d := range sorted {
		classes[i] = d.Class
	}
	freshness := ResolveFreshness(classes...)

	res := Resolution{
		FoodName:      FormatFoodName(best.Class),
		Category:      category,
		Freshness:     freshness,
		Confidence:    sorted[0].Confidence,
		ColorAnalysis: ColorFor(freshness),
		Storage:       LookupStorage(category, freshness),
	}
	res.MoldDetected = freshness == FreshnessRotten || anyContains(classes, fungusKeywords)

	if set.HasGeometry() {
		var moldBoxes []Detection
		for _, d := range sorted {
			if d.BoundingBox != nil && anyContains([]string{d.Class}, moldClassWords) {
				moldBoxes = append(moldBoxes, d)
			}
		}
		if len(moldBoxes) > 0 {
			res.MoldDetected = true
			res.MoldPercentage = moldArea(moldBoxes, set.ImageSize)
			sum := 0.0
			for _, d := range moldBoxes {
				sum += d.Confidence
			}
			res.Confidence = sum / float64(len(moldBoxes))
			return res
		}
	}

	if res.MoldDetected {
		res.MoldPercentage = moldHeuristic[freshness]
	}
	return res
}

// Analyze resolves a detection set into an image analysis result
func (r *Resolver) Analyze(set DetectionSet) ImageAnalysisResult {
	res := r.Resolve(set)
	return ImageAnalysisResult{
		FoodType: FoodType{
			Name:           res.FoodName,
			Category:       res.Category,
			Confidence:     math.Round(res.Confidence * 100),
			ShelfLife:      res.Storage.ShelfLife,
			OptimalStorage: res.Storage.OptimalStorage,
		},
		Freshness:      res.Freshness,
		MoldDetected:   res.MoldDetected,
		MoldPercentage: res.MoldPercentage,
		ColorAnalysis:  res.ColorAnalysis,
		Confidence:     res.Confidence * 100,
		Detections:     set.Sorted(),
		Provider:       set.Provider,
		Degraded:       res.Degraded,
	}
}

// moldArea returns the share of the image covered by the boxes, as a percentage capped at 100.
// Boxes that all fit in the unit square are treated as normalized when the provider gave no image size.
func moldArea(boxes []Detection, size *ImageSize) float64 {
	total := 0.0
	normalized := true
	for _, d := range boxes {
		b := d.BoundingBox
		total += b.Area()
		if b.X > 1 || b.Y > 1 || b.Width > 1 || b.Height > 1 {
			normalized = false
		}
	}

	var imageArea float64
	switch {
	case size != nil:
		imageArea = size.Width * size.Height
	case normalized:
		imageArea = 1
	default:
		imageArea = defaultImageWidth * defaultImageHeight
	}
	return min(total/imageArea*100, 100)
}

// CategorizeClass maps a detected class name to a food category by keyword
func CategorizeClass(class string) FoodCategory {
	lower := strings.ToLower(class)
	for _, row := range categoryTable {
		for _, kw := range row.keywords {
			if strings.Contains(lower, kw) {
				return row.category
			}
		}
	}
	return CategoryOther
}

// ResolveFreshness applies the spoilage and ripening keyword tables to all class names
func ResolveFreshness(classes ...string) Freshness {
	if anyContains(classes, spoilageKeywords) {
		return FreshnessRotten
	}
	if anyContains(classes, ripeningKeywords) {
		return FreshnessRipening
	}
	return FreshnessFresh
}

// FormatFoodName turns "fresh_apple" into "Fresh Apple"
func FormatFoodName(class string) string {
	name := strings.Join(strings.FieldsFunc(class, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	}), " ")
	if name == "" {
		return FallbackFoodName
	}
	return cases.Title(language.English).String(strings.ToLower(name))
}

func anyContains(classes []string, keywords []string) bool {
	for _, c := range classes {
		lower := strings.ToLower(c)
		for _, kw := range keywords {
			if containsKeyword(lower, kw) {
				return true
			}
		}
	}
	return false
}

// containsKeyword matches keywords as substrings, except very short ones
// which must stand alone so that "golden" does not read as "old".
func containsKeyword(s, kw string) bool {
	if len(kw) > 3 {
		return strings.Contains(s, kw)
	}
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if tok == kw {
			return true
		}
	}
	return false
}
