package core

import (
	"encoding/json"
	"sort"
)

// ResponseShape tags which provider response layout a detection set was found in
type ResponseShape string

const (
	ShapePredictions     ResponseShape = "predictions"
	ShapeWorkflowOutputs ResponseShape = "workflow_outputs"
	ShapeLabelScoreList  ResponseShape = "label_score_list"
	ShapeNestedList      ResponseShape = "nested_list"
	ShapeSingleLabel     ResponseShape = "single_label"
	ShapeLabelMap        ResponseShape = "label_map"
	ShapeDeepSearch      ResponseShape = "deep_search"
	ShapeUnknown         ResponseShape = "unknown"
)

const (
	maxSearchDepth = 5
	maxLabelMap    = 10
)

// ParseDetections decodes a raw provider response and locates its detections.
// Malformed input yields an empty ShapeUnknown set.
func ParseDetections(raw []byte) DetectionSet {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return emptySet()
	}
	return NormalizeResponse(doc)
}

// NormalizeResponse searches a decoded JSON value for detections.
// The first layout that yields at least one detection wins.
func NormalizeResponse(doc any) DetectionSet {
	set := emptySet()
	set.ImageSize = findImageSize(doc)

	strategies := []struct {
		shape ResponseShape
		find  func(any) []Detection
	}{
		{ShapePredictions, findTopLevelPredictions},
		{ShapeWorkflowOutputs, findWorkflowOutputs},
		{ShapeLabelScoreList, findLabelScoreList},
		{ShapeNestedList, findNestedList},
		{ShapeSingleLabel, findSingleLabel},
		{ShapeLabelMap, findLabelMap},
		{ShapeDeepSearch, func(v any) []Detection { return deepSearch(v, 0) }},
	}

	for _, s := range strategies {
		if found := s.find(doc); len(found) > 0 {
			set.Shape = s.shape
			set.Detections = found
			return set
		}
	}
	return set
}

func emptySet() DetectionSet {
	return DetectionSet{Shape: ShapeUnknown, Detections: []Detection{}}
}

func findTopLevelPredictions(doc any) []Detection {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	return predictionsOf(obj["predictions"])
}

// predictionsOf accepts either a list of detections or an object wrapping one under "predictions"
func predictionsOf(v any) []Detection {
	switch t := v.(type) {
	case []any:
		return detectionsFromList(t)
	case map[string]any:
		if inner, ok := t["predictions"].([]any); ok {
			return detectionsFromList(inner)
		}
	}
	return nil
}

func findWorkflowOutputs(doc any) []Detection {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	outputs, ok := obj["outputs"].([]any)
	if !ok {
		return nil
	}

	for _, o := range outputs {
		output, ok := o.(map[string]any)
		if !ok {
			continue
		}
		if found := predictionsOf(output["predictions"]); len(found) > 0 {
			return found
		}
		for _, key := range sortedKeys(output) {
			switch value := output[key].(type) {
			case map[string]any:
				if found := predictionsOf(value["predictions"]); len(found) > 0 {
					return found
				}
			case []any:
				if found := detectionsFromList(value); len(found) > 0 {
					return found
				}
			}
		}
	}
	return nil
}

func findLabelScoreList(doc any) []Detection {
	list, ok := doc.([]any)
	if !ok {
		return nil
	}
	return detectionsFromList(list)
}

func findNestedList(doc any) []Detection {
	list, ok := doc.([]any)
	if !ok || len(list) == 0 {
		return nil
	}
	inner, ok := list[0].([]any)
	if !ok {
		return nil
	}
	return detectionsFromList(inner)
}

func findSingleLabel(doc any) []Detection {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	if !hasScore(obj) {
		return nil
	}
	if d, ok := detectionFrom(obj); ok {
		return []Detection{d}
	}
	return nil
}

func hasScore(obj map[string]any) bool {
	for _, key := range []string{"confidence", "score"} {
		if _, ok := obj[key].(float64); ok {
			return true
		}
	}
	return false
}

// findLabelMap handles {"label": score, ...}. Only flat maps of scores in [0,1] qualify.
func findLabelMap(doc any) []Detection {
	obj, ok := doc.(map[string]any)
	if !ok || len(obj) == 0 {
		return nil
	}
	out := make([]Detection, 0, len(obj))
	for label, v := range obj {
		score, ok := v.(float64)
		if !ok || score < 0 || score > 1 {
			return nil
		}
		out = append(out, Detection{Class: label, Confidence: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence == out[j].Confidence {
			return out[i].Class < out[j].Class
		}
		return out[i].Confidence > out[j].Confidence
	})
	if len(out) > maxLabelMap {
		out = out[:maxLabelMap]
	}
	return out
}

// deepSearch only accepts lists of scored detections, so metadata tagged
// with a bare name or label is never taken for a food
func deepSearch(v any, depth int) []Detection {
	if depth > maxSearchDepth {
		return nil
	}
	switch t := v.(type) {
	case []any:
		if found := scoredDetectionsFromList(t); len(found) > 0 {
			return found
		}
		for _, item := range t {
			if found := deepSearch(item, depth+1); len(found) > 0 {
				return found
			}
		}
	case map[string]any:
		for _, key := range sortedKeys(t) {
			if found := deepSearch(t[key], depth+1); len(found) > 0 {
				return found
			}
		}
	}
	return nil
}

func scoredDetectionsFromList(list []any) []Detection {
	if len(list) == 0 || !isScoredDetection(list[0]) {
		return nil
	}
	out := make([]Detection, 0, len(list))
	for _, item := range list {
		if !isScoredDetection(item) {
			continue
		}
		switch t := item.(type) {
		case map[string]any:
			if d, ok := detectionFrom(t); ok {
				out = append(out, d)
			}
		case []any:
			if d, ok := detectionFromPair(t); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

// isScoredDetection requires a class or label together with a numeric confidence or score
func isScoredDetection(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		if !hasScore(t) {
			return false
		}
		for _, key := range []string{"class", "label"} {
			if s, ok := t[key].(string); ok && s != "" {
				return true
			}
		}
		return false
	case []any:
		_, ok := detectionFromPair(t)
		return ok
	}
	return false
}

// detectionsFromList converts a list whose first element looks like a detection
func detectionsFromList(list []any) []Detection {
	if len(list) == 0 || !looksLikeDetection(list[0]) {
		return nil
	}
	out := make([]Detection, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case map[string]any:
			if d, ok := detectionFrom(t); ok {
				out = append(out, d)
			}
		case []any:
			if d, ok := detectionFromPair(t); ok {
				out = append(out, d)
			}
		}
	}
	return out
}

func looksLikeDetection(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		_, ok := classOf(t)
		return ok
	case []any:
		_, ok := detectionFromPair(t)
		return ok
	}
	return false
}

func classOf(obj map[string]any) (string, bool) {
	for _, key := range []string{"class", "label", "name"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func detectionFrom(obj map[string]any) (Detection, bool) {
	class, ok := classOf(obj)
	if !ok {
		return Detection{}, false
	}
	d := Detection{Class: class}
	for _, key := range []string{"confidence", "score"} {
		if f, ok := obj[key].(float64); ok {
			d.Confidence = clampUnit(f)
			break
		}
	}
	d.BoundingBox = boxOf(obj)
	return d, true
}

// detectionFromPair handles ["label", score] tuples
func detectionFromPair(pair []any) (Detection, bool) {
	if len(pair) != 2 {
		return Detection{}, false
	}
	label, ok := pair[0].(string)
	if !ok || label == "" {
		return Detection{}, false
	}
	score, ok := pair[1].(float64)
	if !ok {
		return Detection{}, false
	}
	return Detection{Class: label, Confidence: clampUnit(score)}, true
}

func boxOf(obj map[string]any) *BoundingBox {
	vals := make([]float64, 0, 4)
	for _, key := range []string{"x", "y", "width", "height"} {
		f, ok := obj[key].(float64)
		if !ok {
			return nil
		}
		vals = append(vals, f)
	}
	return &BoundingBox{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}
}

// findImageSize reads image.width/height from the top level or from a workflow
// output's predictions block
func findImageSize(doc any) *ImageSize {
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	if size := imageSizeOf(obj); size != nil {
		return size
	}
	outputs, _ := obj["outputs"].([]any)
	for _, o := range outputs {
		output, ok := o.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range sortedKeys(output) {
			if inner, ok := output[key].(map[string]any); ok {
				if size := imageSizeOf(inner); size != nil {
					return size
				}
			}
		}
	}
	return nil
}

func imageSizeOf(obj map[string]any) *ImageSize {
	img, ok := obj["image"].(map[string]any)
	if !ok {
		return nil
	}
	w, ok1 := img["width"].(float64)
	h, ok2 := img["height"].(float64)
	if !ok1 || !ok2 || w <= 0 || h <= 0 {
		return nil
	}
	return &ImageSize{Width: w, Height: h}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clampUnit(f float64) float64 {
	return min(max(f, 0), 1)
}
