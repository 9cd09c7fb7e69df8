package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/utils"
)

const (
	StageImage          = "image_analysis"
	StageSignal         = "signal_processing"
	StageClassification = "quality_classification"
	StageFeedback       = "final_feedback"
)

// ServiceOptions holds the tunables of the assessment service
type ServiceOptions struct {
	CacheEnabled  bool
	CacheTTL      time.Duration
	BatchDelay    time.Duration
	AlertsEnabled bool
	AlertMinRisk  RiskLevel
}

// Explainers holds the narrative endpoints of the classification and feedback steps.
// Either may be nil.
type Explainers struct {
	Classification Explainer
	Feedback       Explainer
}

// AssessmentService runs the four-step food safety pipeline against a session
type AssessmentService struct {
	providers  []DetectionProvider
	quality    QualityAnalyzer
	explainers Explainers
	cache      CacheRepository
	notifier   AlertNotifier
	resolver   *Resolver
	logger     *zap.Logger
	opts       ServiceOptions
}

// NewAssessmentService creates a new assessment service.
// quality, cache and notifier may be nil.
func NewAssessmentService(
	providers []DetectionProvider,
	quality QualityAnalyzer,
	explainers Explainers,
	cache CacheRepository,
	notifier AlertNotifier,
	logger *zap.Logger,
	opts ServiceOptions,
) *AssessmentService {
	if opts.AlertMinRisk == "" {
		opts.AlertMinRisk = RiskHigh
	}
	return &AssessmentService{
		providers:  providers,
		quality:    quality,
		explainers: explainers,
		cache:      cache,
		notifier:   notifier,
		resolver:   NewResolver(),
		logger:     logger,
		opts:       opts,
	}
}

// ProviderNames lists the detection providers in the order they are tried
func (s *AssessmentService) ProviderNames() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// AnalyzeImage starts a new assessment: it resets the session, detects, resolves and
// optionally merges a quality-vision verdict. Provider failures degrade the result
// instead of failing the step.
func (s *AssessmentService) AnalyzeImage(ctx context.Context, sess *Session, image string) (*ImageAnalysisResult, error) {
	if strings.TrimSpace(utils.StripDataURI(image)) == "" {
		return nil, ErrNoImage
	}

	sess.Reset()
	sess.Log(StageImage, LogInfo, "Image received, starting analysis")

	hash := utils.ImageHash(image)
	if cached := s.cached(ctx, hash); cached != nil {
		sess.Log(StageImage, LogSuccess, "Result from cache")
		sess.SetImageAnalysis(*cached)
		return cached, nil
	}

	set, detectErr := s.detect(ctx, sess, image)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := s.resolver.Analyze(set)
	if detectErr != nil {
		diag := Diagnose(detectErr)
		result.Degraded = true
		result.Notes = append(result.Notes, diag.Message)
		result.Notes = append(result.Notes, diag.NextSteps...)
		sess.Log(StageImage, LogWarning, "Continuing with degraded confidence: "+diag.Message)
	} else {
		sess.Log(StageImage, LogSuccess, fmt.Sprintf("Detected %s (%s, %s)", result.FoodType.Name, result.FoodType.Category, result.Freshness))
	}

	if s.quality != nil {
		sess.Log(StageImage, LogProcessing, "Starting quality analysis with "+s.quality.Name())
		q, err := s.quality.AnalyzeQuality(ctx, image, result.FoodType.Name)
		switch {
		case errors.Is(err, ErrNotConfigured):
			sess.Log(StageImage, LogInfo, "Quality analysis not configured, skipping")
		case err != nil:
			sess.Log(StageImage, LogWarning, "Quality analysis failed: "+Diagnose(err).Message)
			s.logger.Warn("Quality analysis failed", zap.String("analyzer", s.quality.Name()), zap.Error(err))
		default:
			result = MergeQuality(result, q)
			sess.Log(StageImage, LogSuccess, fmt.Sprintf("Quality: %s, freshness score %.0f%%", strings.ToUpper(q.OverallQuality), q.FreshnessScore))
			if !q.SafeToEat {
				sess.Log(StageImage, LogWarning, "Quality model marked this food as unsafe to eat")
			}
		}
	}

	if result.MoldDetected {
		sess.Log(StageImage, LogWarning, fmt.Sprintf("Mold detected (%.1f%%)", result.MoldPercentage))
	}

	if !result.Degraded {
		s.store(ctx, hash, &result)
	}

	sess.SetImageAnalysis(result)
	return &result, nil
}

// detect tries each provider in order; the first non-empty set wins
func (s *AssessmentService) detect(ctx context.Context, sess *Session, image string) (DetectionSet, error) {
	if len(s.providers) == 0 {
		return DetectionSet{Shape: ShapeUnknown, Detections: []Detection{}}, &NotConfiguredError{
			Provider: "detection",
			Missing:  []string{"FOOD_SAFETY_DETECTION_PROVIDERS"},
		}
	}

	var errs []error
	for _, p := range s.providers {
		if ctx.Err() != nil {
			break
		}
		sess.Log(StageImage, LogProcessing, "Calling "+p.Name())
		set, err := p.Detect(ctx, image)
		if err != nil {
			s.logger.Warn("Detection provider failed", zap.String("provider", p.Name()), zap.Error(err))
			sess.Log(StageImage, LogWarning, fmt.Sprintf("%s failed: %s", p.Name(), Diagnose(err).Message))
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if set.Empty() {
			sess.Log(StageImage, LogWarning, p.Name()+" returned no detections")
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), ErrNoDetections))
			continue
		}
		if set.Provider == "" {
			set.Provider = p.Name()
		}
		s.logger.Debug("Detections found",
			zap.String("provider", set.Provider),
			zap.String("shape", string(set.Shape)),
			zap.Int("count", len(set.Detections)))
		return set, nil
	}

	return DetectionSet{Shape: ShapeUnknown, Detections: []Detection{}}, errors.Join(errs...)
}

func (s *AssessmentService) cached(ctx context.Context, hash string) *ImageAnalysisResult {
	if !s.opts.CacheEnabled || s.cache == nil {
		return nil
	}
	entry, err := s.cache.Get(ctx, hash)
	if err != nil || entry == nil || entry.Result == nil {
		return nil
	}
	s.logger.Debug("Cache hit for image", zap.String("image_hash", hash))
	result := *entry.Result
	return &result
}

func (s *AssessmentService) store(ctx context.Context, hash string, result *ImageAnalysisResult) {
	if !s.opts.CacheEnabled || s.cache == nil {
		return
	}
	now := time.Now()
	entry := &AnalysisCacheEntry{
		ImageHash: hash,
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.CacheTTL),
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Error("Failed to update cache", zap.Error(err))
	}
}

// ProcessSignal stores the sensor readings. Range checks belong to the caller.
func (s *AssessmentService) ProcessSignal(ctx context.Context, sess *Session, signal SignalProcessingData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess.Log(StageSignal, LogInfo, fmt.Sprintf("pH %s, gas %dppm, storage %dh", formatNumber(signal.PH), signal.GasLevel, signal.StorageTime))
	sess.SetSignalData(signal)
	return nil
}

// Classify scores the session's image analysis and sensor readings
func (s *AssessmentService) Classify(ctx context.Context, sess *Session) (*QualityClassification, error) {
	image := sess.ImageAnalysis()
	if image == nil {
		return nil, fmt.Errorf("%w: image analysis is required", ErrMissingStage)
	}
	signal := sess.SignalData()
	if signal == nil {
		return nil, fmt.Errorf("%w: signal data is required", ErrMissingStage)
	}

	sess.Log(StageClassification, LogProcessing, "Computing quality score")
	classification := Score(*image, *signal)
	classification.Narrative = s.narrate(ctx, sess, s.explainers.Classification, StageClassification,
		ClassificationQuestion(*image, *signal),
		map[string]any{"imageAnalysis": image, "signalData": signal})

	sess.Log(StageClassification, LogSuccess, fmt.Sprintf("Grade %s (%s/100)", classification.Grade, formatNumber(classification.Score)))
	sess.SetClassification(classification)
	return &classification, nil
}

// Feedback derives the safety verdict and raises an alert when the risk is high enough
func (s *AssessmentService) Feedback(ctx context.Context, sess *Session) (*FinalFeedback, error) {
	classification := sess.Classification()
	if classification == nil {
		return nil, fmt.Errorf("%w: quality classification is required", ErrMissingStage)
	}
	image := sess.ImageAnalysis()
	signal := sess.SignalData()
	if image == nil || signal == nil {
		return nil, fmt.Errorf("%w: image analysis and signal data are required", ErrMissingStage)
	}

	sess.Log(StageFeedback, LogProcessing, "Formulating safety recommendation")
	feedback := BuildFeedback(*classification, *image, *signal)
	feedback.Narrative = s.narrate(ctx, sess, s.explainers.Feedback, StageFeedback,
		FeedbackQuestion(*classification, *image, *signal),
		map[string]any{"imageAnalysis": image, "signalData": signal, "classification": classification})

	if feedback.IsSafe {
		sess.Log(StageFeedback, LogSuccess, "Safety assessment: SAFE")
	} else {
		sess.Log(StageFeedback, LogError, "Safety assessment: UNSAFE")
	}
	sess.Log(StageFeedback, LogInfo, "Risk level: "+strings.ToUpper(string(feedback.RiskLevel)))
	sess.SetFeedback(feedback)

	s.alert(ctx, sess, feedback)
	return &feedback, nil
}

func (s *AssessmentService) alert(ctx context.Context, sess *Session, feedback FinalFeedback) {
	if !s.opts.AlertsEnabled || s.notifier == nil || !feedback.RiskLevel.AtLeast(s.opts.AlertMinRisk) {
		return
	}
	if err := s.notifier.Notify(ctx, sess.Snapshot()); err != nil {
		s.logger.Error("Failed to send alert", zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	sess.Log(StageFeedback, LogInfo, "Alert sent")
}

// narrate asks the explainer for narrative text. Failures fall back to the local result.
func (s *AssessmentService) narrate(ctx context.Context, sess *Session, explainer Explainer, stage, question string, override map[string]any) string {
	if explainer == nil {
		return ""
	}
	sess.Log(stage, LogProcessing, "Connecting to explainer")
	received := 0
	text, err := explainer.Explain(ctx, question, override, func(chunk string) {
		received += len(chunk)
	})
	switch {
	case errors.Is(err, ErrNotConfigured):
		sess.Log(stage, LogInfo, "Explainer not configured, using local computation")
		return ""
	case err != nil:
		s.logger.Warn("Explainer failed", zap.String("stage", stage), zap.Error(err))
		sess.Log(stage, LogWarning, "Explainer unavailable, using fallback")
		return ""
	}
	s.logger.Debug("Explainer answered", zap.String("stage", stage), zap.Int("bytes", received))
	return strings.TrimSpace(text)
}

// Run executes all four steps in order
func (s *AssessmentService) Run(ctx context.Context, sess *Session, image string, signal SignalProcessingData) (SessionSnapshot, error) {
	if _, err := s.AnalyzeImage(ctx, sess, image); err != nil {
		return sess.Snapshot(), err
	}
	if err := s.ProcessSignal(ctx, sess, signal); err != nil {
		return sess.Snapshot(), err
	}
	if _, err := s.Classify(ctx, sess); err != nil {
		return sess.Snapshot(), err
	}
	if _, err := s.Feedback(ctx, sess); err != nil {
		return sess.Snapshot(), err
	}
	return sess.Snapshot(), nil
}

// BatchItem is the outcome for one image of a batch
type BatchItem struct {
	Index  int
	Result *ImageAnalysisResult
	Err    error
}

// AnalyzeBatch analyzes images one at a time, pausing between requests to stay under
// provider rate limits. Items not reached before ctx ends carry ctx's error.
func (s *AssessmentService) AnalyzeBatch(ctx context.Context, images []string) []BatchItem {
	items := make([]BatchItem, len(images))
	for i, image := range images {
		items[i].Index = i
		if i > 0 {
			if err := sleep(ctx, s.opts.BatchDelay); err != nil {
				for j := i; j < len(images); j++ {
					items[j] = BatchItem{Index: j, Err: err}
				}
				return items
			}
		}
		sess := NewSession(s.logger)
		items[i].Result, items[i].Err = s.AnalyzeImage(ctx, sess, image)
		s.logger.Info("Batch item analyzed",
			zap.Int("index", i),
			zap.Int("total", len(images)),
			zap.Bool("ok", items[i].Err == nil))
	}
	return items
}
