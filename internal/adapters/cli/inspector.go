package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/core"
)

// Inspector runs the pipeline for one image and prints a terminal report
type Inspector struct {
	service *core.AssessmentService
	logger  *zap.Logger
	out     io.Writer
	verbose bool
}

// NewInspector creates a new CLI inspector
func NewInspector(service *core.AssessmentService, logger *zap.Logger, out io.Writer, verbose bool) *Inspector {
	return &Inspector{
		service: service,
		logger:  logger,
		out:     out,
		verbose: verbose,
	}
}

// Inspect runs all four steps and prints each stage as it completes
func (i *Inspector) Inspect(ctx context.Context, image string, signal core.SignalProcessingData) (core.SessionSnapshot, error) {
	if err := core.ValidateSignal(signal); err != nil {
		i.printError(err)
		return core.SessionSnapshot{}, err
	}

	sess := core.NewSession(i.logger)
	p := &stagePrinter{inspector: i}
	unsubscribe := sess.Subscribe(p.onUpdate)
	defer unsubscribe()

	fmt.Fprintf(i.out, "\n=== Food Safety Inspection ===\n")
	fmt.Fprintf(i.out, "Session: %s\n", sess.ID)
	fmt.Fprintf(i.out, "Providers: %s\n", strings.Join(i.service.ProviderNames(), ", "))
	fmt.Fprintf(i.out, "Image size: %d KB\n", len(image)/1024)

	startTime := time.Now()
	snap, err := i.service.Run(ctx, sess, image, signal)
	if err != nil {
		i.logger.Error("Inspection failed", zap.Error(err))
		i.printError(err)
		return snap, err
	}

	if i.verbose {
		i.printLogs(snap.Logs)
	}
	fmt.Fprintf(i.out, "\nProcessing time: %v\n", time.Since(startTime).Round(time.Millisecond))
	return snap, nil
}

// Start is a no-op for the CLI inspector
func (i *Inspector) Start() error {
	return nil
}

// Stop is a no-op for the CLI inspector
func (i *Inspector) Stop() error {
	return nil
}

func (i *Inspector) printError(err error) {
	diag := core.Diagnose(err)
	fmt.Fprintf(i.out, "\nError: %s\n", diag.Message)
	for _, step := range diag.NextSteps {
		fmt.Fprintf(i.out, "  -> %s\n", step)
	}
}

func (i *Inspector) printLogs(logs []core.StepLog) {
	fmt.Fprintf(i.out, "\n=== Log ===\n")
	for _, l := range logs {
		fmt.Fprintf(i.out, "[%s] %-10s %-22s %s\n", l.Timestamp.Format("15:04:05.000"), strings.ToUpper(string(l.Type)), l.Stage, l.Message)
	}
}

// stagePrinter prints each slot the first time it is filled
type stagePrinter struct {
	inspector      *Inspector
	image          bool
	signal         bool
	classification bool
	feedback       bool
}

func (p *stagePrinter) onUpdate(snap core.SessionSnapshot) {
	w := p.inspector.out
	if snap.ImageAnalysis != nil && !p.image {
		p.image = true
		printImage(w, snap.ImageAnalysis)
	}
	if snap.SignalData != nil && !p.signal {
		p.signal = true
		printSignal(w, snap.SignalData)
	}
	if snap.Classification != nil && !p.classification {
		p.classification = true
		printClassification(w, snap.Classification)
	}
	if snap.Feedback != nil && !p.feedback {
		p.feedback = true
		printFeedback(w, snap.Feedback)
	}
}

func printImage(w io.Writer, r *core.ImageAnalysisResult) {
	fmt.Fprintf(w, "\n=== Image Analysis ===\n")
	fmt.Fprintf(w, "Food: %s (%s)\n", r.FoodType.Name, r.FoodType.Category)
	fmt.Fprintf(w, "Confidence: %.1f%%\n", r.FoodType.Confidence)
	fmt.Fprintf(w, "Freshness: %s\n", r.Freshness)
	if r.MoldDetected {
		fmt.Fprintf(w, "Mold: detected (%.1f%%)\n", r.MoldPercentage)
	} else {
		fmt.Fprintf(w, "Mold: none\n")
	}
	fmt.Fprintf(w, "Colour: healthy %.0f%% / warning %.0f%% / danger %.0f%%\n",
		r.ColorAnalysis.Healthy, r.ColorAnalysis.Warning, r.ColorAnalysis.Danger)
	fmt.Fprintf(w, "Shelf life: %s\n", r.FoodType.ShelfLife)
	fmt.Fprintf(w, "Storage: %s\n", r.FoodType.OptimalStorage)
	if r.Provider != "" {
		fmt.Fprintf(w, "Provider: %s\n", r.Provider)
	}
	if r.Quality != nil {
		fmt.Fprintf(w, "Quality: %s (freshness score %.0f)\n", r.Quality.OverallQuality, r.Quality.FreshnessScore)
	}
	if r.Degraded {
		fmt.Fprintf(w, "Warning: result degraded\n")
		for _, note := range r.Notes {
			fmt.Fprintf(w, "  - %s\n", note)
		}
	}
}

func printSignal(w io.Writer, s *core.SignalProcessingData) {
	fmt.Fprintf(w, "\n=== Sensor Readings ===\n")
	fmt.Fprintf(w, "pH: %.1f\n", s.PH)
	fmt.Fprintf(w, "Gas: %d ppm\n", s.GasLevel)
	fmt.Fprintf(w, "Storage time: %d h\n", s.StorageTime)
	if s.Temperature != nil {
		fmt.Fprintf(w, "Temperature: %.1f °C\n", *s.Temperature)
	}
}

func printClassification(w io.Writer, c *core.QualityClassification) {
	fmt.Fprintf(w, "\n=== Quality Classification ===\n")
	fmt.Fprintf(w, "Grade: %s\n", c.Grade)
	fmt.Fprintf(w, "Score: %.1f/100\n", c.Score)
	fmt.Fprintf(w, "Factors: visual %.0f, chemical %.0f, storage %.0f\n", c.Factors.Visual, c.Factors.Chemical, c.Factors.Storage)
	if c.Narrative != "" {
		fmt.Fprintf(w, "\n%s\n", c.Narrative)
	}
}

func printFeedback(w io.Writer, f *core.FinalFeedback) {
	fmt.Fprintf(w, "\n=== Safety Verdict ===\n")
	if f.IsSafe {
		fmt.Fprintf(w, "Safe to eat: yes\n")
	} else {
		fmt.Fprintf(w, "Safe to eat: NO\n")
	}
	fmt.Fprintf(w, "Risk level: %s\n", strings.ToUpper(string(f.RiskLevel)))
	fmt.Fprintf(w, "Recommendation: %s\n", f.Recommendation)
	for _, line := range f.Explanation {
		fmt.Fprintf(w, "  - %s\n", line)
	}
	if f.Narrative != "" {
		fmt.Fprintf(w, "\n%s\n", f.Narrative)
	}
}
