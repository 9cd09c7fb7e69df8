package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/adapters/huggingface"
	"github.com/mikey/food-safety-agent/internal/adapters/openai"
	"github.com/mikey/food-safety-agent/internal/adapters/roboflow"
	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

// DetectionFactory creates detection providers based on configuration
type DetectionFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewDetectionFactory creates a new detection factory
func NewDetectionFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *DetectionFactory {
	return &DetectionFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// RetryPolicy returns the configured retry policy for upstream calls
func (f *DetectionFactory) RetryPolicy() core.RetryPolicy {
	r := f.cfg.GetRetry()
	return core.RetryPolicy{MaxAttempts: r.MaxAttempts, Delay: r.Delay, Multiplier: r.Multiplier}
}

// CreateRoboflowClient creates the Roboflow workflow client
func (f *DetectionFactory) CreateRoboflowClient() *roboflow.Client {
	return roboflow.NewClient(f.cfg.GetRoboflow(), f.RetryPolicy(), f.textProcessor, f.logger)
}

// CreateHuggingFaceClient creates the Hugging Face inference client
func (f *DetectionFactory) CreateHuggingFaceClient() *huggingface.Client {
	return huggingface.NewClient(f.cfg.GetHuggingFace(), f.RetryPolicy(), f.textProcessor, f.logger)
}

// CreateProviders creates the providers named in detection.providers, in order.
// Providers missing credentials are kept so that their failure is reported per request.
func (f *DetectionFactory) CreateProviders() ([]core.DetectionProvider, error) {
	names := f.cfg.GetDetection().Providers
	providers := make([]core.DetectionProvider, 0, len(names))

	for _, name := range names {
		var missing []string
		switch name {
		case "roboflow":
			rf := f.cfg.GetRoboflow()
			missing = rf.MissingKeys()
			providers = append(providers, f.CreateRoboflowClient())
		case "huggingface":
			hf := f.cfg.GetHuggingFace()
			missing = hf.MissingKeys()
			providers = append(providers, f.CreateHuggingFaceClient())
		case "openai":
			oc := f.cfg.GetOpenAI()
			missing = oc.MissingKeys()
			providers = append(providers, openai.NewVisionClient(oc, f.textProcessor, f.logger))
		default:
			return nil, fmt.Errorf("unsupported detection provider: %s", name)
		}

		if len(missing) > 0 {
			f.logger.Warn("Detection provider is not configured",
				zap.String("provider", name),
				zap.Strings("missing", missing))
		}
	}

	f.logger.Info("Detection providers initialized", zap.Strings("providers", names))
	return providers, nil
}
