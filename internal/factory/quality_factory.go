package factory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/adapters/bedrock"
	"github.com/mikey/food-safety-agent/internal/adapters/gemini"
	"github.com/mikey/food-safety-agent/internal/adapters/openai"
	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

// QualityFactory creates quality-vision analyzers
type QualityFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewQualityFactory creates a new quality factory
func NewQualityFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *QualityFactory {
	return &QualityFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateGeminiAnalyzer creates the Gemini analyzer, also used by the /api/gemini-quality route
func (f *QualityFactory) CreateGeminiAnalyzer() *gemini.QualityAnalyzer {
	return gemini.NewQualityAnalyzer(f.cfg.GetGemini(), f.textProcessor, f.logger)
}

// CreateQualityAnalyzer creates the analyzer selected by quality.provider.
// It returns nil when quality analysis is turned off.
func (f *QualityFactory) CreateQualityAnalyzer(ctx context.Context) (core.QualityAnalyzer, error) {
	provider := f.cfg.GetQuality().Provider

	switch provider {
	case "", "none":
		f.logger.Info("Quality analysis disabled")
		return nil, nil
	case "gemini":
		return f.CreateGeminiAnalyzer(), nil
	case "openai":
		return openai.NewVisionClient(f.cfg.GetOpenAI(), f.textProcessor, f.logger), nil
	case "bedrock":
		analyzer, err := bedrock.NewFactory(f.cfg.GetBedrock(), f.logger, f.textProcessor).CreateQualityAnalyzer(ctx)
		if err != nil {
			return nil, err
		}
		return analyzer, nil
	default:
		return nil, fmt.Errorf("unsupported quality provider: %s", provider)
	}
}
