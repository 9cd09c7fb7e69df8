package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/adapters/flowise"
	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/utils"
)

// CreateExplainers creates the Flowise explainers of the classification and feedback steps
func CreateExplainers(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) core.Explainers {
	fc := cfg.GetFlowise()
	return core.Explainers{
		Classification: flowise.NewExplainer(fc.ClassifyURL, "FOOD_SAFETY_FLOWISE_CLASSIFY_URL", fc.Timeout, textProcessor, logger),
		Feedback:       flowise.NewExplainer(fc.FeedbackURL, "FOOD_SAFETY_FLOWISE_FEEDBACK_URL", fc.Timeout, textProcessor, logger),
	}
}
