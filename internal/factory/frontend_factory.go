package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/adapters/httpapi"
	"github.com/mikey/food-safety-agent/internal/adapters/session"
	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/ports"
	"github.com/mikey/food-safety-agent/internal/whitelist"
)

// FrontendFactory creates the HTTP frontend and its session store
type FrontendFactory struct {
	cfg       *config.Config
	logger    *zap.Logger
	detection *DetectionFactory
	quality   *QualityFactory
}

// NewFrontendFactory creates a new frontend factory
func NewFrontendFactory(cfg *config.Config, logger *zap.Logger, detection *DetectionFactory, quality *QualityFactory) *FrontendFactory {
	return &FrontendFactory{
		cfg:       cfg,
		logger:    logger,
		detection: detection,
		quality:   quality,
	}
}

// CreateSessionStore creates the TTL session store
func (f *FrontendFactory) CreateSessionStore() *session.Store {
	sc := f.cfg.GetSession()
	return session.NewStore(sc.TTL, sc.Cleanup, f.logger)
}

// CreateFrontend creates the HTTP server with its proxy clients
func (f *FrontendFactory) CreateFrontend(service *core.AssessmentService, sessions *session.Store) ports.Frontend {
	sc := f.cfg.GetServer()
	return httpapi.NewServer(
		sc,
		service,
		sessions,
		httpapi.Proxies{
			Roboflow:    f.detection.CreateRoboflowClient(),
			HuggingFace: f.detection.CreateHuggingFaceClient(),
			Gemini:      f.quality.CreateGeminiAnalyzer(),
		},
		whitelist.NewChecker(sc.AllowedUpstreamHosts, f.logger),
		f.logger,
	)
}
