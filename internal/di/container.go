package di

import (
	"context"

	"go.uber.org/dig"

	"github.com/mikey/food-safety-agent/internal/adapters/session"
	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/factory"
	"github.com/mikey/food-safety-agent/internal/logging"
	"github.com/mikey/food-safety-agent/internal/ports"
	"github.com/mikey/food-safety-agent/internal/tracing"
	"github.com/mikey/food-safety-agent/internal/utils"
)

// BuildContainer creates and configures the dependency injection container of the server
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register tracer provider
	if err := container.Provide(tracing.Init); err != nil {
		return nil, err
	}

	if err := providePipeline(container); err != nil {
		return nil, err
	}

	// Register cache repository
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register alert notifier
	if err := container.Provide(factory.CreateAlertNotifier); err != nil {
		return nil, err
	}

	// Register session store and HTTP frontend
	if err := container.Provide(factory.NewFrontendFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FrontendFactory) *session.Store {
		return f.CreateSessionStore()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.FrontendFactory, service *core.AssessmentService, sessions *session.Store) ports.Frontend {
		return f.CreateFrontend(service, sessions)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// providePipeline registers everything the assessment service needs except the
// cache and notifier, which differ between the server and the CLI
func providePipeline(container *dig.Container) error {
	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return err
	}

	// Register factories
	if err := container.Provide(factory.NewDetectionFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewQualityFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewCacheFactory); err != nil {
		return err
	}

	// Register detection providers
	if err := container.Provide(func(f *factory.DetectionFactory) ([]core.DetectionProvider, error) {
		return f.CreateProviders()
	}); err != nil {
		return err
	}

	// Register quality analyzer
	if err := container.Provide(func(f *factory.QualityFactory) (core.QualityAnalyzer, error) {
		return f.CreateQualityAnalyzer(context.Background())
	}); err != nil {
		return err
	}

	// Register explainers
	if err := container.Provide(factory.CreateExplainers); err != nil {
		return err
	}

	// Register service options
	if err := container.Provide(factory.ServiceOptions); err != nil {
		return err
	}

	// Register assessment service
	return container.Provide(core.NewAssessmentService)
}
