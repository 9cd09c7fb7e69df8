package httpapi

import (
	"errors"
	"net"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/adapters/gemini"
	"github.com/mikey/food-safety-agent/internal/adapters/huggingface"
	"github.com/mikey/food-safety-agent/internal/adapters/roboflow"
	"github.com/mikey/food-safety-agent/internal/adapters/session"
	"github.com/mikey/food-safety-agent/internal/config"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/whitelist"
)

// Proxies are the upstream clients behind the /api proxy routes. Any of them may be nil.
type Proxies struct {
	Roboflow    *roboflow.Client
	HuggingFace *huggingface.Client
	Gemini      *gemini.QualityAnalyzer
}

// Server is the HTTP frontend: upstream proxy routes plus the session pipeline
type Server struct {
	app           *fiber.App
	listenAddress string
	service       *core.AssessmentService
	sessions      *session.Store
	proxies       Proxies
	allow         *whitelist.Checker
	logger        *zap.Logger
}

// NewServer creates a new HTTP frontend
func NewServer(
	cfg config.ServerConfig,
	service *core.AssessmentService,
	sessions *session.Store,
	proxies Proxies,
	allow *whitelist.Checker,
	logger *zap.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimit,
		DisableStartupMessage: true,
		ReadTimeout:           2 * time.Minute,
		WriteTimeout:          2 * time.Minute,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(otelfiber.Middleware())

	s := &Server{
		app:           app,
		listenAddress: cfg.ListenAddress,
		service:       service,
		sessions:      sessions,
		proxies:       proxies,
		allow:         allow,
		logger:        logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.health)

	api := s.app.Group("/api")
	api.Post("/roboflow", s.proxyRoboflow)
	api.Post("/huggingface", s.proxyHuggingFace)
	api.Post("/gemini-quality", s.geminiQuality)
	api.Post("/batch", s.analyzeBatch)

	sessions := api.Group("/sessions")
	sessions.Post("/", s.createSession)
	sessions.Get("/:id", s.getSession)
	sessions.Get("/:id/summary", s.sessionSummary)
	sessions.Delete("/:id", s.deleteSession)
	sessions.Post("/:id/image", s.analyzeImage)
	sessions.Post("/:id/signal", s.processSignal)
	sessions.Post("/:id/classification", s.classify)
	sessions.Post("/:id/feedback", s.feedback)
}

// App exposes the fiber app for in-process testing
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts listening in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listenAddress)
	if err != nil {
		return err
	}

	s.logger.Info("HTTP server starting",
		zap.String("address", ln.Addr().String()),
		zap.Strings("allowed_upstream_hosts", s.allow.Hosts()))

	go func() {
		if err := s.app.Listener(ln); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop stops the HTTP server, waiting for in-flight requests
func (s *Server) Stop() error {
	return s.app.ShutdownWithTimeout(10 * time.Second)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"providers": s.service.ProviderNames(),
		"sessions":  s.sessions.Count(),
	})
}
