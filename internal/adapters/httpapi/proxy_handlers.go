package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/adapters/huggingface"
	"github.com/mikey/food-safety-agent/internal/adapters/roboflow"
	"github.com/mikey/food-safety-agent/internal/core"
)

type geminiQualityRequest struct {
	Image    string `json:"image"`
	FoodName string `json:"foodName"`
	APIKey   string `json:"apiKey"`
}

// proxyRoboflow forwards an image to a Roboflow workflow and returns the raw response
func (s *Server) proxyRoboflow(c *fiber.Ctx) error {
	var req roboflow.ProxyRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	var missing []string
	if req.Image == "" {
		missing = append(missing, "image")
	}
	if req.APIKey == "" {
		missing = append(missing, "apiKey")
	}
	if req.WorkflowURL == "" {
		missing = append(missing, "workflowUrl")
	}
	if len(missing) > 0 {
		return badRequest(c, "Missing required fields: "+strings.Join(missing, ", "))
	}

	if s.proxies.Roboflow == nil {
		return s.renderError(c, &core.NotConfiguredError{Provider: "roboflow proxy", Missing: []string{"FOOD_SAFETY_DETECTION_PROVIDERS"}})
	}
	if !s.allow.IsAllowed(req.WorkflowURL) {
		return c.Status(http.StatusForbidden).JSON(errorResponse{Error: "Workflow host is not allowed"})
	}

	raw, err := s.proxies.Roboflow.Forward(c.UserContext(), req.APIKey, req.WorkflowURL, req.Image)
	if err != nil {
		var ue *core.UpstreamError
		if !errors.As(err, &ue) {
			return c.Status(http.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
		}
		s.logger.Warn("Roboflow proxy request failed", zap.Int("status", ue.StatusCode), zap.String("body", ue.Body))
		status := ue.StatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		return c.Status(status).JSON(errorResponse{Error: roboflow.ErrorMessage(ue)})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

// proxyHuggingFace forwards an image to a Hugging Face inference model
func (s *Server) proxyHuggingFace(c *fiber.Ctx) error {
	var req huggingface.ProxyRequest
	if err := c.BodyParser(&req); err != nil || req.Model == "" || req.ImageBase64 == "" {
		return badRequest(c, "Missing model or imageBase64")
	}

	if s.proxies.HuggingFace == nil {
		return s.renderError(c, &core.NotConfiguredError{Provider: "huggingface proxy", Missing: []string{"FOOD_SAFETY_DETECTION_PROVIDERS"}})
	}
	if !s.allow.IsAllowed(s.proxies.HuggingFace.ModelURL(req.Model)) {
		return c.Status(http.StatusForbidden).JSON(errorResponse{Error: "Model host is not allowed"})
	}

	raw, err := s.proxies.HuggingFace.Infer(c.UserContext(), req.Model, req.ImageBase64)
	if err != nil {
		var ue *core.UpstreamError
		if !errors.As(err, &ue) || ue.StatusCode == 0 {
			return c.Status(http.StatusInternalServerError).JSON(errorResponse{Error: "Proxy error: " + err.Error()})
		}
		return c.Status(ue.StatusCode).JSON(fiber.Map{
			"error":   fmt.Sprintf("Hugging Face API error: %d", ue.StatusCode),
			"details": ue.Body,
			"status":  ue.StatusCode,
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(raw)
}

// geminiQuality runs the Gemini quality analysis with the caller's key, or the configured one
func (s *Server) geminiQuality(c *fiber.Ctx) error {
	var req geminiQualityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if s.proxies.Gemini == nil {
		return s.renderError(c, &core.NotConfiguredError{Provider: "gemini", Missing: []string{"FOOD_SAFETY_GEMINI_API_KEY"}})
	}

	analyzer := s.proxies.Gemini
	if req.APIKey != "" {
		analyzer = analyzer.WithAPIKey(req.APIKey)
	}
	if req.Image == "" || !analyzer.HasAPIKey() {
		return badRequest(c, "Missing required fields")
	}

	q, err := analyzer.AnalyzeQuality(c.UserContext(), req.Image, req.FoodName)
	if err != nil {
		if errors.Is(err, core.ErrNoImage) {
			return badRequest(c, "Missing required fields")
		}
		s.logger.Warn("Gemini quality analysis failed", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(errorResponse{Error: err.Error()})
	}
	return c.JSON(q)
}
