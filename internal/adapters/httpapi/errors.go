package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/core"
)

type errorResponse struct {
	Error     string   `json:"error"`
	NextSteps []string `json:"nextSteps,omitempty"`
}

func errorStatus(err error) int {
	var upstream *core.UpstreamError
	switch {
	case errors.Is(err, core.ErrNoImage), errors.Is(err, core.ErrInvalidSignal):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrMissingStage):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// renderError writes the user-facing diagnostic of err
func (s *Server) renderError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		s.logger.Debug("Request rejected", zap.String("path", c.Path()), zap.Error(err))
	}

	diag := core.Diagnose(err)
	return c.Status(status).JSON(errorResponse{Error: diag.Message, NextSteps: diag.NextSteps})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(errorResponse{Error: msg})
}
