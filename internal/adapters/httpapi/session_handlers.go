package httpapi

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/mikey/food-safety-agent/internal/core"
)

type imageRequest struct {
	Image string `json:"image"`
}

type batchRequest struct {
	Images []string `json:"images"`
}

type batchItemResponse struct {
	Index  int                       `json:"index"`
	Result *core.ImageAnalysisResult `json:"result,omitempty"`
	Error  *errorResponse            `json:"error,omitempty"`
}

func (s *Server) createSession(c *fiber.Ctx) error {
	sess := s.sessions.Create()
	return c.Status(http.StatusCreated).JSON(fiber.Map{"id": sess.ID})
}

// lookup resolves the :id parameter, writing a 404 when the session is unknown
func (s *Server) lookup(c *fiber.Ctx) (*core.Session, error) {
	sess, ok := s.sessions.Get(c.Params("id"))
	if !ok {
		return nil, c.Status(http.StatusNotFound).JSON(errorResponse{Error: "session not found"})
	}
	return sess, nil
}

func (s *Server) getSession(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if sess == nil {
		return err
	}
	return c.JSON(sess.Snapshot())
}

func (s *Server) sessionSummary(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if sess == nil {
		return err
	}
	return c.JSON(sess.Summary())
}

func (s *Server) deleteSession(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if sess == nil {
		return err
	}
	sess.Reset()
	s.sessions.Delete(sess.ID)
	return c.SendStatus(http.StatusNoContent)
}

func (s *Server) analyzeImage(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if sess == nil {
		return err
	}
	var req imageRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := s.service.AnalyzeImage(c.UserContext(), sess, req.Image)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) processSignal(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if sess == nil {
		return err
	}
	var signal core.SignalProcessingData
	if err := c.BodyParser(&signal); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := core.ValidateSignal(signal); err != nil {
		return s.renderError(c, err)
	}

	if err := s.service.ProcessSignal(c.UserContext(), sess, signal); err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(sess.SignalData())
}

func (s *Server) classify(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if sess == nil {
		return err
	}
	result, err := s.service.Classify(c.UserContext(), sess)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) feedback(c *fiber.Ctx) error {
	sess, err := s.lookup(c)
	if sess == nil {
		return err
	}
	result, err := s.service.Feedback(c.UserContext(), sess)
	if err != nil {
		return s.renderError(c, err)
	}
	return c.JSON(result)
}

func (s *Server) analyzeBatch(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil || len(req.Images) == 0 {
		return badRequest(c, "Missing images")
	}

	items := s.service.AnalyzeBatch(c.UserContext(), req.Images)
	out := make([]batchItemResponse, len(items))
	for i, item := range items {
		out[i] = batchItemResponse{Index: item.Index, Result: item.Result}
		if item.Err != nil {
			diag := core.Diagnose(item.Err)
			out[i].Error = &errorResponse{Error: diag.Message, NextSteps: diag.NextSteps}
		}
	}
	return c.JSON(fiber.Map{"items": out})
}
