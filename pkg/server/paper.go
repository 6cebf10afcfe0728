package server

import (
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"storyloom/pkg/apperr"
	"storyloom/pkg/paper"
)

func (s *Server) handleEnrich(c echo.Context) error {
	var req paper.EnrichRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid JSON in /api/enrich", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if strings.TrimSpace(req.Summary) == "" {
		return respondError(c, &apperr.ValidationError{Field: "summary"})
	}
	return c.JSON(http.StatusOK, map[string]any{"snippets": paper.Enrich(req)})
}

func (s *Server) handleGenerateStory(c echo.Context) error {
	var req paper.GenerateRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid JSON in /api/generate", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	switch {
	case !req.StoryType.Valid():
		return respondError(c, &apperr.ValidationError{Field: "storyType", Reason: "unsupported story type: " + string(req.StoryType)})
	case strings.TrimSpace(req.Paper.Title) == "":
		return respondError(c, &apperr.ValidationError{Field: "paper.title"})
	}
	return c.JSON(http.StatusOK, map[string]any{"story": paper.Generate(req)})
}

func (s *Server) handleExport(c echo.Context) error {
	var req paper.ExportRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid JSON in /api/export", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	result, err := s.Exporter.Export(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleGetExport(c echo.Context) error {
	id := c.Param("id")
	archive, err := s.Exporter.Archive(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="storyloom-`+id+`.zip"`)
	return c.Blob(http.StatusOK, "application/zip", archive)
}
