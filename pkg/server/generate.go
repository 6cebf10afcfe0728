package server

import (
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"storyloom/pkg/entities"
	"storyloom/pkg/generation"
	"storyloom/pkg/ratelimit"
)

type imageRequest struct {
	Prompt     string `json:"prompt"`
	PageID     int    `json:"pageId"`
	Regenerate bool   `json:"regenerate,omitempty"`
}

func setQuota(c echo.Context, q generation.Quota) {
	h := c.Response().Header()
	h.Set(headerLimit, strconv.Itoa(q.Limit))
	h.Set(headerRemaining, strconv.Itoa(q.Remaining))
	h.Set(headerReset, strconv.FormatInt(q.ResetAt.UnixMilli(), 10))
}

func (s *Server) handleGenerateContent(c echo.Context) error {
	var req entities.GenerationRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid JSON in /api/generate-content", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	client := ratelimit.ClientIdentifier(c.Request())
	content, err := s.Service.GenerateContent(c.Request().Context(), client, req)
	if err != nil {
		return respondError(c, err)
	}

	setQuota(c, content.Quota)
	return c.JSON(http.StatusOK, map[string]any{
		"success":           true,
		"content":           content.Value(),
		"type":              content.Type,
		"remainingRequests": content.Quota.Remaining,
		"resetTime":         content.Quota.ResetAt.UnixMilli(),
	})
}

func (s *Server) handleGenerateImage(c echo.Context) error {
	var req imageRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid JSON in /api/generate-image", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}

	caller := s.Service.As(ratelimit.ClientIdentifier(c.Request()))
	ctx := c.Request().Context()
	var (
		img generation.Image
		err error
	)
	if req.Regenerate {
		img, err = caller.RegenerateImage(ctx, req.Prompt, req.PageID)
	} else {
		img, err = caller.GenerateImage(ctx, req.Prompt, req.PageID)
	}
	if err != nil {
		return respondError(c, err)
	}

	setQuota(c, img.Quota)
	body := map[string]any{
		"success":           true,
		"imageUrl":          img.URL,
		"pageId":            img.PageID,
		"remainingRequests": img.Quota.Remaining,
		"resetTime":         img.Quota.ResetAt.UnixMilli(),
		"placeholder":       img.Placeholder,
	}
	if img.Note != "" {
		body["note"] = img.Note
	}
	return c.JSON(http.StatusOK, body)
}
