package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"storyloom/pkg/apperr"
	"storyloom/pkg/orchestrator"
	"storyloom/pkg/store"
	"storyloom/pkg/utils"
)

const (
	headerLimit     = "X-RateLimit-Limit"
	headerRemaining = "X-RateLimit-Remaining"
	headerReset     = "X-RateLimit-Reset"
)

func status(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidStep), errors.Is(err, orchestrator.ErrNothingToSave):
		return http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return apperr.Status(err)
}

// errorBody builds the JSON error response. Configuration causes and raw
// provider bodies only reach the log.
func errorBody(c echo.Context, err error) (int, map[string]any) {
	code := status(err)
	msg, details := apperr.Public(err)
	switch code {
	case http.StatusNotFound:
		msg = "Not found"
	case http.StatusConflict:
		msg = err.Error()
	}

	var (
		config   *apperr.ConfigurationError
		upstream *apperr.UpstreamError
		limited  *apperr.RateLimitedError
	)
	switch {
	case errors.As(err, &config):
		log.Error("generation service misconfigured", "path", c.Path(), "cause", config.Cause)
	case errors.As(err, &upstream):
		log.Error("provider request failed", "path", c.Path(), "status", upstream.StatusCode, "body", utils.LimitStr(upstream.Body, 512), "error", upstream.Err)
	case code >= 500:
		log.Error("request failed", "path", c.Path(), "error", err)
	}

	body := utils.ErrJSONDetails(msg, details)
	if errors.As(err, &limited) {
		reset := limited.ResetAt.UnixMilli()
		h := c.Response().Header()
		h.Set(headerLimit, strconv.Itoa(limited.Limit))
		h.Set(headerRemaining, "0")
		h.Set(headerReset, strconv.FormatInt(reset, 10))
		h.Set(echo.HeaderRetryAfter, strconv.Itoa(limited.WaitSeconds()))
		body["message"] = msg
		body["resetTime"] = reset
	}
	return code, body
}

func respondError(c echo.Context, err error) error {
	code, body := errorBody(c, err)
	return c.JSON(code, body)
}
