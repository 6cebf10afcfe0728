package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"storyloom/pkg/orchestrator"
	"storyloom/pkg/ratelimit"
)

const (
	headerSession = "X-Session-ID"
	sessionCookie = "storyloom_session"
	flowKey       = "flow"
)

func sessionID(c echo.Context) string {
	if id := strings.TrimSpace(c.Request().Header.Get(headerSession)); id != "" {
		return id
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	id := ksuid.New().String()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
	})
	return id
}

// withSession attaches the caller's flow to the context. Work the flow does
// is rate limited under the caller's client identity.
func (s *Server) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := sessionID(c)
		c.Response().Header().Set(headerSession, id)

		gen := s.Service.As(ratelimit.ClientIdentifier(c.Request()))
		f, err := s.Flows.Flow(c.Request().Context(), id, gen)
		if err != nil {
			return respondError(c, err)
		}
		c.Set(flowKey, f)
		return next(c)
	}
}

func flow(c echo.Context) *orchestrator.Flow {
	return c.Get(flowKey).(*orchestrator.Flow)
}

// stateResponse answers with the session state, plus the error when there
// is one. Failed actions still return the state they left behind.
func stateResponse(c echo.Context, state any, err error) error {
	if err != nil {
		code, body := errorBody(c, err)
		body["state"] = state
		return c.JSON(code, body)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "state": state})
}

func (s *Server) handleGetSession(c echo.Context) error {
	return stateResponse(c, flow(c).Resume(c.Request().Context()), nil)
}

func (s *Server) handleResume(c echo.Context) error {
	return stateResponse(c, flow(c).Remount(c.Request().Context()), nil)
}

type topicRequest struct {
	Topic string `json:"topic"`
}

func (s *Server) handleSetTopic(c echo.Context) error {
	var req topicRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid JSON in /api/session/topic", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	state, err := flow(c).SetTopic(c.Request().Context(), req.Topic)
	return stateResponse(c, state, err)
}

func (s *Server) handleSubmitOptions(c echo.Context) error {
	var req orchestrator.Options
	if err := c.Bind(&req); err != nil {
		log.Warn("invalid JSON in /api/session/options", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	state, err := flow(c).SubmitOptions(c.Request().Context(), req)
	return stateResponse(c, state, err)
}

func (s *Server) handleCreateContent(c echo.Context) error {
	state, err := flow(c).CreateContent(c.Request().Context())
	return stateResponse(c, state, err)
}

func (s *Server) handleStartOver(c echo.Context) error {
	state, err := flow(c).StartOver(c.Request().Context())
	return stateResponse(c, state, err)
}

func (s *Server) handleSave(c echo.Context) error {
	entry, state, err := flow(c).Save(c.Request().Context())
	if err != nil {
		return stateResponse(c, state, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "entry": entry, "state": state})
}

const eventInterval = 500 * time.Millisecond

// handleSessionEvents streams the session state while background work runs,
// then closes the stream.
func (s *Server) handleSessionEvents(c echo.Context) error {
	sse, err := NewSSEWriter(c)
	if err != nil {
		return err
	}

	f := flow(c)
	ctx := c.Request().Context()
	ticker := time.NewTicker(eventInterval)
	defer ticker.Stop()

	for {
		busy := f.Busy()
		if err := sse.Event("state", f.State()); err != nil {
			return fmt.Errorf("writing session event: %w", err)
		}
		if !busy {
			return sse.Close()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
