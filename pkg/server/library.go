package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"storyloom/pkg/orchestrator"
)

func entryID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid library id")
	}
	return id, nil
}

// viewing checks that the action targets the entry the session has open.
func viewing(c echo.Context, f *orchestrator.Flow) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	if open := f.State().ViewingEntryID; open != id {
		return fmt.Errorf("library item %d is not open: %w", id, orchestrator.ErrInvalidStep)
	}
	return nil
}

func (s *Server) handleListLibrary(c echo.Context) error {
	entries, err := flow(c).Library(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "entries": entries})
}

func (s *Server) handleGetEntry(c echo.Context) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	entry, err := flow(c).Entry(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "entry": entry})
}

func (s *Server) handleOpenEntry(c echo.Context) error {
	id, err := entryID(c)
	if err != nil {
		return err
	}
	state, err := flow(c).Open(c.Request().Context(), id)
	return stateResponse(c, state, err)
}

func (s *Server) handleRegenerateImages(c echo.Context) error {
	f := flow(c)
	if err := viewing(c, f); err != nil {
		return stateResponse(c, f.State(), err)
	}
	state, err := f.RegenerateImages(c.Request().Context())
	return stateResponse(c, state, err)
}

func (s *Server) handleRegenerateText(c echo.Context) error {
	f := flow(c)
	if err := viewing(c, f); err != nil {
		return stateResponse(c, f.State(), err)
	}
	state, diff, err := f.RegenerateText(c.Request().Context())
	if err != nil {
		return stateResponse(c, state, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "state": state, "diff": diff})
}

func (s *Server) handleDeleteEntry(c echo.Context) error {
	f := flow(c)
	if err := viewing(c, f); err != nil {
		return stateResponse(c, f.State(), err)
	}
	state, err := f.Delete(c.Request().Context())
	return stateResponse(c, state, err)
}
