package podengine

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type comingSoonResponse struct {
	ComingSoon *ComingSoon `json:"comingSoon"`
}

type comingSoonInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	IsVisible   bool    `json:"is_visible"`
}

type comingSoonFields struct {
	Title       string `json:"title" validate:"required,max=500"`
	Description string `json:"description" validate:"max=5000"`
}

var comingSoonMessages = map[string]string{
	"title.required": "Title is required",
}

func (a *App) comingSoon(c echo.Context, visibleOnly bool) error {
	cs, err := a.Store.GetComingSoon(c.Request().Context(), visibleOnly)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusOK, comingSoonResponse{})
	}
	if err != nil {
		return a.internalError(c, "Failed to fetch coming soon section", err)
	}
	return c.JSON(http.StatusOK, comingSoonResponse{ComingSoon: &cs})
}

// handleComingSoon returns the visible section or {"comingSoon": null}.
func (a *App) handleComingSoon(c echo.Context) error {
	return a.comingSoon(c, true)
}

func (a *App) handleAdminComingSoon(c echo.Context) error {
	return a.comingSoon(c, false)
}

func (a *App) handleSaveComingSoon(c echo.Context) error {
	var in comingSoonInput
	if err := decodeJSONBody(c, &in); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid JSON in request body")
	}
	cs := ComingSoon{Title: strings.TrimSpace(in.Title), IsVisible: in.IsVisible}
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			cs.Description = &d
		}
	}

	fields := comingSoonFields{Title: cs.Title}
	if cs.Description != nil {
		fields.Description = *cs.Description
	}
	if details := validateStruct(fields, comingSoonMessages); len(details) > 0 {
		if cs.Title == "" {
			return apiError(c, http.StatusBadRequest, "Title is required")
		}
		return apiErrorDetails(c, http.StatusBadRequest, "Validation failed", details)
	}

	saved, err := a.Store.SaveComingSoon(c.Request().Context(), cs)
	if err != nil {
		return a.internalError(c, "Failed to save coming soon section", err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, comingSoonResponse{ComingSoon: &saved})
}

func (a *App) handleDeleteComingSoon(c echo.Context) error {
	if err := a.Store.DeleteComingSoon(c.Request().Context()); err != nil {
		return a.internalError(c, "Failed to delete coming soon section", err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, map[string]bool{"success": true})
}
