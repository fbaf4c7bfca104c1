package podengine

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Radio modes for the trailer player.
const (
	RadioModeStream   = "stream"
	RadioModePlaylist = "playlist"
)

// normalized trims every field and forces RadioMode to a known value.
func (s Settings) normalized() Settings {
	for _, f := range []*string{
		&s.TrailerAudioURL, &s.RadioStreamURL, &s.SpotifyShowURL, &s.AppleShowURL, &s.RSSFeedURL,
		&s.SocialTwitter, &s.SocialLinkedIn, &s.SocialInstagram, &s.SocialYouTube,
	} {
		*f = strings.TrimSpace(*f)
	}
	if s.RadioMode != RadioModePlaylist {
		s.RadioMode = RadioModeStream
	}
	return s
}

type settingsResponse struct {
	Success  bool     `json:"success,omitempty"`
	Settings Settings `json:"settings"`
}

// handlePublicSettings returns the settings object itself, not wrapped.
func (a *App) handlePublicSettings(c echo.Context) error {
	st, err := a.Cache.Settings(c.Request().Context())
	if err != nil {
		return a.internalError(c, "Failed to fetch settings", err)
	}
	return c.JSON(http.StatusOK, st)
}

func (a *App) handleAdminSettings(c echo.Context) error {
	st, err := a.Store.GetSettings(c.Request().Context())
	if err != nil {
		return a.internalError(c, "Failed to fetch settings", err)
	}
	return c.JSON(http.StatusOK, settingsResponse{Settings: st})
}

func (a *App) handleSaveSettings(c echo.Context) error {
	var st Settings
	if err := decodeJSONBody(c, &st); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid JSON in request body")
	}
	st = st.normalized()
	if err := a.Store.SaveSettings(c.Request().Context(), st); err != nil {
		return a.internalError(c, "Failed to save settings", err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, settingsResponse{Success: true, Settings: st})
}
