package podengine

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
)

const relatedEpisodeCount = 3

func (a *App) handleHome(c echo.Context) error {
	page, err := a.Cache.Home(c.Request().Context())
	if err != nil {
		return err
	}
	page.SiteURL = a.Config.URL
	return Render(c, a.Views.Home(page))
}

func (a *App) handleEpisode(c echo.Context) error {
	ctx := c.Request().Context()
	ep, err := a.Cache.Episode(ctx, c.Param("slug"))
	if errors.Is(err, ErrNotFound) {
		return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
	}
	if err != nil {
		return err
	}
	episodes, err := a.Cache.Episodes(ctx)
	if err != nil {
		return err
	}
	return Render(c, a.Views.Episode(ep, RelatedEpisodes(ep, episodes, relatedEpisodeCount), a.Config.URL))
}

func (a *App) handleSitemap(c echo.Context) error {
	episodes, err := a.Cache.Episodes(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderSitemap(c, episodes)
}

func (a *App) handleFeed(c echo.Context) error {
	episodes, err := a.Cache.Episodes(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, episodes)
}

func handleLegacyRedirect(c echo.Context) error {
	return c.Redirect(http.StatusMovedPermanently, "/")
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(filepath.Join(a.Config.StaticDir, "favicon.svg"))
}

// handleRobots serves the user's robots.txt when present and otherwise
// generates one that keeps crawlers out of the admin surface.
func (a *App) handleRobots(c echo.Context) error {
	path := filepath.Join(a.Config.StaticDir, "robots.txt")
	if _, err := os.Stat(path); err == nil {
		return c.File(path)
	}
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("\nSitemap: " + strings.TrimRight(a.Config.URL, "/") + "/sitemap.xml\n")
	return c.String(http.StatusOK, b.String())
}

func (a *App) handleHealth(c echo.Context) error {
	if err := a.Store.Ping(c.Request().Context()); err != nil {
		a.Logger.Error().Err(err).Msg("health check failed")
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= 500 {
		a.Logger.Error().Err(err).Str("method", c.Request().Method).Str("uri", c.Request().RequestURI).Msg("server error")
	}

	if strings.HasPrefix(c.Request().URL.Path, "/api/") {
		if code >= 500 {
			msg = "Internal server error"
		}
		_ = apiError(c, code, msg)
		return
	}

	switch {
	case code == http.StatusNotFound:
		_ = RenderStatus(c, code, a.Views.NotFound())
	case code >= 500:
		_ = RenderStatus(c, code, a.Views.ServerError())
	default:
		_ = c.String(code, msg)
	}
}
