package podengine

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const contentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' https://www.buzzsprout.com; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' https: data: blob:; " +
	"font-src 'self' data:; " +
	"connect-src 'self' https://www.buzzsprout.com; " +
	"media-src 'self' https: blob:; " +
	"frame-src 'self' https://www.buzzsprout.com https://open.spotify.com https://embed.podcasts.apple.com; " +
	"frame-ancestors 'none'"

func (a *App) setupMiddleware() {
	e := a.Echo

	e.IPExtractor = echo.ExtractIPFromXFFHeader(
		echo.TrustLoopback(true),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(true),
	)

	e.HTTPErrorHandler = a.httpErrorHandler
	e.JSONSerializer = jsonSerializer{}

	e.Pre(middleware.NonWWWRedirect())

	e.Use(a.requestLogger())

	e.Use(middleware.Recover())

	e.Use(a.metrics.middleware())

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/public/") || strings.HasPrefix(path, uploadsPrefix)
		},
	}))

	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: contentSecurityPolicy,
		HSTSMaxAge:            31536000,
		HSTSExcludeSubdomains: false,
	}))

	e.Use(middleware.AddTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusMovedPermanently,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/" ||
				strings.HasPrefix(path, "/public") ||
				strings.HasPrefix(path, uploadsPrefix) ||
				strings.HasPrefix(path, "/api/") ||
				strings.HasPrefix(path, legacyPrefix) ||
				path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt" ||
				path == "/favicon.svg" || path == "/metrics" || path == "/healthz"
		},
	}))

	e.Use(cacheControlMiddleware)
}

func cacheControlMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		switch {
		case strings.HasPrefix(path, "/public/"), strings.HasPrefix(path, uploadsPrefix):
			c.Response().Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case path == "/sitemap.xml" || path == "/feed.xml" || path == "/robots.txt":
			c.Response().Header().Set("Cache-Control", "public, max-age=3600")
		case strings.HasPrefix(path, "/api/"), path == "/metrics", path == "/healthz":
			c.Response().Header().Set("Cache-Control", "no-store")
		default:
			c.Response().Header().Set("Cache-Control", "public, max-age=300")
		}
		return next(c)
	}
}

// rateLimit rejects requests once the client IP has used up limit hits in
// the limiter's window.
func (a *App) rateLimit(l *RateLimiter, limit int, name string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := l.Check(c.RealIP(), limit); err != nil {
				a.metrics.rateLimited.WithLabelValues(name).Inc()
				a.Logger.Warn().Str("limiter", name).Str("ip", c.RealIP()).Msg("rate limited")
				return apiError(c, http.StatusTooManyRequests, "Too many requests")
			}
			return next(c)
		}
	}
}
