// Package podengine is a podcast site engine built with Go, Echo, and templ.
// It serves the public show pages, an RSS feed and sitemap, and a JSON admin
// API for episodes, the curated blog collection, the coming-soon teaser,
// show settings and media uploads.
//
// Users provide their own templ templates via the ViewFuncs struct,
// and podengine handles the handler logic, middleware, and database operations.
package podengine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// legacyPrefix is the path of the old hosted player page; it now redirects home.
const legacyPrefix = "/2068911"

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages.
type ViewFuncs struct {
	Home        func(page HomePage) templ.Component
	Episode     func(ep Episode, more []Episode, siteURL string) templ.Component
	NotFound    func() templ.Component
	ServerError func() templ.Component
}

// App is the central podengine application. It wires together the store,
// cache, handlers, middleware, and user-provided templates.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *SiteCache
	Views  ViewFuncs
	Tokens *TokenManager
	Logger zerolog.Logger

	loginLimiter  *RateLimiter
	uploadLimiter *RateLimiter
	metrics       *appMetrics
	customRoutes  []func(*App)
	customLogger  bool
	now           func() time.Time
}

// New creates a new podengine App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	a := &App{
		Config: cfg,
		Echo:   echo.New(),
		Views:  views,
		now:    time.Now,
	}
	a.Echo.HideBanner = true
	a.Echo.HidePort = true

	for _, opt := range opts {
		opt(a)
	}
	a.Config.setDefaults()

	return a
}

// Init opens the database and builds the router without listening. Start
// calls it; tests call it directly and drive a.Echo with httptest.
func (a *App) Init() error {
	if err := a.Config.validate(); err != nil {
		return err
	}
	if !a.customLogger {
		a.Logger = NewLogger(a.Config.LogLevel, a.Config.LogFormat, nil)
	}

	store, err := NewStore(a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("podengine: init store: %w", err)
	}
	store.setClock(a.now)
	a.Store = store

	a.Cache = NewSiteCache(a.Store, a.Config.CacheTTL)
	a.Cache.now = a.now

	tokens, err := NewTokenManager(a.Config.jwtSecret(), a.Config.TokenTTL)
	if err != nil {
		return fmt.Errorf("podengine: init tokens: %w", err)
	}
	tokens.now = a.now
	a.Tokens = tokens
	if a.Config.JWTSecret == "" {
		a.Logger.Warn().Msg("JWT_SECRET not set, using the development secret")
	}

	a.loginLimiter = NewRateLimiter(a.Config.RateLimitWindow, a.Config.RateLimitMaxKeys)
	a.loginLimiter.now = a.now
	a.uploadLimiter = NewRateLimiter(a.Config.RateLimitWindow, a.Config.RateLimitMaxKeys)
	a.uploadLimiter.now = a.now

	a.metrics = newAppMetrics()

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start initializes the app and serves until the server is shut down.
func (a *App) Start() error {
	if err := a.Init(); err != nil {
		return err
	}
	a.logStart()

	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

func (a *App) setupRoutes() {
	e := a.Echo

	// Framework assets are served under /public/ ahead of the user's static dir.
	embeddedFS, _ := fs.Sub(EmbeddedAssets, "embedded")
	embeddedHandler := echo.WrapHandler(http.StripPrefix("/public/", http.FileServer(http.FS(embeddedFS))))
	e.GET("/public/player.js", embeddedHandler)
	e.GET("/public/site.css", embeddedHandler)

	e.Static("/public", a.Config.StaticDir)
	e.Static("/uploads", a.Config.UploadDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/healthz", a.handleHealth)
	e.GET("/metrics", a.metrics.handler())

	// Public pages
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/episodes/:slug/", a.handleEpisode)
	e.GET(legacyPrefix, handleLegacyRedirect)
	e.GET(legacyPrefix+"/*", handleLegacyRedirect)

	// Public API
	e.POST("/api/auth/login", a.handleLogin)
	e.GET("/api/blogs", a.handleListBlogs)
	e.GET("/api/episodes", a.handleListEpisodes)
	e.GET("/api/coming-soon", a.handleComingSoon)
	e.GET("/api/settings/public", a.handlePublicSettings)

	// Admin API
	e.POST("/api/blogs", a.handleReplaceBlogs, a.requireAdmin)
	e.POST("/api/admin/upload", a.handleUpload,
		a.rateLimit(a.uploadLimiter, a.Config.UploadRateLimit, "upload"),
		middleware.BodyLimit(fmt.Sprintf("%dK", maxUploadSize>>10+1024)),
		a.requireAdmin,
	)

	admin := e.Group("/api/admin", a.requireAdmin)
	admin.GET("/me", a.handleMe)
	admin.GET("/stats", a.handleStats)
	admin.GET("/episodes", a.handleAdminListEpisodes)
	admin.POST("/episodes", a.handleCreateEpisode)
	admin.GET("/episodes/:id", a.handleGetEpisode)
	admin.PUT("/episodes/:id", a.handleUpdateEpisode)
	admin.DELETE("/episodes/:id", a.handleDeleteEpisode)
	admin.GET("/coming-soon", a.handleAdminComingSoon)
	admin.POST("/coming-soon", a.handleSaveComingSoon)
	admin.DELETE("/coming-soon", a.handleDeleteComingSoon)
	admin.GET("/settings", a.handleAdminSettings)
	admin.PUT("/settings", a.handleSaveSettings)
	admin.GET("/uploads", a.handleListUploads)
	admin.DELETE("/upload", a.handleDeleteUpload)
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
