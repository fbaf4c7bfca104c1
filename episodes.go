package podengine

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	defaultPublicEpisodeLimit = 10
	defaultAdminEpisodeLimit  = 20
	maxEpisodeLimit           = 100
)

// EpisodeInput is the body of an episode create or update. Absent fields
// are nil; on update they keep their stored value.
type EpisodeInput struct {
	Title               *string   `json:"title"`
	Slug                *string   `json:"slug"`
	DatePublished       *string   `json:"date_published"`
	Excerpt             *string   `json:"excerpt"`
	Content             *string   `json:"content"`
	Duration            *int      `json:"duration"`
	Tags                *[]string `json:"tags"`
	HeroImageURL        *string   `json:"hero_image_url"`
	ThumbImageURL       *string   `json:"thumb_image_url"`
	AudioURL            *string   `json:"audio_url"`
	SpotifyURL          *string   `json:"spotify_url"`
	AppleURL            *string   `json:"apple_url"`
	WebplayerURL        *string   `json:"webplayer_url"`
	BuzzsproutEpisodeID *string   `json:"buzzsprout_episode_id"`
	IsHero              *bool     `json:"is_hero"`
	Status              *string   `json:"status"`
}

func (in EpisodeInput) missingRequired() bool {
	return blank(in.Title) || blank(in.Slug) || blank(in.DatePublished) || blank(in.Excerpt) ||
		in.Duration == nil || *in.Duration == 0
}

// Apply copies every present field onto e. Strings are trimmed and tags
// normalized. A date that does not parse is reported by the returned
// details and leaves e.DatePublished untouched.
func (in EpisodeInput) Apply(e *Episode) []string {
	var details []string
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setString(&e.Title, in.Title)
	setString(&e.Slug, in.Slug)
	setString(&e.Excerpt, in.Excerpt)
	setString(&e.HeroImageURL, in.HeroImageURL)
	setString(&e.ThumbImageURL, in.ThumbImageURL)
	setString(&e.AudioURL, in.AudioURL)
	setString(&e.SpotifyURL, in.SpotifyURL)
	setString(&e.AppleURL, in.AppleURL)
	setString(&e.WebplayerURL, in.WebplayerURL)
	setString(&e.BuzzsproutEpisodeID, in.BuzzsproutEpisodeID)
	setString(&e.Status, in.Status)
	if in.Content != nil {
		e.Content = *in.Content
	}
	if in.Duration != nil {
		e.Duration = *in.Duration
	}
	if in.Tags != nil {
		e.Tags = NormalizeTags(*in.Tags)
	}
	if in.IsHero != nil {
		e.IsHero = *in.IsHero
	}
	if in.DatePublished != nil {
		if t, ok := ParseISODate(strings.TrimSpace(*in.DatePublished)); ok {
			e.DatePublished = t
		} else {
			details = append(details, "date_published - Invalid date")
		}
	}
	return details
}

type episodeFields struct {
	Title               string   `json:"title" validate:"required,max=500"`
	Slug                string   `json:"slug" validate:"required,max=200,slug"`
	Excerpt             string   `json:"excerpt" validate:"required,max=5000"`
	Duration            int      `json:"duration" validate:"gt=0"`
	Tags                []string `json:"tags" validate:"max=20,dive,max=50"`
	HeroImageURL        string   `json:"hero_image_url" validate:"omitempty,mediaurl"`
	ThumbImageURL       string   `json:"thumb_image_url" validate:"omitempty,mediaurl"`
	AudioURL            string   `json:"audio_url" validate:"omitempty,mediaurl"`
	SpotifyURL          string   `json:"spotify_url" validate:"omitempty,http_url"`
	AppleURL            string   `json:"apple_url" validate:"omitempty,http_url"`
	WebplayerURL        string   `json:"webplayer_url" validate:"omitempty,http_url"`
	BuzzsproutEpisodeID string   `json:"buzzsprout_episode_id" validate:"omitempty,alphanum,max=64"`
	Status              string   `json:"status" validate:"oneof=draft published"`
}

var episodeFieldMessages = map[string]string{
	"slug.slug":                "Slug may only contain lowercase letters, digits and hyphens",
	"duration.gt":              "Duration must be a positive number of seconds",
	"status.oneof":             "Status must be draft or published",
	"hero_image_url.mediaurl":  "Must be an http(s) URL or an /uploads/ path",
	"thumb_image_url.mediaurl": "Must be an http(s) URL or an /uploads/ path",
	"audio_url.mediaurl":       "Must be an http(s) URL or an /uploads/ path",
}

// ValidateEpisode checks a fully assembled episode.
func ValidateEpisode(e Episode) []string {
	return validateStruct(episodeFields{
		Title:               e.Title,
		Slug:                e.Slug,
		Excerpt:             e.Excerpt,
		Duration:            e.Duration,
		Tags:                e.Tags,
		HeroImageURL:        e.HeroImageURL,
		ThumbImageURL:       e.ThumbImageURL,
		AudioURL:            e.AudioURL,
		SpotifyURL:          e.SpotifyURL,
		AppleURL:            e.AppleURL,
		WebplayerURL:        e.WebplayerURL,
		BuzzsproutEpisodeID: e.BuzzsproutEpisodeID,
		Status:              e.Status,
	}, episodeFieldMessages)
}

type episodesResponse struct {
	Episodes   []Episode  `json:"episodes"`
	Pagination Pagination `json:"pagination"`
}

// queryInt reads a positive integer query parameter, capped at max.
func queryInt(c echo.Context, name string, def, max int) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, max), true
}

func (a *App) listEpisodes(c echo.Context, q EpisodeQuery, defLimit int) error {
	page, ok := queryInt(c, "page", 1, 1<<20)
	if !ok {
		return apiError(c, http.StatusBadRequest, "Invalid page parameter. Must be a positive integer.")
	}
	limit, ok := queryInt(c, "limit", defLimit, maxEpisodeLimit)
	if !ok {
		return apiError(c, http.StatusBadRequest, "Invalid limit parameter. Must be a positive integer.")
	}
	q.Page, q.Limit = page, limit
	episodes, pg, err := a.Store.ListEpisodes(c.Request().Context(), q)
	if err != nil {
		return a.internalError(c, "Failed to fetch episodes", err)
	}
	return c.JSON(http.StatusOK, episodesResponse{Episodes: episodes, Pagination: pg})
}

// handleListEpisodes serves the public catalog. Drafts are never listed.
func (a *App) handleListEpisodes(c echo.Context) error {
	return a.listEpisodes(c, EpisodeQuery{Status: StatusPublished, Tag: c.QueryParam("tag")}, defaultPublicEpisodeLimit)
}

func (a *App) handleAdminListEpisodes(c echo.Context) error {
	q := EpisodeQuery{Tag: c.QueryParam("tag")}
	if st := c.QueryParam("status"); st == StatusDraft || st == StatusPublished {
		q.Status = st
	}
	return a.listEpisodes(c, q, defaultAdminEpisodeLimit)
}

func episodeID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

func (a *App) handleGetEpisode(c echo.Context) error {
	id, ok := episodeID(c)
	if !ok {
		return apiError(c, http.StatusNotFound, "Episode not found")
	}
	ep, err := a.Store.GetEpisode(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return apiError(c, http.StatusNotFound, "Episode not found")
	}
	if err != nil {
		return a.internalError(c, "Failed to fetch episode", err)
	}
	return c.JSON(http.StatusOK, ep)
}

func (a *App) handleCreateEpisode(c echo.Context) error {
	var in EpisodeInput
	if err := decodeJSONBody(c, &in); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid JSON in request body")
	}
	if in.missingRequired() {
		return apiError(c, http.StatusBadRequest, "Missing required fields")
	}

	ep := Episode{Status: StatusDraft, Tags: []string{}}
	details := in.Apply(&ep)
	details = append(details, ValidateEpisode(ep)...)
	if len(details) > 0 {
		return apiErrorDetails(c, http.StatusBadRequest, "Validation failed", details)
	}

	saved, err := a.Store.CreateEpisode(c.Request().Context(), ep)
	if errors.Is(err, ErrDuplicateSlug) {
		return apiError(c, http.StatusBadRequest, "Episode with this slug already exists")
	}
	if err != nil {
		return a.internalError(c, "Failed to create episode", err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, saved)
}

func (a *App) handleUpdateEpisode(c echo.Context) error {
	id, ok := episodeID(c)
	if !ok {
		return apiError(c, http.StatusNotFound, "Episode not found")
	}
	var in EpisodeInput
	if err := decodeJSONBody(c, &in); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid JSON in request body")
	}

	ctx := c.Request().Context()
	ep, err := a.Store.GetEpisode(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return apiError(c, http.StatusNotFound, "Episode not found")
	}
	if err != nil {
		return a.internalError(c, "Failed to update episode", err)
	}

	details := in.Apply(&ep)
	details = append(details, ValidateEpisode(ep)...)
	if len(details) > 0 {
		return apiErrorDetails(c, http.StatusBadRequest, "Validation failed", details)
	}

	saved, err := a.Store.UpdateEpisode(ctx, ep)
	switch {
	case errors.Is(err, ErrNotFound):
		return apiError(c, http.StatusNotFound, "Episode not found")
	case errors.Is(err, ErrDuplicateSlug):
		return apiError(c, http.StatusBadRequest, "Episode with this slug already exists")
	case err != nil:
		return a.internalError(c, "Failed to update episode", err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, saved)
}

func (a *App) handleDeleteEpisode(c echo.Context) error {
	id, ok := episodeID(c)
	if !ok {
		return apiError(c, http.StatusNotFound, "Episode not found")
	}
	err := a.Store.DeleteEpisode(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return apiError(c, http.StatusNotFound, "Episode not found")
	}
	if err != nil {
		return a.internalError(c, "Failed to delete episode", err)
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, map[string]string{"message": "Episode deleted successfully"})
}

func (a *App) handleStats(c echo.Context) error {
	st, err := a.Store.Stats(c.Request().Context())
	if err != nil {
		return a.internalError(c, "Failed to fetch stats", err)
	}
	return c.JSON(http.StatusOK, st)
}
