package podengine

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func episodeBody(slug string, extra string) string {
	return fmt.Sprintf(`{"title":"Episode %[1]s","slug":"%[1]s","date_published":"2024-01-15","excerpt":"About %[1]s","duration":1800%[2]s}`, slug, extra)
}

func createEpisode(t *testing.T, ta *testApp, slug, extra string) Episode {
	t.Helper()
	rec := ta.admin(http.MethodPost, "/api/admin/episodes", episodeBody(slug, extra))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[Episode](t, rec)
}

func TestCreateEpisode(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})

	ep := createEpisode(t, ta, "pilot", `,"tags":["Go"," go ","infra"],"audio_url":"/uploads/pilot.mp3"`)
	assert.NotZero(t, ep.ID)
	assert.Equal(t, StatusDraft, ep.Status, "new episodes default to draft")
	assert.Equal(t, []string{"Go", "infra"}, ep.Tags)
	assert.Equal(t, "2024-01-15", ep.DatePublished.Format("2006-01-02"))

	rec := ta.admin(http.MethodPost, "/api/admin/episodes", episodeBody("pilot", ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Episode with this slug already exists", errorMessage(t, rec))

	rec = ta.admin(http.MethodPost, "/api/admin/episodes", `{"title":"No slug"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing required fields", errorMessage(t, rec))

	rec = ta.admin(http.MethodPost, "/api/admin/episodes", episodeBody("Bad Slug", `,"status":"live","audio_url":"javascript:alert(1)"`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody[struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}](t, rec)
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Contains(t, resp.Details, "slug - Slug may only contain lowercase letters, digits and hyphens")
	assert.Contains(t, resp.Details, "status - Status must be draft or published")
	assert.Contains(t, resp.Details, "audio_url - Must be an http(s) URL or an /uploads/ path")

	rec = ta.do(http.MethodPost, "/api/admin/episodes", episodeBody("anon", ""), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateEpisodeMergesFields(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})
	ep := createEpisode(t, ta, "pilot", `,"content":"notes","tags":["go"]`)

	rec := ta.admin(http.MethodPut, fmt.Sprintf("/api/admin/episodes/%d", ep.ID), `{"title":"Renamed","status":"published"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeBody[Episode](t, rec)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, StatusPublished, got.Status)
	assert.Equal(t, "notes", got.Content, "absent fields keep their value")
	assert.Equal(t, []string{"go"}, got.Tags)

	rec = ta.admin(http.MethodPut, fmt.Sprintf("/api/admin/episodes/%d", ep.ID), `{"date_published":"soon"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "date_published - Invalid date")

	rec = ta.admin(http.MethodPut, "/api/admin/episodes/9999", `{"title":"x"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Episode not found", errorMessage(t, rec))

	createEpisode(t, ta, "second", "")
	rec = ta.admin(http.MethodPut, fmt.Sprintf("/api/admin/episodes/%d", ep.ID), `{"slug":"second"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Episode with this slug already exists", errorMessage(t, rec))
}

func TestHeroFlagMovesBetweenEpisodes(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})
	a := createEpisode(t, ta, "a", `,"is_hero":true,"status":"published"`)
	b := createEpisode(t, ta, "b", `,"is_hero":true,"status":"published"`)

	rec := ta.admin(http.MethodGet, fmt.Sprintf("/api/admin/episodes/%d", a.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[Episode](t, rec).IsHero)

	rec = ta.admin(http.MethodGet, "/api/admin/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decodeBody[Stats](t, rec)
	assert.Equal(t, 2, st.TotalEpisodes)
	assert.Equal(t, 2, st.Published)
	assert.Equal(t, 1, st.HeroEpisodes)
	assert.Len(t, st.RecentEpisodes, 2)

	rec = ta.do(http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hero="+b.Slug)
}

func TestDeleteEpisodeEndpoint(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})
	ep := createEpisode(t, ta, "gone", "")

	rec := ta.admin(http.MethodDelete, fmt.Sprintf("/api/admin/episodes/%d", ep.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Episode deleted successfully"}`, rec.Body.String())

	rec = ta.admin(http.MethodDelete, fmt.Sprintf("/api/admin/episodes/%d", ep.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ta.admin(http.MethodGet, "/api/admin/episodes/abc", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicEpisodeListHidesDrafts(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})
	createEpisode(t, ta, "draft-one", "")
	createEpisode(t, ta, "live-one", `,"status":"published","tags":["Interview"]`)
	createEpisode(t, ta, "live-two", `,"status":"published"`)

	rec := ta.do(http.MethodGet, "/api/episodes", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[episodesResponse](t, rec)
	assert.Equal(t, 2, resp.Pagination.Total)
	for _, e := range resp.Episodes {
		assert.True(t, e.Published(), e.Slug)
	}

	rec = ta.do(http.MethodGet, "/api/episodes?tag=interview", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[episodesResponse](t, rec)
	require.Len(t, resp.Episodes, 1)
	assert.Equal(t, "live-one", resp.Episodes[0].Slug)

	rec = ta.do(http.MethodGet, "/api/episodes?limit=1&page=2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[episodesResponse](t, rec)
	assert.Len(t, resp.Episodes, 1)
	assert.Equal(t, Pagination{Page: 2, Limit: 1, Total: 2, TotalPages: 2}, resp.Pagination)

	rec = ta.do(http.MethodGet, "/api/episodes?page=0", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.admin(http.MethodGet, "/api/admin/episodes?status=draft", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[episodesResponse](t, rec)
	require.Len(t, resp.Episodes, 1)
	assert.Equal(t, "draft-one", resp.Episodes[0].Slug)
}

func TestComingSoonEndpoints(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})

	rec := ta.do(http.MethodGet, "/api/coming-soon", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"comingSoon":null}`, rec.Body.String())

	rec = ta.admin(http.MethodPost, "/api/admin/coming-soon", `{"title":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Title is required", errorMessage(t, rec))

	rec = ta.admin(http.MethodPost, "/api/admin/coming-soon", `{"title":"Season two","description":"  ","is_visible":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decodeBody[comingSoonResponse](t, rec).ComingSoon
	require.NotNil(t, saved)
	assert.Nil(t, saved.Description, "blank description is stored as null")

	rec = ta.do(http.MethodGet, "/api/coming-soon", "", "")
	assert.JSONEq(t, `{"comingSoon":null}`, rec.Body.String(), "hidden section is not public")

	rec = ta.admin(http.MethodGet, "/api/admin/coming-soon", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Season two", decodeBody[comingSoonResponse](t, rec).ComingSoon.Title)

	ta.admin(http.MethodPost, "/api/admin/coming-soon", `{"title":"Season two","is_visible":true}`)
	rec = ta.do(http.MethodGet, "/api/coming-soon", "", "")
	require.NotNil(t, decodeBody[comingSoonResponse](t, rec).ComingSoon)

	rec = ta.admin(http.MethodDelete, "/api/admin/coming-soon", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())
}

func TestSettingsEndpoints(t *testing.T) {
	ta := newTestApp(t, SiteConfig{})

	rec := ta.do(http.MethodGet, "/api/settings/public", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultSettings(), decodeBody[Settings](t, rec))

	rec = ta.admin(http.MethodPut, "/api/admin/settings", `{"radio_mode":"shuffle","spotify_show_url":" https://open.spotify.com/show/x "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[settingsResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, RadioModeStream, resp.Settings.RadioMode, "unknown modes fall back to stream")
	assert.Equal(t, "https://open.spotify.com/show/x", resp.Settings.SpotifyShowURL)

	rec = ta.do(http.MethodGet, "/api/settings/public", "", "")
	assert.Equal(t, resp.Settings, decodeBody[Settings](t, rec), "saving invalidates the cache")

	rec = ta.admin(http.MethodGet, "/api/admin/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, resp.Settings, decodeBody[settingsResponse](t, rec).Settings)

	rec = ta.admin(http.MethodPut, "/api/admin/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
