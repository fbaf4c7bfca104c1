package podengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteCacheTTL(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	clock := newFakeClock()
	c := NewSiteCache(s, time.Minute)
	c.now = clock.Now

	_, err := s.CreateEpisode(ctx, testEpisode("one", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	eps, err := c.Episodes(ctx)
	require.NoError(t, err)
	require.Len(t, eps, 1)

	_, err = s.CreateEpisode(ctx, testEpisode("two", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	eps, err = c.Episodes(ctx)
	require.NoError(t, err)
	assert.Len(t, eps, 1, "served from cache within the TTL")

	clock.Advance(time.Minute)
	eps, err = c.Episodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"two", "one"}, slugs(eps))
}

func TestSiteCacheInvalidate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	c := NewSiteCache(s, time.Hour)

	settings, err := c.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)

	settings.RadioMode = RadioModePlaylist
	require.NoError(t, s.SaveSettings(ctx, settings))

	got, err := c.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), got)

	c.Invalidate()
	got, err = c.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, RadioModePlaylist, got.RadioMode)
}

func TestSiteCacheHome(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	c := NewSiteCache(s, time.Hour)

	page, err := c.Home(ctx)
	require.NoError(t, err)
	assert.Nil(t, page.Hero)
	assert.Empty(t, page.Episodes)
	assert.Nil(t, page.ComingSoon)

	older := testEpisode("older", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	_, err = s.CreateEpisode(ctx, older)
	require.NoError(t, err)
	_, err = s.CreateEpisode(ctx, testEpisode("newer", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	draft := testEpisode("draft", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	draft.Status = StatusDraft
	_, err = s.CreateEpisode(ctx, draft)
	require.NoError(t, err)

	c.Invalidate()
	page, err = c.Home(ctx)
	require.NoError(t, err)
	require.NotNil(t, page.Hero)
	assert.Equal(t, "newer", page.Hero.Slug, "newest published episode without a hero flag")

	flagged := testEpisode("flagged", time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC))
	flagged.IsHero = true
	_, err = s.CreateEpisode(ctx, flagged)
	require.NoError(t, err)

	c.Invalidate()
	page, err = c.Home(ctx)
	require.NoError(t, err)
	require.NotNil(t, page.Hero)
	assert.Equal(t, "flagged", page.Hero.Slug)
	assert.Len(t, page.Episodes, 3)

	_, err = c.Episode(ctx, "draft")
	assert.ErrorIs(t, err, ErrNotFound)
	ep, err := c.Episode(ctx, "older")
	require.NoError(t, err)
	assert.Equal(t, "Episode older", ep.Title)
}
