package podengine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// SiteCache is an in-memory snapshot of what the public pages render:
// published episodes, the blog collection, the visible coming-soon section
// and the show settings. Admin writes call Invalidate.
type SiteCache struct {
	mu      sync.RWMutex
	snap    *siteSnapshot
	fetched time.Time
	ttl     time.Duration
	store   *Store
	now     func() time.Time
}

type siteSnapshot struct {
	episodes   []Episode
	blogs      []Blog
	comingSoon *ComingSoon
	settings   Settings
}

// NewSiteCache creates a SiteCache backed by the given Store.
func NewSiteCache(s *Store, ttl time.Duration) *SiteCache {
	return &SiteCache{store: s, ttl: ttl, now: time.Now}
}

func (c *SiteCache) valid() bool {
	return c.snap != nil && c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *SiteCache) Invalidate() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
}

func (c *SiteCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	episodes, err := c.store.ListPublishedEpisodes(ctx)
	if err != nil {
		return err
	}
	blogs, err := c.store.ListBlogs(ctx, MaxBlogs)
	if err != nil {
		return err
	}
	settings, err := c.store.GetSettings(ctx)
	if err != nil {
		return err
	}
	snap := &siteSnapshot{episodes: episodes, blogs: blogs, settings: settings}
	cs, err := c.store.GetComingSoon(ctx, true)
	switch {
	case err == nil:
		snap.comingSoon = &cs
	case !errors.Is(err, ErrNotFound):
		return err
	}
	c.snap = snap
	c.fetched = c.now()
	return nil
}

// ensureLoaded returns the cached snapshot after ensuring it is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *SiteCache) ensureLoaded(ctx context.Context) (*siteSnapshot, error) {
	c.mu.RLock()
	if c.valid() {
		snap := c.snap
		c.mu.RUnlock()
		return snap, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	return c.snap, nil
}

// Episodes returns published episodes, newest first.
func (c *SiteCache) Episodes(ctx context.Context) ([]Episode, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return snap.episodes, nil
}

// Episode returns a published episode by slug.
func (c *SiteCache) Episode(ctx context.Context, slug string) (Episode, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return Episode{}, err
	}
	for _, e := range snap.episodes {
		if e.Slug == slug {
			return e, nil
		}
	}
	return Episode{}, ErrNotFound
}

// Home assembles the home page data.
func (c *SiteCache) Home(ctx context.Context) (HomePage, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return HomePage{}, err
	}
	page := HomePage{
		Episodes:   snap.episodes,
		Blogs:      snap.blogs,
		ComingSoon: snap.comingSoon,
		Settings:   snap.settings,
	}
	for i := range snap.episodes {
		if snap.episodes[i].IsHero {
			hero := snap.episodes[i]
			page.Hero = &hero
			break
		}
	}
	if page.Hero == nil && len(snap.episodes) > 0 {
		hero := snap.episodes[0]
		page.Hero = &hero
	}
	return page, nil
}

// Settings returns the show settings.
func (c *SiteCache) Settings(ctx context.Context) (Settings, error) {
	snap, err := c.ensureLoaded(ctx)
	if err != nil {
		return Settings{}, err
	}
	return snap.settings, nil
}
