package podengine

import (
	"encoding/xml"
	"time"

	"github.com/labstack/echo/v4"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// buildSitemap lists the home page, stamped with the most recent episode
// change, followed by every published episode page.
func (a *App) buildSitemap(episodes []Episode) sitemapURLSet {
	home := sitemapURL{Loc: BuildURL(a.Config.URL), ChangeFreq: "weekly", Priority: "1.0"}
	var latest time.Time
	for _, ep := range episodes {
		if ep.UpdatedAt.After(latest) {
			latest = ep.UpdatedAt
		}
	}
	if !latest.IsZero() {
		home.LastMod = latest.UTC().Format(time.DateOnly)
	}

	set := sitemapURLSet{XMLNS: sitemapNamespace, URLs: make([]sitemapURL, 0, len(episodes)+1)}
	set.URLs = append(set.URLs, home)
	for _, ep := range episodes {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        BuildURL(a.Config.URL, "episodes", ep.Slug),
			LastMod:    ep.UpdatedAt.UTC().Format(time.DateOnly),
			ChangeFreq: "monthly",
			Priority:   "0.8",
		})
	}
	return set
}

func (a *App) renderSitemap(c echo.Context, episodes []Episode) error {
	return writeXML(c, "application/xml; charset=utf-8", a.buildSitemap(episodes))
}
