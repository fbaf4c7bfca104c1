// Package views holds the default page templates for a podengine site.
// Pages are html/template documents exposed as templ components, so they can
// be swapped for generated templ code one page at a time.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/eringen/podengine"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))

var funcs = template.FuncMap{
	"duration":   podengine.FormatDuration,
	"joinTags":   podengine.JoinTags,
	"safeURL":    safeURL,
	"date":       formatDate,
	"paragraphs": paragraphs,
	"jsonLD":     func(s string) template.JS { return template.JS(s) },
}

type layoutData struct {
	Site     podengine.SiteConfig
	Meta     podengine.PageMeta
	JSONLD   string
	Settings podengine.Settings
	Body     any
}

type episodeData struct {
	Episode podengine.Episode
	More    []podengine.Episode
	Audio   string
}

// New returns the default ViewFuncs for cfg.
func New(cfg podengine.SiteConfig) podengine.ViewFuncs {
	return podengine.ViewFuncs{
		Home: func(page podengine.HomePage) templ.Component {
			return render("home", layoutData{
				Site:     cfg,
				Meta:     HomeMeta(cfg),
				JSONLD:   podengine.PodcastSeriesJsonLD(cfg),
				Settings: page.Settings,
				Body:     page,
			})
		},
		Episode: func(ep podengine.Episode, more []podengine.Episode, siteURL string) templ.Component {
			return render("episode", layoutData{
				Site:   cfg,
				Meta:   EpisodeMeta(cfg, ep),
				JSONLD: podengine.EpisodeJsonLD(ep, cfg),
				Body: episodeData{
					Episode: ep,
					More:    more,
					Audio:   podengine.AbsoluteURL(siteURL, ep.AudioURL),
				},
			})
		},
		NotFound: func() templ.Component {
			return render("notfound", layoutData{
				Site: cfg,
				Meta: podengine.PageMeta{Title: "Not found | " + cfg.Name, OGType: "website"},
			})
		},
		ServerError: func() templ.Component {
			return render("servererror", layoutData{
				Site: cfg,
				Meta: podengine.PageMeta{Title: "Something went wrong | " + cfg.Name, OGType: "website"},
			})
		},
	}
}

func render(name string, data layoutData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, data)
	})
}

// HomeMeta builds the <head> metadata for the home page.
func HomeMeta(cfg podengine.SiteConfig) podengine.PageMeta {
	return podengine.PageMeta{
		Title:       cfg.Name,
		Description: cfg.Description,
		URL:         podengine.BuildURL(cfg.URL),
		OGType:      "website",
	}
}

// EpisodeMeta builds the <head> metadata for an episode page.
func EpisodeMeta(cfg podengine.SiteConfig, ep podengine.Episode) podengine.PageMeta {
	return podengine.PageMeta{
		Title:       ep.Title + " | " + cfg.Name,
		Description: ep.Excerpt,
		URL:         podengine.BuildURL(cfg.URL, "episodes", ep.Slug),
		OGType:      "article",
	}
}

// safeURL lets only http(s) and site-relative links into href and src
// attributes.
func safeURL(u string) template.URL {
	if strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//") {
		return template.URL(u)
	}
	return template.URL(podengine.SanitizeURL(u))
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("January 2, 2006")
	case string:
		if p, ok := podengine.ParseISODate(t); ok {
			return p.Format("January 2, 2006")
		}
		return t
	}
	return ""
}

// paragraphs splits plain show notes on blank lines.
func paragraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return podengine.FilterEmpty(strings.Split(s, "\n\n"))
}
