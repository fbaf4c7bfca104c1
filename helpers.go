package podengine

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/goccy/go-json"
)

// Slugify converts a title to a URL-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	prev := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prev = false
		default:
			if !prev && b.Len() > 0 {
				b.WriteByte('-')
				prev = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// AbsoluteURL resolves a stored media reference (an /uploads/ path or a full
// URL) against the site URL.
func AbsoluteURL(base, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// SanitizeURL returns u when it is an absolute http(s) URL and "" otherwise,
// so stored links cannot smuggle javascript: into href attributes.
func SanitizeURL(u string) string {
	p, err := url.Parse(strings.TrimSpace(u))
	if err != nil || p.Host == "" {
		return ""
	}
	if p.Scheme != "http" && p.Scheme != "https" {
		return ""
	}
	return p.String()
}

// FilterEmpty removes empty/whitespace-only strings from a slice.
func FilterEmpty(vals []string) []string {
	var out []string
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// FormatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// RelatedEpisodes returns up to limit episodes sharing a tag with current,
// topped up with the newest other episodes.
func RelatedEpisodes(current Episode, episodes []Episode, limit int) []Episode {
	tagSet := make(map[string]struct{})
	for _, t := range current.Tags {
		tagSet[strings.ToLower(t)] = struct{}{}
	}
	related := make([]Episode, 0, limit)
	picked := make(map[int64]bool)
	for _, e := range episodes {
		if len(related) == limit {
			return related
		}
		if e.ID == current.ID {
			continue
		}
		for _, t := range e.Tags {
			if _, ok := tagSet[strings.ToLower(t)]; ok {
				related = append(related, e)
				picked[e.ID] = true
				break
			}
		}
	}
	for _, e := range episodes {
		if len(related) == limit {
			break
		}
		if e.ID != current.ID && !picked[e.ID] {
			related = append(related, e)
		}
	}
	return related
}

// JoinTags joins tags with ", ".
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// PodcastSeriesJsonLD returns a JSON-LD string for a PodcastSeries schema.
func PodcastSeriesJsonLD(cfg SiteConfig) string {
	data := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "PodcastSeries",
		"name":        cfg.Name,
		"url":         BuildURL(cfg.URL),
		"description": cfg.Description,
		"webFeed":     strings.TrimRight(cfg.URL, "/") + "/feed.xml",
	}
	if cfg.Author != "" {
		data["author"] = map[string]string{
			"@type": "Person",
			"name":  cfg.Author,
		}
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// EpisodeJsonLD returns a JSON-LD string for a PodcastEpisode schema.
func EpisodeJsonLD(ep Episode, cfg SiteConfig) string {
	epURL := BuildURL(cfg.URL, "episodes", ep.Slug)
	data := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "PodcastEpisode",
		"name":          ep.Title,
		"description":   ep.Excerpt,
		"datePublished": FormatISODate(ep.DatePublished),
		"url":           epURL,
		"timeRequired":  fmt.Sprintf("PT%dS", ep.Duration),
		"partOfSeries": map[string]string{
			"@type": "PodcastSeries",
			"name":  cfg.Name,
			"url":   BuildURL(cfg.URL),
		},
	}
	if audio := AbsoluteURL(cfg.URL, ep.AudioURL); audio != "" {
		data["associatedMedia"] = map[string]string{
			"@type":      "MediaObject",
			"contentUrl": audio,
		}
	}
	if len(ep.Tags) > 0 {
		data["keywords"] = strings.Join(ep.Tags, ", ")
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "{}"
	}
	return string(b)
}
