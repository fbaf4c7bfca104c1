package podengine

import (
	"encoding/xml"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const itunesNamespace = "http://www.itunes.com/dtds/podcast-1.0.dtd"

type rssXML struct {
	XMLName     xml.Name   `xml:"rss"`
	Version     string     `xml:"version,attr"`
	XMLNSItunes string     `xml:"xmlns:itunes,attr"`
	Channel     rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title          string       `xml:"title"`
	Link           string       `xml:"link"`
	Description    string       `xml:"description"`
	Language       string       `xml:"language"`
	LastBuildDate  string       `xml:"lastBuildDate,omitempty"`
	ItunesAuthor   string       `xml:"itunes:author,omitempty"`
	ItunesSummary  string       `xml:"itunes:summary,omitempty"`
	ItunesExplicit string       `xml:"itunes:explicit"`
	ItunesImage    *itunesImage `xml:"itunes:image,omitempty"`
	Items          []rssItem    `xml:"item"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type rssItem struct {
	Title          string        `xml:"title"`
	Link           string        `xml:"link"`
	Description    string        `xml:"description"`
	PubDate        string        `xml:"pubDate"`
	GUID           rssGUID       `xml:"guid"`
	Enclosure      *rssEnclosure `xml:"enclosure,omitempty"`
	ItunesDuration string        `xml:"itunes:duration,omitempty"`
	ItunesImage    *itunesImage  `xml:"itunes:image,omitempty"`
	ItunesKeywords string        `xml:"itunes:keywords,omitempty"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type rssEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// audioMIME guesses the enclosure type from the file extension.
func audioMIME(audioURL string) string {
	ext := strings.ToLower(path.Ext(strings.SplitN(audioURL, "?", 2)[0]))
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/x-m4a"
	}
	if t := mime.TypeByExtension(ext); strings.HasPrefix(t, "audio/") {
		return t
	}
	return "audio/mpeg"
}

func (a *App) buildFeed(episodes []Episode, sizes map[string]int64) rssXML {
	base := a.Config.URL
	items := make([]rssItem, 0, len(episodes))
	for _, ep := range episodes {
		epURL := BuildURL(base, "episodes", ep.Slug)
		item := rssItem{
			Title:          ep.Title,
			Link:           epURL,
			Description:    ep.Excerpt,
			PubDate:        ep.DatePublished.UTC().Format(time.RFC1123Z),
			GUID:           rssGUID{IsPermaLink: true, Value: epURL},
			ItunesDuration: FormatDuration(ep.Duration),
			ItunesKeywords: JoinTags(ep.Tags),
		}
		if audio := AbsoluteURL(base, ep.AudioURL); audio != "" {
			item.Enclosure = &rssEnclosure{
				URL:    audio,
				Length: sizes[strings.TrimPrefix(ep.AudioURL, uploadsPrefix)],
				Type:   audioMIME(ep.AudioURL),
			}
		}
		if img := AbsoluteURL(base, ep.HeroImageURL); img != "" {
			item.ItunesImage = &itunesImage{Href: img}
		}
		items = append(items, item)
	}

	ch := rssChannel{
		Title:          a.Config.Name,
		Link:           base,
		Description:    a.Config.Description,
		Language:       "en",
		ItunesAuthor:   a.Config.Author,
		ItunesSummary:  a.Config.Description,
		ItunesExplicit: "false",
		Items:          items,
	}
	if len(episodes) > 0 {
		ch.LastBuildDate = episodes[0].DatePublished.UTC().Format(time.RFC1123Z)
		if img := AbsoluteURL(base, episodes[0].HeroImageURL); img != "" {
			ch.ItunesImage = &itunesImage{Href: img}
		}
	}
	return rssXML{Version: "2.0", XMLNSItunes: itunesNamespace, Channel: ch}
}

func (a *App) renderRSS(c echo.Context, episodes []Episode) error {
	sizes, err := a.Store.UploadSizes(c.Request().Context())
	if err != nil {
		a.Logger.Warn().Err(err).Msg("feed: upload sizes unavailable")
	}
	return writeXML(c, "application/rss+xml; charset=utf-8", a.buildFeed(episodes, sizes))
}
