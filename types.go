package podengine

import "time"

// Blog is a curated link to an external article, shown on the home page.
// The collection holds at most MaxBlogs entries and is replaced as a whole.
type Blog struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	Date      string    `json:"date"`
	Link      string    `json:"link"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Episode is a single podcast episode.
type Episode struct {
	ID                  int64     `json:"id"`
	Title               string    `json:"title"`
	Slug                string    `json:"slug"`
	DatePublished       time.Time `json:"date_published"`
	Excerpt             string    `json:"excerpt"`
	Content             string    `json:"content"`
	Duration            int       `json:"duration"` // seconds
	Tags                []string  `json:"tags"`
	HeroImageURL        string    `json:"hero_image_url"`
	ThumbImageURL       string    `json:"thumb_image_url"`
	AudioURL            string    `json:"audio_url"`
	SpotifyURL          string    `json:"spotify_url"`
	AppleURL            string    `json:"apple_url"`
	WebplayerURL        string    `json:"webplayer_url"`
	BuzzsproutEpisodeID string    `json:"buzzsprout_episode_id"`
	IsHero              bool      `json:"is_hero"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Episode statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Published reports whether the episode is visible on the public site.
func (e Episode) Published() bool {
	return e.Status == StatusPublished
}

// ComingSoon is the single "next up" teaser shown on the home page.
type ComingSoon struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	IsVisible   bool      `json:"is_visible"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Settings holds the trailer player and show links.
type Settings struct {
	TrailerAudioURL string `json:"trailer_audio_url"`
	RadioStreamURL  string `json:"radio_stream_url"`
	RadioMode       string `json:"radio_mode"`
	SpotifyShowURL  string `json:"spotify_show_url"`
	AppleShowURL    string `json:"apple_show_url"`
	RSSFeedURL      string `json:"rss_feed_url"`
	SocialTwitter   string `json:"social_twitter"`
	SocialLinkedIn  string `json:"social_linkedin"`
	SocialInstagram string `json:"social_instagram"`
	SocialYouTube   string `json:"social_youtube"`
}

// Admin is an account allowed to use the admin API.
type Admin struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Upload describes a file stored in the upload directory.
type Upload struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	Kind         string    `json:"type"` // "audio" or "image"
	ContentType  string    `json:"content_type"`
	Size         int64     `json:"size"`
	URL          string    `json:"url"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Stats summarizes the catalog for the admin dashboard.
type Stats struct {
	TotalEpisodes  int       `json:"totalEpisodes"`
	Published      int       `json:"published"`
	HeroEpisodes   int       `json:"heroEpisodes"`
	Blogs          int       `json:"blogs"`
	RecentEpisodes []Episode `json:"recentEpisodes"`
}

// HomePage is everything the home template needs.
type HomePage struct {
	Hero       *Episode
	Episodes   []Episode
	Blogs      []Blog
	ComingSoon *ComingSoon
	Settings   Settings
	SiteURL    string
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}
