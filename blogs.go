package podengine

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

const (
	// MaxBlogs is the size of the curated blog collection.
	MaxBlogs = 3

	maxBlogTitleLen   = 500
	maxBlogExcerptLen = 2000
	maxTagLen         = 50
	maxTagsPerEntry   = 10

	defaultBlogLimit = 3
	maxBlogLimit     = 100
)

// ErrTooManyBlogs is returned when a replacement batch exceeds MaxBlogs.
var ErrTooManyBlogs = errors.New("too many blogs")

// ValidationError collects every problem found in a submission.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Details, "; ")
}

// BlogCandidate is one submitted blog entry before validation. Every field
// is optional; decode problems (a number where a string belongs) are kept
// and reported alongside validation failures.
type BlogCandidate struct {
	Title   *string
	Excerpt *string
	Date    *string
	Link    *string
	Tags    []string

	decodeErrs []string
}

// ParseBlogCandidate decodes one raw JSON entry of a replacement batch.
func ParseBlogCandidate(raw json.RawMessage) BlogCandidate {
	var b BlogCandidate
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		b.decodeErrs = append(b.decodeErrs, "entry - Expected object")
		return b
	}
	for _, f := range []struct {
		name string
		dst  **string
	}{
		{"title", &b.Title},
		{"excerpt", &b.Excerpt},
		{"date", &b.Date},
		{"link", &b.Link},
	} {
		v, ok := fields[f.name]
		if !ok || isJSONNull(v) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			b.decodeErrs = append(b.decodeErrs, f.name+" - Expected string")
			continue
		}
		*f.dst = &s
	}
	if v, ok := fields["tags"]; ok && !isJSONNull(v) {
		var items []json.RawMessage
		if err := json.Unmarshal(v, &items); err != nil {
			b.decodeErrs = append(b.decodeErrs, "tags - Expected array")
		} else {
			for i, item := range items {
				var s string
				if err := json.Unmarshal(item, &s); err != nil {
					b.decodeErrs = append(b.decodeErrs, fmt.Sprintf("tags.%d - Expected string", i))
					continue
				}
				b.Tags = append(b.Tags, s)
			}
		}
	}
	return b
}

func isJSONNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// IsEmpty reports whether the entry carries nothing worth saving: no title,
// date or link and no tags. Excerpt alone does not count.
func (b BlogCandidate) IsEmpty() bool {
	return len(b.decodeErrs) == 0 &&
		blank(b.Title) && blank(b.Date) && blank(b.Link) && len(b.Tags) == 0
}

type blogFields struct {
	Title   string   `json:"title" validate:"required,max=500"`
	Excerpt string   `json:"excerpt" validate:"max=2000"`
	Date    string   `json:"date" validate:"required,isodate"`
	Link    string   `json:"link" validate:"omitempty,url"`
	Tags    []string `json:"tags" validate:"max=10,dive,max=50"`
}

var blogFieldMessages = map[string]string{
	"title.required":   "Title is required",
	"title.max":        fmt.Sprintf("Title must be at most %d characters", maxBlogTitleLen),
	"excerpt.max":      fmt.Sprintf("Excerpt must be at most %d characters", maxBlogExcerptLen),
	"date.required":    "Date is required",
	"date.isodate":     "Invalid date. Use YYYY-MM-DD or an ISO 8601 date-time",
	"link.url":         "Invalid url",
	"tags.max":         fmt.Sprintf("At most %d tags allowed", maxTagsPerEntry),
	"tags.element.max": fmt.Sprintf("Tag must be at most %d characters", maxTagLen),
}

// PrepareBlogs turns a replacement batch into the entries to store. Empty
// entries are dropped; an all-empty batch yields an empty, non-nil slice
// meaning "clear the collection". Problems are returned together as a
// *ValidationError, each prefixed with the entry's 1-based position in the
// submitted batch. With production set, links to loopback and private
// hosts are rejected.
func PrepareBlogs(candidates []BlogCandidate, production bool) ([]Blog, error) {
	if len(candidates) > MaxBlogs {
		return nil, ErrTooManyBlogs
	}

	blogs := make([]Blog, 0, len(candidates))
	var details []string
	for i, cand := range candidates {
		if cand.IsEmpty() {
			continue
		}
		prefix := fmt.Sprintf("Blog %d: ", i+1)
		for _, msg := range cand.decodeErrs {
			details = append(details, prefix+msg)
		}
		if len(cand.decodeErrs) > 0 {
			continue
		}

		fields := blogFields{
			Title:   trimmed(cand.Title),
			Excerpt: trimmed(cand.Excerpt),
			Date:    trimmed(cand.Date),
			Link:    trimmed(cand.Link),
			Tags:    NormalizeTags(cand.Tags),
		}
		if errs := validateStruct(fields, blogFieldMessages); len(errs) > 0 {
			for _, msg := range errs {
				details = append(details, prefix+msg)
			}
			continue
		}
		if production && fields.Link != "" && !IsExternalURL(fields.Link) {
			details = append(details, prefix+"Link cannot point to internal/localhost addresses")
			continue
		}

		date, _ := ParseISODate(fields.Date)
		blogs = append(blogs, Blog{
			Title:   fields.Title,
			Excerpt: fields.Excerpt,
			Date:    FormatISODate(date),
			Link:    fields.Link,
			Tags:    fields.Tags,
		})
	}
	if len(details) > 0 {
		return nil, &ValidationError{Details: details}
	}
	return blogs, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// NormalizeTags trims tags, drops blank ones and removes case-insensitive
// duplicates, keeping the first spelling and the original order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// DecodeTags reads tags however they were stored: a string slice, a
// generic slice, or JSON text (string or bytes). Anything else, or JSON
// that is not an array, yields an empty slice. Non-string and blank
// entries are dropped.
func DecodeTags(v any) []string {
	switch t := v.(type) {
	case []string:
		return keepTags(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return decodeTagJSON([]byte(t))
	case []byte:
		return decodeTagJSON(t)
	default:
		return []string{}
	}
}

func decodeTagJSON(b []byte) []string {
	var items []any
	if err := json.Unmarshal(b, &items); err != nil {
		return []string{}
	}
	return DecodeTags(items)
}

func keepTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, s := range tags {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// EncodeTags is the storage form read back by DecodeTags.
func EncodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseISODate accepts a calendar date (YYYY-MM-DD) or an ISO 8601
// date-time. Values without an offset are read as UTC.
func ParseISODate(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatISODate renders t as YYYY-MM-DDTHH:MM:SS.sssZ in UTC.
func FormatISODate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// IsExternalURL reports whether the absolute URL raw points somewhere other
// than the local machine or a private 10/8 or 192.168/16 network. URLs
// without a host (mailto:, tel:) are external.
func IsExternalURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return true
	}
	if host == "localhost" {
		return false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsUnspecified() {
		return false
	}
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return false
		}
	}
	return true
}

var blockedNets = []*net.IPNet{
	mustCIDR("10.0.0.0/8"),
	mustCIDR("192.168.0.0/16"),
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

type blogsResponse struct {
	Blogs []Blog `json:"blogs"`
}

func (a *App) handleListBlogs(c echo.Context) error {
	limit := defaultBlogLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apiError(c, http.StatusBadRequest, "Invalid limit parameter. Must be a positive integer.")
		}
		limit = min(n, maxBlogLimit)
	}
	blogs, err := a.Store.ListBlogs(c.Request().Context(), limit)
	if err != nil {
		return a.internalError(c, "Failed to fetch blogs", err)
	}
	return c.JSON(http.StatusOK, blogsResponse{Blogs: blogs})
}

func (a *App) handleReplaceBlogs(c echo.Context) error {
	var body json.RawMessage
	if err := decodeJSONBody(c, &body); err != nil {
		return apiError(c, http.StatusBadRequest, "Invalid JSON in request body")
	}
	var envelope map[string]json.RawMessage
	if body[0] != '{' || json.Unmarshal(body, &envelope) != nil {
		return apiError(c, http.StatusBadRequest, `Invalid request format. Expected "blogs" property.`)
	}
	rawBlogs, ok := envelope["blogs"]
	if !ok {
		return apiError(c, http.StatusBadRequest, `Invalid request format. Expected "blogs" property.`)
	}
	var entries []json.RawMessage
	if isJSONNull(rawBlogs) || json.Unmarshal(rawBlogs, &entries) != nil {
		return apiError(c, http.StatusBadRequest, `Invalid request format. "blogs" must be an array.`)
	}

	candidates := make([]BlogCandidate, len(entries))
	for i, raw := range entries {
		candidates[i] = ParseBlogCandidate(raw)
	}

	blogs, err := PrepareBlogs(candidates, a.Config.IsProduction())
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrTooManyBlogs):
		return apiError(c, http.StatusBadRequest, fmt.Sprintf("Maximum %d blogs allowed", MaxBlogs))
	case errors.As(err, &verr):
		a.metrics.blogReplacements.WithLabelValues("invalid").Inc()
		return apiErrorDetails(c, http.StatusBadRequest, "Validation failed", verr.Details)
	case err != nil:
		return err
	}

	saved, err := a.Store.ReplaceBlogs(c.Request().Context(), blogs)
	if err != nil {
		a.metrics.blogReplacements.WithLabelValues("error").Inc()
		return a.internalError(c, "Failed to create blogs", err)
	}
	a.Cache.Invalidate()
	a.metrics.blogReplacements.WithLabelValues("ok").Inc()

	if len(saved) == 0 {
		return c.JSON(http.StatusOK, blogsResponse{Blogs: []Blog{}})
	}
	return c.JSON(http.StatusCreated, blogsResponse{Blogs: saved})
}
