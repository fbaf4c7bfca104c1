package podengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const episodeColumns = `id, title, slug, date_published, excerpt, content, duration, tags,
	hero_image_url, thumb_image_url, audio_url, spotify_url, apple_url, webplayer_url,
	buzzsprout_episode_id, is_hero, status, created_at, updated_at`

func scanEpisode(r rowScanner) (Episode, error) {
	var e Episode
	var published, tags, created, updated string
	var hero int
	err := r.Scan(&e.ID, &e.Title, &e.Slug, &published, &e.Excerpt, &e.Content, &e.Duration, &tags,
		&e.HeroImageURL, &e.ThumbImageURL, &e.AudioURL, &e.SpotifyURL, &e.AppleURL, &e.WebplayerURL,
		&e.BuzzsproutEpisodeID, &hero, &e.Status, &created, &updated)
	if err != nil {
		return Episode{}, err
	}
	e.DatePublished = parseDBTime(published)
	e.Tags = DecodeTags(tags)
	e.IsHero = hero == 1
	e.CreatedAt = parseDBTime(created)
	e.UpdatedAt = parseDBTime(updated)
	return e, nil
}

// EpisodeQuery selects a page of episodes.
type EpisodeQuery struct {
	Page   int    // 1-based
	Limit  int    // page size
	Status string // "" matches every status
	Tag    string // case-insensitive exact tag match, "" for all
}

func (q EpisodeQuery) where() (string, []any) {
	var conds []string
	var args []any
	if q.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, q.Status)
	}
	if tag := strings.TrimSpace(q.Tag); tag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(episodes.tags) WHERE lower(json_each.value) = lower(?))")
		args = append(args, tag)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListEpisodes returns one page of episodes, newest first, with the total
// number of matching rows.
func (s *Store) ListEpisodes(ctx context.Context, q EpisodeQuery) ([]Episode, Pagination, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	where, args := q.where()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes`+where, args...).Scan(&total); err != nil {
		return nil, Pagination{}, err
	}

	pageArgs := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes`+where+` ORDER BY date_published DESC, id DESC LIMIT ? OFFSET ?`,
		pageArgs...)
	if err != nil {
		return nil, Pagination{}, err
	}
	defer rows.Close()

	episodes := []Episode{}
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, Pagination{}, err
		}
		episodes = append(episodes, e)
	}
	if err := rows.Err(); err != nil {
		return nil, Pagination{}, err
	}
	return episodes, Pagination{
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      total,
		TotalPages: (total + q.Limit - 1) / q.Limit,
	}, nil
}

// ListPublishedEpisodes returns every published episode, newest first.
func (s *Store) ListPublishedEpisodes(ctx context.Context) ([]Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE status = 'published' ORDER BY date_published DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	episodes := []Episode{}
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}
	return episodes, rows.Err()
}

// GetEpisode returns an episode by id regardless of status.
func (s *Store) GetEpisode(ctx context.Context, id int64) (Episode, error) {
	return scanEpisode(s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id))
}

// GetPublishedEpisode returns a published episode by slug.
func (s *Store) GetPublishedEpisode(ctx context.Context, slug string) (Episode, error) {
	return scanEpisode(s.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE slug = ? AND status = 'published'`, slug))
}

func clearHero(ctx context.Context, tx *sql.Tx, except int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE episodes SET is_hero = 0 WHERE is_hero = 1 AND id != ?`, except)
	return err
}

// CreateEpisode stores a new episode. When it is marked as hero, every
// other episode loses the flag in the same transaction.
func (s *Store) CreateEpisode(ctx context.Context, e Episode) (Episode, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Episode{}, err
	}
	defer tx.Rollback()

	if e.IsHero {
		if err := clearHero(ctx, tx, 0); err != nil {
			return Episode{}, fmt.Errorf("clear hero: %w", err)
		}
	}
	now := s.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	res, err := tx.ExecContext(ctx, `INSERT INTO episodes (
		title, slug, date_published, excerpt, content, duration, tags,
		hero_image_url, thumb_image_url, audio_url, spotify_url, apple_url, webplayer_url,
		buzzsprout_episode_id, is_hero, status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Title, e.Slug, dbTime(e.DatePublished), e.Excerpt, e.Content, e.Duration, EncodeTags(e.Tags),
		e.HeroImageURL, e.ThumbImageURL, e.AudioURL, e.SpotifyURL, e.AppleURL, e.WebplayerURL,
		e.BuzzsproutEpisodeID, boolInt(e.IsHero), e.Status, dbTime(now), dbTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return Episode{}, ErrDuplicateSlug
		}
		return Episode{}, err
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Episode{}, err
	}
	if err := tx.Commit(); err != nil {
		return Episode{}, err
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	return e, nil
}

// UpdateEpisode overwrites the stored episode with id e.ID. Hero
// exclusivity is enforced as in CreateEpisode.
func (s *Store) UpdateEpisode(ctx context.Context, e Episode) (Episode, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Episode{}, err
	}
	defer tx.Rollback()

	if e.IsHero {
		if err := clearHero(ctx, tx, e.ID); err != nil {
			return Episode{}, fmt.Errorf("clear hero: %w", err)
		}
	}
	e.UpdatedAt = s.now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE episodes SET
		title = ?, slug = ?, date_published = ?, excerpt = ?, content = ?, duration = ?, tags = ?,
		hero_image_url = ?, thumb_image_url = ?, audio_url = ?, spotify_url = ?, apple_url = ?, webplayer_url = ?,
		buzzsprout_episode_id = ?, is_hero = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		e.Title, e.Slug, dbTime(e.DatePublished), e.Excerpt, e.Content, e.Duration, EncodeTags(e.Tags),
		e.HeroImageURL, e.ThumbImageURL, e.AudioURL, e.SpotifyURL, e.AppleURL, e.WebplayerURL,
		e.BuzzsproutEpisodeID, boolInt(e.IsHero), e.Status, dbTime(e.UpdatedAt), e.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Episode{}, ErrDuplicateSlug
		}
		return Episode{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Episode{}, ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return Episode{}, err
	}
	return e, nil
}

// DeleteEpisode removes an episode by id.
func (s *Store) DeleteEpisode(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts episodes and blogs and returns the five most recent episodes.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'published' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(is_hero), 0)
		FROM episodes`).Scan(&st.TotalEpisodes, &st.Published, &st.HeroEpisodes)
	if err != nil {
		return Stats{}, err
	}
	if st.Blogs, err = s.CountBlogs(ctx); err != nil {
		return Stats{}, err
	}
	recent, _, err := s.ListEpisodes(ctx, EpisodeQuery{Page: 1, Limit: 5})
	if err != nil {
		return Stats{}, err
	}
	st.RecentEpisodes = recent
	return st, nil
}

// --- coming soon ---

func scanComingSoon(r rowScanner) (ComingSoon, error) {
	var cs ComingSoon
	var desc sql.NullString
	var visible int
	var updated string
	if err := r.Scan(&cs.ID, &cs.Title, &desc, &visible, &updated); err != nil {
		return ComingSoon{}, err
	}
	if desc.Valid {
		cs.Description = &desc.String
	}
	cs.IsVisible = visible == 1
	cs.UpdatedAt = parseDBTime(updated)
	return cs, nil
}

// GetComingSoon returns the coming-soon section. With visibleOnly set, a
// hidden section is reported as ErrNotFound.
func (s *Store) GetComingSoon(ctx context.Context, visibleOnly bool) (ComingSoon, error) {
	q := `SELECT id, title, description, is_visible, updated_at FROM coming_soon`
	if visibleOnly {
		q += ` WHERE is_visible = 1`
	}
	q += ` ORDER BY updated_at DESC, id DESC LIMIT 1`
	return scanComingSoon(s.db.QueryRowContext(ctx, q))
}

// SaveComingSoon updates the existing section or creates it.
func (s *Store) SaveComingSoon(ctx context.Context, cs ComingSoon) (ComingSoon, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ComingSoon{}, err
	}
	defer tx.Rollback()

	cs.UpdatedAt = s.now().UTC()
	var desc any
	if cs.Description != nil {
		desc = *cs.Description
	}

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM coming_soon ORDER BY updated_at DESC, id DESC LIMIT 1`).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO coming_soon (title, description, is_visible, updated_at) VALUES (?, ?, ?, ?)`,
			cs.Title, desc, boolInt(cs.IsVisible), dbTime(cs.UpdatedAt))
		if err != nil {
			return ComingSoon{}, err
		}
		if cs.ID, err = res.LastInsertId(); err != nil {
			return ComingSoon{}, err
		}
	case err != nil:
		return ComingSoon{}, err
	default:
		cs.ID = id
		if _, err := tx.ExecContext(ctx,
			`UPDATE coming_soon SET title = ?, description = ?, is_visible = ?, updated_at = ? WHERE id = ?`,
			cs.Title, desc, boolInt(cs.IsVisible), dbTime(cs.UpdatedAt), id); err != nil {
			return ComingSoon{}, err
		}
	}
	return cs, tx.Commit()
}

// DeleteComingSoon removes the section. Deleting nothing is not an error.
func (s *Store) DeleteComingSoon(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM coming_soon`)
	return err
}

func (s *Store) setClock(now func() time.Time) {
	s.now = now
}
