package podengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = sql.ErrNoRows

// ErrDuplicateSlug is returned when an episode slug is already taken.
var ErrDuplicateSlug = errors.New("episode slug already exists")

// Store wraps a SQLite database holding episodes, blogs, admins, settings,
// the coming-soon section and upload metadata.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// busy_timeout and foreign_keys are per connection, so they go in the DSN
	// where every pooled connection picks them up.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// WAL lets readers keep seeing the last committed state while a writer
	// replaces the blog collection. synchronous=NORMAL is safe with WAL.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS admins (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'admin',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blogs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL CHECK (length(trim(title)) > 0),
    excerpt TEXT NOT NULL DEFAULT '',
    date TEXT NOT NULL,
    link TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS episodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    slug TEXT NOT NULL UNIQUE,
    date_published TEXT NOT NULL,
    excerpt TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    duration INTEGER NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    hero_image_url TEXT NOT NULL DEFAULT '',
    thumb_image_url TEXT NOT NULL DEFAULT '',
    audio_url TEXT NOT NULL DEFAULT '',
    spotify_url TEXT NOT NULL DEFAULT '',
    apple_url TEXT NOT NULL DEFAULT '',
    webplayer_url TEXT NOT NULL DEFAULT '',
    buzzsprout_episode_id TEXT NOT NULL DEFAULT '',
    is_hero INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'published')),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_episodes_status_date ON episodes (status, date_published DESC);

CREATE TABLE IF NOT EXISTS coming_soon (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT,
    is_visible INTEGER NOT NULL DEFAULT 1,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS uploads (
    filename TEXT PRIMARY KEY,
    original_name TEXT NOT NULL,
    kind TEXT NOT NULL,
    content_type TEXT NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);
`)
	return err
}

// dbTimeLayout is fixed width so stored timestamps sort as text.
const dbTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func dbTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

// --- blogs ---

const blogColumns = `id, title, excerpt, date, link, tags, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlog(r rowScanner) (Blog, error) {
	var b Blog
	var tags, created, updated string
	if err := r.Scan(&b.ID, &b.Title, &b.Excerpt, &b.Date, &b.Link, &tags, &created, &updated); err != nil {
		return Blog{}, err
	}
	b.Tags = DecodeTags(tags)
	b.CreatedAt = parseDBTime(created)
	b.UpdatedAt = parseDBTime(updated)
	return b, nil
}

// ListBlogs returns up to limit blogs, newest date first.
func (s *Store) ListBlogs(ctx context.Context, limit int) ([]Blog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+blogColumns+` FROM blogs ORDER BY date DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	blogs := []Blog{}
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, err
		}
		blogs = append(blogs, b)
	}
	return blogs, rows.Err()
}

// CountBlogs returns the number of stored blogs.
func (s *Store) CountBlogs(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blogs`).Scan(&n)
	return n, err
}

// ReplaceBlogs swaps the whole blog collection for blogs in one
// transaction. Either every old row is gone and every new row is stored, or
// nothing changes. An empty slice clears the collection. The stored entries
// are returned in the given order with ids and timestamps filled in.
func (s *Store) ReplaceBlogs(ctx context.Context, blogs []Blog) ([]Blog, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blogs`); err != nil {
		return nil, fmt.Errorf("delete blogs: %w", err)
	}

	now := s.now().UTC()
	saved := make([]Blog, 0, len(blogs))
	for i, b := range blogs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO blogs (title, excerpt, date, link, tags, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.Title, b.Excerpt, b.Date, b.Link, EncodeTags(b.Tags), dbTime(now), dbTime(now))
		if err != nil {
			return nil, fmt.Errorf("insert blog %d: %w", i+1, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		b.ID = id
		if b.Tags == nil {
			b.Tags = []string{}
		}
		b.CreatedAt = now
		b.UpdatedAt = now
		saved = append(saved, b)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// --- admins ---

// GetAdminByEmail looks up an admin by (lowercased) email.
func (s *Store) GetAdminByEmail(ctx context.Context, email string) (Admin, error) {
	var a Admin
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, role, created_at FROM admins WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&a.ID, &a.Email, &a.Name, &a.PasswordHash, &a.Role, &created)
	if err != nil {
		return Admin{}, err
	}
	a.CreatedAt = parseDBTime(created)
	return a, nil
}

// CreateAdmin stores a new admin. PasswordHash must already be a bcrypt
// hash. The email is lowercased; Role defaults to "admin".
func (s *Store) CreateAdmin(ctx context.Context, a Admin) (Admin, error) {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	if a.Role == "" {
		a.Role = RoleAdmin
	}
	a.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO admins (email, name, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.Email, a.Name, a.PasswordHash, a.Role, dbTime(a.CreatedAt))
	if err != nil {
		return Admin{}, err
	}
	a.ID, err = res.LastInsertId()
	return a, err
}

// --- settings ---

const settingsKey = "site"

// DefaultSettings returns the settings used before an admin saves any.
func DefaultSettings() Settings {
	return Settings{RadioMode: "stream"}
}

// GetSettings returns the stored settings, or DefaultSettings.
func (s *Store) GetSettings(ctx context.Context) (Settings, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, err
	}
	st := DefaultSettings()
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return st.normalized(), nil
}

// SaveSettings replaces the stored settings.
func (s *Store) SaveSettings(ctx context.Context, st Settings) error {
	b, err := json.Marshal(st.normalized())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingsKey, string(b))
	return err
}

// --- uploads ---

// SaveUpload records metadata for a stored file.
func (s *Store) SaveUpload(ctx context.Context, u Upload) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO uploads (filename, original_name, kind, content_type, size, uploaded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.Filename, u.OriginalName, u.Kind, u.ContentType, u.Size, dbTime(u.UploadedAt))
	return err
}

// ListUploads returns upload metadata, newest first.
func (s *Store) ListUploads(ctx context.Context) ([]Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, original_name, kind, content_type, size, uploaded_at FROM uploads ORDER BY uploaded_at DESC, filename`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []Upload{}
	for rows.Next() {
		var u Upload
		var at string
		if err := rows.Scan(&u.Filename, &u.OriginalName, &u.Kind, &u.ContentType, &u.Size, &at); err != nil {
			return nil, err
		}
		u.UploadedAt = parseDBTime(at)
		u.URL = uploadURL(u.Filename)
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// DeleteUpload removes upload metadata. It returns ErrNotFound when no row
// matches filename.
func (s *Store) DeleteUpload(ctx context.Context, filename string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE filename = ?`, filename)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UploadSizes maps stored audio filenames to their byte size, for feed
// enclosures.
func (s *Store) UploadSizes(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, size FROM uploads WHERE kind = ?`, UploadAudio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sizes := make(map[string]int64)
	for rows.Next() {
		var name string
		var size int64
		if err := rows.Scan(&name, &size); err != nil {
			return nil, err
		}
		sizes[name] = size
	}
	return sizes, rows.Err()
}
