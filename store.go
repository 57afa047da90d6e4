package pubstatic

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite build cache: encoded image variants and the
// history of builds.
type Store struct {
	db *sql.DB
}

// BuildRecord is one row of the build history.
type BuildRecord struct {
	ID              string
	Mode            RunMode
	StartedAt       time.Time
	Duration        time.Duration
	PagesWritten    int
	Excluded        int
	FilesCopied     int
	ImagesGenerated int
	Error           string
}

// NewStore opens (or creates) the SQLite database at path, ensures the
// cache directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the dev server read build history while a rebuild writes.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
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

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS image_variants (
    hash TEXT NOT NULL,
    format TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    data BLOB NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (hash, format, width)
);
CREATE TABLE IF NOT EXISTS builds (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    started_at TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    pages INTEGER NOT NULL,
    excluded INTEGER NOT NULL,
    files INTEGER NOT NULL,
    images INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS builds_started_at ON builds (started_at);
`)
	return err
}

// GetImage returns a cached variant. It returns sql.ErrNoRows when the
// variant has not been encoded before.
func (s *Store) GetImage(hash, format string, width int) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM image_variants WHERE hash = ? AND format = ? AND width = ?`, hash, format, width).Scan(&data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PutImage stores an encoded variant.
func (s *Store) PutImage(hash, format string, width, height int, data []byte) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO image_variants (hash, format, width, height, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		hash, format, width, height, data, time.Now().UTC().Format(time.RFC3339))
	return err
}

// PruneImages removes variants created before cutoff and returns how many
// were deleted.
func (s *Store) PruneImages(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM image_variants WHERE created_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RecordBuild appends a build to the history.
func (s *Store) RecordBuild(res *BuildResult, buildErr error) error {
	msg := ""
	if buildErr != nil {
		msg = buildErr.Error()
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO builds (id, mode, started_at, duration_ms, pages, excluded, files, images, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, string(res.Mode), res.StartedAt.UTC().Format(time.RFC3339Nano), res.Duration.Milliseconds(),
		res.PagesWritten, len(res.Excluded), res.FilesCopied, res.ImagesGenerated, msg)
	return err
}

// ListBuilds returns the most recent builds, newest first.
func (s *Store) ListBuilds(limit int) ([]BuildRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT id, mode, started_at, duration_ms, pages, excluded, files, images, error FROM builds ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var builds []BuildRecord
	for rows.Next() {
		var (
			r          BuildRecord
			mode, when string
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &mode, &when, &durationMS, &r.PagesWritten, &r.Excluded, &r.FilesCopied, &r.ImagesGenerated, &r.Error); err != nil {
			return nil, err
		}
		r.Mode = RunMode(mode)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		if t, err := time.Parse(time.RFC3339Nano, when); err == nil {
			r.StartedAt = t
		}
		builds = append(builds, r)
	}
	return builds, rows.Err()
}

// isNoRows reports whether err means a cache miss.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
