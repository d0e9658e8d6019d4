package news

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists custom headlines so they survive a restart.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (or creates) the headline database at dbPath.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating headline db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening headline db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS custom_headlines (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			id           TEXT NOT NULL UNIQUE,
			title        TEXT NOT NULL,
			source       TEXT NOT NULL,
			url          TEXT NOT NULL DEFAULT '',
			image_url    TEXT NOT NULL DEFAULT '',
			category     TEXT NOT NULL,
			priority     INTEGER NOT NULL,
			published_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing headline schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Add(ctx context.Context, input HeadlineInput) (Headline, error) {
	headline, err := NewCustomHeadline(input, s.now())
	if err != nil {
		return Headline{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO custom_headlines (id, title, source, url, image_url, category, priority, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, headline.ID, headline.Title, headline.Source, headline.URL, headline.ImageURL,
		headline.Category, headline.Priority, headline.PublishedAt.UnixNano())
	if err != nil {
		return Headline{}, fmt.Errorf("inserting headline %s: %w", headline.ID, err)
	}
	return headline, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM custom_headlines WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting headline %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM custom_headlines`); err != nil {
		return fmt.Errorf("clearing headlines: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Headline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, source, url, image_url, category, priority, published_at
		FROM custom_headlines
		ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying headlines: %w", err)
	}
	defer rows.Close()

	out := []Headline{}
	for rows.Next() {
		var (
			h         Headline
			published int64
		)
		if err := rows.Scan(&h.ID, &h.Title, &h.Source, &h.URL, &h.ImageURL, &h.Category, &h.Priority, &published); err != nil {
			return nil, fmt.Errorf("scanning headline: %w", err)
		}
		h.PublishedAt = time.Unix(0, published).UTC()
		h.IsCustom = true
		out = append(out, h)
	}
	return out, rows.Err()
}
