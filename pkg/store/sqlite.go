package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"podscraper/pkg/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS episodes (
    guid TEXT PRIMARY KEY,
    feed_name TEXT NOT NULL,
    feed_url TEXT NOT NULL,
    title TEXT NOT NULL,
    published TEXT,
    published_ts INTEGER,
    audio_url TEXT,
    audio_path TEXT,
    transcript TEXT NOT NULL,
    transcript_source TEXT NOT NULL,
    scraped_at TEXT NOT NULL,
    word_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_episodes_feed ON episodes(feed_name);
CREATE INDEX IF NOT EXISTS idx_episodes_scraped ON episodes(scraped_at);
`

// SQLiteStore persists episodes in a single-file SQLite database. This is the
// default backend: durable, serverless, and safe for the pipeline's
// single-writer-per-run reality.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the SQLite database at path and ensures the
// schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert inserts or overwrites the episode row for ep.GUID in one statement,
// so a failure mid-write can never leave a duplicate or a half-written row.
func (s *SQLiteStore) Upsert(ctx context.Context, ep *domain.Episode) error {
	ep.ScrapedAt = time.Now().UTC().Truncate(time.Second)
	ep.WordCount = domain.CountWords(ep.Transcript)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO episodes (guid, feed_name, feed_url, title, published, published_ts,
                               audio_url, audio_path, transcript, transcript_source,
                               scraped_at, word_count)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(guid) DO UPDATE SET
             title = excluded.title,
             published = excluded.published,
             published_ts = excluded.published_ts,
             audio_url = excluded.audio_url,
             audio_path = excluded.audio_path,
             transcript = excluded.transcript,
             transcript_source = excluded.transcript_source,
             scraped_at = excluded.scraped_at,
             word_count = excluded.word_count`,
		ep.GUID, ep.FeedName, ep.FeedURL, ep.Title, nullableString(ep.Published),
		publishedTS(ep.PublishedAt), nullableString(ep.AudioURL), nullableString(ep.AudioPath),
		ep.Transcript, string(ep.Source), formatTime(ep.ScrapedAt), ep.WordCount,
	)
	if err != nil {
		return fmt.Errorf("upsert episode %s: %w", ep.GUID, err)
	}
	return nil
}

// Exists reports whether an episode with the given guid is stored.
func (s *SQLiteStore) Exists(ctx context.Context, guid string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM episodes WHERE guid = ?`, guid).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check episode %s: %w", guid, err)
	}
	return true, nil
}

// Query returns episodes scraped within the window, ordered by published
// timestamp descending with unparseable dates last.
func (s *SQLiteStore) Query(ctx context.Context, feedNames []string, since time.Time) ([]domain.Episode, error) {
	query := `SELECT guid, feed_name, feed_url, title, published, published_ts,
                     audio_url, audio_path, transcript, transcript_source, scraped_at, word_count
              FROM episodes WHERE scraped_at >= ?`
	args := []any{formatTime(since)}

	if len(feedNames) > 0 {
		placeholders := strings.Repeat("?,", len(feedNames))
		query += fmt.Sprintf(" AND feed_name IN (%s)", placeholders[:len(placeholders)-1])
		for _, name := range feedNames {
			args = append(args, name)
		}
	}

	query += " ORDER BY published_ts IS NULL, published_ts DESC, scraped_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	return scanEpisodes(rows, true)
}

// ListRecent returns metadata for the most recently scraped episodes without
// transcript bodies.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]domain.Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guid, feed_name, feed_url, title, published, published_ts,
                audio_url, audio_path, '', transcript_source, scraped_at, word_count
         FROM episodes
         ORDER BY scraped_at DESC
         LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	return scanEpisodes(rows, false)
}

func scanEpisodes(rows *sql.Rows, withTranscript bool) ([]domain.Episode, error) {
	episodes := make([]domain.Episode, 0)
	for rows.Next() {
		var (
			ep          domain.Episode
			published   sql.NullString
			publishedTS sql.NullInt64
			audioURL    sql.NullString
			audioPath   sql.NullString
			source      string
			scrapedAt   string
		)
		if err := rows.Scan(&ep.GUID, &ep.FeedName, &ep.FeedURL, &ep.Title,
			&published, &publishedTS, &audioURL, &audioPath,
			&ep.Transcript, &source, &scrapedAt, &ep.WordCount); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}

		ep.Published = published.String
		ep.AudioURL = audioURL.String
		ep.AudioPath = audioPath.String
		ep.Source = domain.TranscriptSource(source)
		if publishedTS.Valid {
			t := time.Unix(publishedTS.Int64, 0).UTC()
			ep.PublishedAt = &t
		}
		if parsed, err := time.Parse(time.RFC3339, scrapedAt); err == nil {
			ep.ScrapedAt = parsed
		}
		if !withTranscript {
			ep.Transcript = ""
		}

		episodes = append(episodes, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return episodes, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func publishedTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// formatTime renders a timestamp as fixed-width RFC 3339 UTC, so string
// comparison in SQL matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
