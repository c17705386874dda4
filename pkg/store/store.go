package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"podscraper/pkg/domain"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("episode not found")

// Store is durable keyed storage over Episode records, keyed by guid.
//
// Upsert fully overwrites the mutable fields of an existing row while keeping
// the guid stable, sets scraped_at and recomputes word_count on every write.
// Re-encountering a guid therefore always reflects the latest content and
// never accumulates duplicates.
type Store interface {
	// Upsert inserts or overwrites the episode row for ep.GUID as a single
	// atomic keyed write. ScrapedAt and WordCount are set by the store.
	Upsert(ctx context.Context, ep *domain.Episode) error

	// Exists reports whether an episode with the given guid is stored.
	Exists(ctx context.Context, guid string) (bool, error)

	// Query returns episodes scraped at or after since, optionally restricted
	// to the given feed names (nil or empty means all feeds). Results are
	// ordered by published timestamp descending; episodes without a parseable
	// published timestamp sort last, not excluded.
	Query(ctx context.Context, feedNames []string, since time.Time) ([]domain.Episode, error)

	// ListRecent returns metadata for the most recently scraped episodes,
	// newest first, without transcript bodies.
	ListRecent(ctx context.Context, limit int) ([]domain.Episode, error)

	Close() error
}

// Open connects to the store identified by dsn. A postgres:// or mongodb://
// DSN selects the corresponding backend; anything else is treated as a SQLite
// database path, the default deployment.
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		return OpenPostgres(ctx, dsn)
	case strings.HasPrefix(dsn, "mongodb://") || strings.HasPrefix(dsn, "mongodb+srv://"):
		return OpenMongo(ctx, dsn)
	default:
		return OpenSQLite(dsn)
	}
}
