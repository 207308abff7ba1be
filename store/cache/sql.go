package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/eventsense/store/db"
)

const sqlTable = "parsed_event_cache"

// SQLTier is the persistent L3 tier on SQLite or PostgreSQL. Rows carry an
// absolute expiry in unix milliseconds; expired rows read as misses and are
// deleted lazily.
type SQLTier struct {
	db      *sql.DB
	dialect db.Dialect
	now     func() time.Time
}

// NewSQLTier creates the cache table when it does not exist.
func NewSQLTier(ctx context.Context, conn *sql.DB, dialect db.Dialect) (*SQLTier, error) {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  cache_key TEXT NOT NULL PRIMARY KEY,
  payload %s NOT NULL,
  expires_at BIGINT NOT NULL
)`, sqlTable, dialect.BlobType)
	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return nil, errors.Wrap(err, "failed to migrate cache table")
	}
	return &SQLTier{db: conn, dialect: dialect, now: time.Now}, nil
}

func (s *SQLTier) Name() string { return s.dialect.Driver }

func (s *SQLTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query := fmt.Sprintf("SELECT payload, expires_at FROM %s WHERE cache_key = %s", sqlTable, s.dialect.Placeholder(1))
	var (
		payload   []byte
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&payload, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to read cache row")
	}
	if s.now().UnixMilli() >= expiresAt {
		if err := s.Delete(ctx, key); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return payload, true, nil
}

// Set upserts the row; concurrent writers of one key resolve last-writer-wins.
func (s *SQLTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (cache_key, payload, expires_at) VALUES (%s)
ON CONFLICT (cache_key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		sqlTable, s.dialect.Placeholders(3))
	expiresAt := s.now().Add(ttl).UnixMilli()
	if _, err := s.db.ExecContext(ctx, stmt, key, value, expiresAt); err != nil {
		return errors.Wrap(err, "failed to write cache row")
	}
	return nil
}

func (s *SQLTier) Delete(ctx context.Context, key string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE cache_key = %s", sqlTable, s.dialect.Placeholder(1))
	if _, err := s.db.ExecContext(ctx, stmt, key); err != nil {
		return errors.Wrap(err, "failed to delete cache row")
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *SQLTier) PurgeExpired(ctx context.Context) (int64, error) {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE expires_at <= %s", sqlTable, s.dialect.Placeholder(1))
	res, err := s.db.ExecContext(ctx, stmt, s.now().UnixMilli())
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge expired cache rows")
	}
	return res.RowsAffected()
}

func (s *SQLTier) Close() error {
	return s.db.Close()
}
