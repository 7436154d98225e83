package postgres

import (
	"context"
	"log/slog"

	"github.com/narvanalabs/mocktraffic/internal/store"
)

// TargetStore implements store.TargetStore for PostgreSQL.
type TargetStore struct {
	db     queryable
	logger *slog.Logger
}

// List returns all target URLs in insertion order.
func (s *TargetStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT url FROM targets ORDER BY id ASC")
	if err != nil {
		return nil, wrapErr("querying targets", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, wrapErr("scanning target", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Add appends a URL.
func (s *TargetStore) Add(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO targets (url) VALUES ($1)", url)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicate
		}
		return wrapErr("inserting target", err)
	}
	s.logger.Debug("target added", "url", url)
	return nil
}

// Exists reports whether the exact URL is stored.
func (s *TargetStore) Exists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM targets WHERE url = $1)", url).Scan(&exists)
	if err != nil {
		return false, wrapErr("checking target", err)
	}
	return exists, nil
}

// Clear removes every target URL.
func (s *TargetStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM targets"); err != nil {
		return wrapErr("clearing targets", err)
	}
	return nil
}
