package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/narvanalabs/mocktraffic/internal/models"
)

// VisitStore implements store.VisitStore for PostgreSQL.
type VisitStore struct {
	db     queryable
	logger *slog.Logger
}

// Record persists a visit.
func (s *VisitStore) Record(ctx context.Context, visit *models.Visit) error {
	if visit.VisitedAt.IsZero() {
		visit.VisitedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO visits (id, url, user_agent, status, success, resources, error, duration_ms, visited_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	resources := visit.Resources
	if resources == nil {
		resources = []string{}
	}

	_, err := s.db.ExecContext(ctx, query,
		visit.ID,
		visit.URL,
		visit.UserAgent,
		visit.Status,
		visit.Success,
		pq.Array(resources),
		nullString(visit.Error),
		visit.Duration,
		visit.VisitedAt,
	)
	if err != nil {
		return wrapErr("inserting visit", err)
	}
	return nil
}

// ListRecent returns up to limit visits, newest first. A limit of zero or
// less returns every visit.
func (s *VisitStore) ListRecent(ctx context.Context, limit int) ([]*models.Visit, error) {
	query := `
		SELECT id, url, user_agent, status, success, resources, error, duration_ms, visited_at
		FROM visits
		ORDER BY visited_at DESC`
	var args []any
	if limit > 0 {
		query += `
		LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("querying visits", err)
	}
	defer rows.Close()

	var visits []*models.Visit
	for rows.Next() {
		var v models.Visit
		var errText sql.NullString
		if err := rows.Scan(
			&v.ID,
			&v.URL,
			&v.UserAgent,
			&v.Status,
			&v.Success,
			pq.Array(&v.Resources),
			&errText,
			&v.Duration,
			&v.VisitedAt,
		); err != nil {
			return nil, wrapErr("scanning visit", err)
		}
		v.Error = errText.String
		visits = append(visits, &v)
	}
	return visits, rows.Err()
}

// Count returns the number of stored visits.
func (s *VisitStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM visits").Scan(&n); err != nil {
		return 0, wrapErr("counting visits", err)
	}
	return n, nil
}

// PruneBefore deletes visits older than cutoff.
func (s *VisitStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM visits WHERE visited_at < $1", cutoff)
	if err != nil {
		return 0, wrapErr("pruning visits", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr("getting rows affected", err)
	}
	return int(n), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
