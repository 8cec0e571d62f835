package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store queries usage_records for aggregation. Writes belong to
// internal/usagelog — this package is read-only.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const selectSummary = `
SELECT
	COALESCE(SUM(input_tokens), 0),
	COALESCE(SUM(output_tokens), 0),
	COUNT(*)
FROM usage_records
WHERE user_id = $1 AND created_at >= $2
`

// Summary sums usage for userID since since.
func (s *Store) Summary(ctx context.Context, userID uuid.UUID, since time.Time) (Summary, error) {
	var sum Summary
	err := s.pool.QueryRow(ctx, selectSummary, userID, since).Scan(
		&sum.InputTokens, &sum.OutputTokens, &sum.Requests)
	return sum, err
}

const selectTimeline = `
SELECT
	date_trunc($1, created_at) AS bucket,
	COALESCE(SUM(input_tokens), 0),
	COALESCE(SUM(output_tokens), 0),
	COUNT(*)
FROM usage_records
WHERE user_id = $2 AND created_at >= $3
GROUP BY bucket
ORDER BY bucket
`

// Timeline buckets usage for userID since since, using unit for
// date_trunc ("minute", "hour", "day").
func (s *Store) Timeline(ctx context.Context, userID uuid.UUID, since time.Time, unit string) ([]TimelinePoint, error) {
	rows, err := s.pool.Query(ctx, selectTimeline, unit, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TimelinePoint
	for rows.Next() {
		var p TimelinePoint
		if err := rows.Scan(&p.Bucket, &p.InputTokens, &p.OutputTokens, &p.Requests); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
