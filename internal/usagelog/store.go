package usagelog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists usage records to a flat table — no tenant schemas, no
// generated query layer, just pgx.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertUsageRecord = `
INSERT INTO usage_records
	(id, user_id, token_id, model_id, category_id, input_tokens, output_tokens, latency_ms, created_at)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// InsertBatch writes entries in a single round trip via a batch. Every
// entry is written, each under a freshly generated row id.
func (s *Store) InsertBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(insertUsageRecord,
			uuid.New(), e.UserID, e.TokenID, e.ModelID, e.CategoryID,
			e.InputTokens, e.OutputTokens, e.LatencyMillis, e.Timestamp)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range entries {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

const selectRecentTokens = `
SELECT COALESCE(SUM(input_tokens + output_tokens), 0)
FROM usage_records
WHERE user_id = $1 AND created_at >= now() - ($2 || ' minutes')::interval
`

// RecentTokens sums input+output tokens recorded for userID within the
// trailing windowMinutes, feeding the fairness priority formula's usage
// penalty term.
func (s *Store) RecentTokens(ctx context.Context, userID uuid.UUID, windowMinutes int) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, selectRecentTokens, userID, windowMinutes).Scan(&total)
	return total, err
}
