package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenPrefix marks a raw token as belonging to Sovereign Engine, the same
// way the upstream personal-access-token convention tags its own tokens.
const TokenPrefix = "sve_"

// ErrNotFound is returned when a token hash or id has no matching row.
var ErrNotFound = errors.New("token not found")

// Service encapsulates token business logic: issuance, lookup, revocation.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a token Service backed by the given pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), logger: logger}
}

// List returns all tokens owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]Response, error) {
	rows, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	items := make([]Response, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToResponse())
	}
	return items, nil
}

// Create issues a new user-scoped token. The raw value is returned once and
// never stored — only its SHA-256 hash persists.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreateRequest) (CreateResponse, error) {
	raw, hash, prefix := generateToken()

	var expiresAt pgtype.Timestamptz
	if req.ExpiresAt != nil {
		expiresAt = pgtype.Timestamptz{Time: *req.ExpiresAt, Valid: true}
	}

	row, err := s.store.Create(ctx, CreateParams{
		OwnerID:     ownerID,
		TokenHash:   hash,
		KeyPrefix:   prefix,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		ModelID:     req.ModelID,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return CreateResponse{}, fmt.Errorf("creating token: %w", err)
	}

	return CreateResponse{Response: row.ToResponse(), RawToken: raw}, nil
}

// Revoke marks ownerID's token id as revoked.
func (s *Service) Revoke(ctx context.Context, id, ownerID uuid.UUID) error {
	if err := s.store.Revoke(ctx, id, ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// Delete soft-deletes (revokes) ownerID's token id.
func (s *Service) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	if err := s.store.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

// Authenticate looks up a raw bearer token by its hash and verifies it is
// currently usable (not revoked, not expired). On success it schedules a
// best-effort last-used update and returns the row.
func (s *Service) Authenticate(ctx context.Context, raw string) (Row, error) {
	hash := hashToken(raw)

	row, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Row{}, ErrNotFound
		}
		return Row{}, fmt.Errorf("looking up token: %w", err)
	}

	if !row.Usable(time.Now()) {
		return Row{}, ErrNotFound
	}

	go func() {
		if err := s.store.TouchLastUsed(context.Background(), row.ID); err != nil {
			s.logger.Warn("touching token last_used_at", "error", err, "token_id", row.ID)
		}
	}()

	return row, nil
}

// Bootstrap idempotently ensures raw authenticates as an internal, gate-
// bypassing token owned by ownerID. It is meant for operators to seed a
// first way in via ADMIN_BOOTSTRAP_TOKEN before any token exists; it is a
// no-op once a row with that hash already exists.
func (s *Service) Bootstrap(ctx context.Context, ownerID uuid.UUID, raw string) error {
	hash := hashToken(raw)

	if _, err := s.store.FindByHash(ctx, hash); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("checking bootstrap token: %w", err)
	}

	_, err := s.store.Create(ctx, CreateParams{
		OwnerID:     ownerID,
		TokenHash:   hash,
		KeyPrefix:   raw[:len(TokenPrefix)+8],
		Description: "bootstrap token",
		Internal:    true,
	})
	if err != nil {
		return fmt.Errorf("creating bootstrap token: %w", err)
	}
	return nil
}

// generateToken creates a random 128-bit-plus token, its SHA-256 hash, and a
// short display prefix.
func generateToken() (raw, hash, prefix string) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	raw = TokenPrefix + hex.EncodeToString(b)
	hash = hashToken(raw)
	prefix = raw[:len(TokenPrefix)+8]
	return
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
