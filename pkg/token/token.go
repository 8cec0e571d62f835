package token

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// CreateRequest is the JSON body for POST /api/user/tokens.
type CreateRequest struct {
	Description string     `json:"description" validate:"required"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	ModelID     *uuid.UUID `json:"model_id,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Response is the JSON response for a single token (never includes the raw secret).
type Response struct {
	ID          uuid.UUID  `json:"id"`
	KeyPrefix   string     `json:"key_prefix"`
	Description string     `json:"description"`
	CategoryID  *uuid.UUID `json:"category_id,omitempty"`
	ModelID     *uuid.UUID `json:"model_id,omitempty"`
	Internal    bool       `json:"internal"`
	Meta        bool       `json:"meta"`
	Revoked     bool       `json:"revoked"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateResponse includes the raw token (shown once, at creation only).
type CreateResponse struct {
	Response
	RawToken string `json:"raw_token"`
}

// Row represents a row of the tokens table.
type Row struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	TokenHash   string
	KeyPrefix   string
	Description string
	CategoryID  *uuid.UUID
	ModelID     *uuid.UUID
	Internal    bool
	Meta        bool
	Revoked     bool
	LastUsedAt  pgtype.Timestamptz
	ExpiresAt   pgtype.Timestamptz
	CreatedAt   time.Time
}

// ToResponse converts a Row to its public DTO.
func (r *Row) ToResponse() Response {
	resp := Response{
		ID:          r.ID,
		KeyPrefix:   r.KeyPrefix,
		Description: r.Description,
		CategoryID:  r.CategoryID,
		ModelID:     r.ModelID,
		Internal:    r.Internal,
		Meta:        r.Meta,
		Revoked:     r.Revoked,
		CreatedAt:   r.CreatedAt,
	}
	if r.LastUsedAt.Valid {
		t := r.LastUsedAt.Time
		resp.LastUsedAt = &t
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Time
		resp.ExpiresAt = &t
	}
	return resp
}

// Expired reports whether the token's expiry clock has passed now.
func (r *Row) Expired(now time.Time) bool {
	return r.ExpiresAt.Valid && r.ExpiresAt.Time.Before(now)
}

// Usable reports whether the token may currently authenticate a request.
func (r *Row) Usable(now time.Time) bool {
	return !r.Revoked && !r.Expired(now)
}
