// Package principal represents the authenticated caller of a request as an
// explicit tagged variant rather than a duck-typed identity struct: a
// Principal is exactly one of Session, API, Internal, or Meta, and callers
// branch on Kind instead of probing optional fields.
package principal

import (
	"context"

	"github.com/google/uuid"
)

// Kind identifies which variant a Principal holds.
type Kind int

const (
	// Session is a human operator authenticated through the dashboard.
	Session Kind = iota
	// API is a caller presenting a user-issued token, optionally scoped
	// to a model category.
	API
	// Internal is a caller presenting a token flagged internal (including
	// the startup bootstrap token); it bypasses reservation-gated admission.
	Internal
	// Meta is a caller presenting a token flagged meta; UserID carries the
	// token owner, to whom its usage is attributed.
	Meta
)

// Principal is a closed tagged union over the four ways a request can be
// authenticated. Only the fields matching Kind are meaningful.
type Principal struct {
	Kind Kind

	// UserID is the session user or the token owner, set for every kind;
	// IsAdmin is meaningful for Session only.
	UserID  uuid.UUID
	IsAdmin bool

	// API fields.
	TokenID    uuid.UUID
	CategoryID *uuid.UUID // nil when the token is unscoped
	ModelID    *uuid.UUID // nil unless the token is bound to one specific model
}

// IsHolder reports whether this principal is the given reservation's owner.
func (p Principal) IsHolder(ownerID uuid.UUID) bool {
	switch p.Kind {
	case Session, API:
		return p.UserID == ownerID
	default:
		return false
	}
}

// BypassesReservationGate reports whether admission checks against an
// active reservation should be skipped for this principal.
func (p Principal) BypassesReservationGate() bool {
	return p.Kind == Internal
}

type contextKey struct{}

// NewContext returns a context carrying p.
func NewContext(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext extracts the Principal stored by NewContext, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}
