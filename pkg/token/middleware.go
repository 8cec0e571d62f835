package token

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/sovereignengine/gateway/internal/httpserver"
	"github.com/sovereignengine/gateway/internal/principal"
)

func parseUUID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// Authenticator resolves bearer tokens and session cookies into a Principal.
// It is the single authentication entry point mounted on the API router.
type Authenticator struct {
	tokens *Service
	// sessions resolves a session cookie/header to a user id and admin
	// flag. Left nil in deployments with no dashboard session layer, in
	// which case session authentication is unavailable and only bearer
	// tokens authenticate.
	sessions SessionResolver
}

// SessionResolver resolves a dashboard session from a request. It is an
// external collaborator (spec §1 scope: "the browser dashboard" is out of
// scope) — Sovereign Engine only needs to consume the resolved identity.
type SessionResolver interface {
	Resolve(r *http.Request) (userID string, isAdmin bool, ok bool)
}

// NewAuthenticator creates an Authenticator. sessions may be nil.
func NewAuthenticator(tokens *Service, sessions SessionResolver) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions}
}

// Middleware authenticates each request via bearer token first, then
// session cookie, storing the resulting Principal in the request context.
// Unauthenticated requests proceed with no Principal in context; handlers
// that require one check with principal.FromContext and reject themselves,
// matching the teacher's RequireAuth-as-a-separate-layer convention.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

			row, err := a.tokens.Authenticate(r.Context(), raw)
			if err == nil {
				p := principal.Principal{
					Kind:       principal.API,
					UserID:     row.OwnerID,
					TokenID:    row.ID,
					CategoryID: row.CategoryID,
					ModelID:    row.ModelID,
				}
				if row.Internal {
					p.Kind = principal.Internal
				} else if row.Meta {
					p.Kind = principal.Meta
				}
				next.ServeHTTP(w, r.WithContext(principal.NewContext(r.Context(), p)))
				return
			}
		}

		if a.sessions != nil {
			if userID, isAdmin, ok := a.sessions.Resolve(r); ok {
				p := principal.Principal{Kind: principal.Session, IsAdmin: isAdmin}
				if id, perr := parseUUID(userID); perr == nil {
					p.UserID = id
				}
				next.ServeHTTP(w, r.WithContext(principal.NewContext(r.Context(), p)))
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests carrying no authenticated Principal.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := principal.FromContext(r.Context()); !ok {
			httpserver.RespondError(w, http.StatusUnauthorized, "auth_error", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose Principal is not an admin session.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal.FromContext(r.Context())
		if !ok || p.Kind != principal.Session || !p.IsAdmin {
			httpserver.RespondError(w, http.StatusForbidden, "forbidden", "admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
