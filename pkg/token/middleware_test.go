package token

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sovereignengine/gateway/internal/principal"
)

func TestRequireAuth(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects unauthenticated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		RequireAuth(okHandler).ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("passes authenticated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := principal.NewContext(r.Context(), principal.Principal{Kind: principal.API})
		r = r.WithContext(ctx)
		w := httptest.NewRecorder()

		RequireAuth(okHandler).ServeHTTP(w, r)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		p        principal.Principal
		set      bool
		wantCode int
	}{
		{"no principal", principal.Principal{}, false, http.StatusForbidden},
		{"api principal", principal.Principal{Kind: principal.API}, true, http.StatusForbidden},
		{"non-admin session", principal.Principal{Kind: principal.Session, IsAdmin: false}, true, http.StatusForbidden},
		{"admin session", principal.Principal{Kind: principal.Session, IsAdmin: true}, true, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.set {
				r = r.WithContext(principal.NewContext(r.Context(), tt.p))
			}
			w := httptest.NewRecorder()

			RequireAdmin(okHandler).ServeHTTP(w, r)

			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}
