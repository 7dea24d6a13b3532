package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
)

func signAccess(t *testing.T, f *authFixture, id uuid.UUID, email, role string) string {
	t.Helper()
	token, err := f.signer.SignAccess(id, email, role)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestMiddlewareLoadsUserFromStore(t *testing.T) {
	f := newAuthFixture(t, true)
	f.register(t, "Ana", "ana@example.com", "password123")
	user := f.users.byEmail(t, "ana@example.com")

	var seen *UserContext
	h := f.handlers.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = MustGetUser(r.Context())
	}))

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+signAccess(t, f, user.ID, user.Email, user.Role))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusOK || seen == nil {
		t.Fatalf("status = %d, seen = %v", w.Code, seen)
	}
	if seen.ID != user.ID || seen.Role != db.RoleUser {
		t.Errorf("context user = %+v, want %s with role user", seen, user.ID)
	}
}

func TestMiddlewareRejectsDeletedUser(t *testing.T) {
	f := newAuthFixture(t, true)
	f.register(t, "Ana", "ana@example.com", "password123")
	user := f.users.byEmail(t, "ana@example.com")
	token := signAccess(t, f, user.ID, user.Email, user.Role)

	f.users.delete(user.ID)

	reached := false
	h := f.handlers.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if reached {
		t.Error("handler reached with a token for a deleted account")
	}
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestMiddlewareRoleComesFromStore(t *testing.T) {
	f := newAuthFixture(t, true)
	f.register(t, "Ana", "ana@example.com", "password123")
	user := f.users.byEmail(t, "ana@example.com")

	// The token still claims admin, but the store has since demoted the
	// account; the gate must trust the store.
	token := signAccess(t, f, user.ID, user.Email, db.RoleAdmin)
	f.users.setRole(user.ID, db.RoleUser)

	reached := false
	h := f.handlers.Middleware(RequireRole(db.RoleMentor)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	})))
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if reached {
		t.Error("handler reached despite demoted role")
	}
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestBearerTokenErrors(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"absent header", ""},
		{"no bearer prefix", "sometoken"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			_, err := bearerToken(r)
			appErr, ok := err.(*apperrors.AppError)
			if !ok {
				t.Fatalf("bearerToken() error = %v, want AppError", err)
			}
			// Absent and malformed headers are the same failure.
			if appErr.Code != apperrors.CodeMissingToken {
				t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeMissingToken)
			}
			if appErr.HTTPStatus != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", appErr.HTTPStatus)
			}
		})
	}

	t.Run("valid bearer", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "bearer abc123")
		token, err := bearerToken(r)
		if err != nil || token != "abc123" {
			t.Errorf("bearerToken() = %q, %v; want abc123, nil", token, err)
		}
	})
}
