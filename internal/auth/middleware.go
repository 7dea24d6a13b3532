package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
)

type contextKey string

const userContextKey contextKey = "authUser"

// UserContext is what authenticated handlers see about the caller.
type UserContext struct {
	ID    uuid.UUID
	Email string
	Role  string
}

// GetUser returns the authenticated caller, or false when the request did
// not pass through Middleware.
func GetUser(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustGetUser is for handlers that are only reachable behind Middleware.
func MustGetUser(ctx context.Context) *UserContext {
	user, ok := GetUser(ctx)
	if !ok {
		panic("auth: no user in context; handler not wrapped with Middleware")
	}
	return user
}

// Middleware authenticates the request via its Authorization bearer token,
// loads the account it names, and installs the caller's identity into the
// request context. The role comes from the store, so a demotion takes effect
// on the next request rather than at token expiry, and a token for a deleted
// account is rejected outright.
func (h *Handlers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := apperrors.GetRequestID(r.Context())

		token, err := bearerToken(r)
		if err != nil {
			apperrors.WriteError(w, requestID, err)
			return
		}

		user, err := h.service.AuthenticateAccessToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrInvalidSession) {
				apperrors.WriteError(w, requestID, apperrors.InvalidToken("Invalid or expired access token"))
				return
			}
			apperrors.WriteError(w, requestID, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, &UserContext{
			ID:    user.ID,
			Email: user.Email,
			Role:  user.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole gates a handler to the given roles. Admins satisfy every role
// check; a separate admin-only route simply requires "admin".
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := apperrors.GetRequestID(r.Context())

			user, ok := GetUser(r.Context())
			if !ok {
				apperrors.WriteError(w, requestID, apperrors.Unauthenticated())
				return
			}

			if user.Role == db.RoleAdmin || containsRole(roles, user.Role) {
				next.ServeHTTP(w, r)
				return
			}

			apperrors.WriteError(w, requestID, apperrors.Forbidden("Insufficient permissions"))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperrors.MissingToken("Authorization header required")
	}
	// A header without a bearer token is the same failure as no header.
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", apperrors.MissingToken("Authorization header must be a bearer token")
	}
	return token, nil
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
