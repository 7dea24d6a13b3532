package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
)

const refreshCookieName = "refreshToken"

// Handlers exposes the session endpoints under /api/v1/auth.
type Handlers struct {
	service    *Service
	production bool
}

func NewHandlers(service *Service, production bool) *Handlers {
	return &Handlers{service: service, production: production}
}

// RegisterRoutes wires the auth endpoints onto the mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/auth/register", apperrors.HandleFunc(h.Register))
	mux.HandleFunc("GET /api/v1/auth/verify", apperrors.HandleFunc(h.VerifyEmail))
	mux.HandleFunc("POST /api/v1/auth/login", apperrors.HandleFunc(h.Login))
	mux.HandleFunc("POST /api/v1/auth/refresh", apperrors.HandleFunc(h.Refresh))
	mux.HandleFunc("POST /api/v1/auth/logout", apperrors.HandleFunc(h.Logout))
	mux.HandleFunc("POST /api/v1/auth/forgot", apperrors.HandleFunc(h.ForgotPassword))
	mux.HandleFunc("POST /api/v1/auth/reset", apperrors.HandleFunc(h.ResetPassword))
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public projection of an account. The password hash
// and pending action tokens never leave the service.
type UserResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Points    int       `json:"points"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewUserResponse(user *db.User) UserResponse {
	return UserResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Points:    user.Points,
		AvatarURL: user.AvatarURL,
		Verified:  user.Verified,
		CreatedAt: user.CreatedAt,
	}
}

type sessionResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"accessToken"`
	ExpiresIn   int64        `json:"expiresIn"`
}

// refreshResponse carries only the rotated access token; the client already
// holds the user projection from login.
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := validateRegisterRequest(&req); err != nil {
		return err
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return apperrors.Conflict("An account with this email already exists")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusCreated, map[string]any{
		"user": NewUserResponse(user),
	}, "Account created")
	return nil
}

// VerifyEmail consumes the token from the emailed verification link, so it
// arrives as a query parameter rather than a JSON body.
func (h *Handlers) VerifyEmail(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	token := r.URL.Query().Get("token")
	if err := h.service.VerifyEmail(r.Context(), token); err != nil {
		if errors.Is(err, ErrInvalidActionToken) {
			return apperrors.InvalidToken("Invalid or expired verification token")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Email verified")
	return nil
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.ValidationError("Email and password are required")
	}

	user, pair, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			return apperrors.InvalidCredentials()
		case errors.Is(err, ErrUserNotVerified):
			return apperrors.Unverified()
		}
		return err
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	apperrors.WriteSuccess(w, requestID, http.StatusOK, sessionResponse{
		User:        NewUserResponse(user),
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
	}, "")
	return nil
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return apperrors.MissingToken("No refresh token")
	}

	_, pair, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			h.clearRefreshCookie(w)
			return apperrors.InvalidToken("Invalid or expired refresh token")
		}
		return err
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	apperrors.WriteSuccess(w, requestID, http.StatusOK, refreshResponse{
		AccessToken: pair.AccessToken,
		ExpiresIn:   pair.ExpiresIn,
	}, "")
	return nil
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			return err
		}
	}

	h.clearRefreshCookie(w)
	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Logged out")
	return nil
}

func (h *Handlers) ForgotPassword(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if req.Email == "" {
		return apperrors.ValidationError("Email is required")
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		return err
	}

	// Same response whether or not the account exists.
	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil,
		"If an account exists for that email, a reset link has been sent")
	return nil
}

func (h *Handlers) ResetPassword(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	var req struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := validatePassword(req.Password); err != nil {
		return err
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, ErrInvalidActionToken) {
			return apperrors.InvalidToken("Invalid or expired reset token")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Password updated")
	return nil
}

// setRefreshCookie installs the refresh token as an httpOnly cookie scoped
// to the auth endpoints, living exactly as long as the token itself. Secure
// is set only in production so local frontend development over plain HTTP
// keeps working.
func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/api/v1/auth",
		MaxAge:   int(h.service.signer.RefreshTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.production,
		SameSite: http.SameSiteStrictMode,
	})
}

func validateRegisterRequest(req *registerRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return apperrors.ValidationError("Name is required")
	}
	if len(name) > 50 {
		return apperrors.ValidationError("Name must be 50 characters or fewer")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return apperrors.ValidationError("A valid email address is required")
	}
	return validatePassword(req.Password)
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return apperrors.ValidationError("Password must be at least 8 characters")
	}
	if len(password) > 72 {
		return apperrors.ValidationError("Password must be 72 characters or fewer")
	}
	return nil
}
