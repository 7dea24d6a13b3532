// Package user serves the caller's profile, the dashboard summary and
// avatar upload.
package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
	"github.com/finwise/backend/internal/gamification"
	"github.com/finwise/backend/internal/storage"
)

const maxAvatarSize = 2 << 20 // 2 MiB

var allowedAvatarTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

type Handlers struct {
	users        *db.UserRepository
	expenses     *db.ExpenseRepository
	goals        *db.GoalRepository
	progress     *db.ProgressRepository
	gamification *gamification.Service
	avatars      *storage.Client
}

func NewHandlers(
	users *db.UserRepository,
	expenses *db.ExpenseRepository,
	goals *db.GoalRepository,
	progress *db.ProgressRepository,
	g *gamification.Service,
	avatars *storage.Client,
) *Handlers {
	return &Handlers{
		users:        users,
		expenses:     expenses,
		goals:        goals,
		progress:     progress,
		gamification: g,
		avatars:      avatars,
	}
}

// Me returns the caller's profile.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	caller := auth.MustGetUser(r.Context())

	user, err := h.users.GetByID(r.Context(), caller.ID)
	if err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, auth.NewUserResponse(user), "")
	return nil
}

// publicProfile is what other users see: no email, no verification state.
type publicProfile struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Points    int       `json:"points"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
}

// Get returns another user's public profile.
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid user ID")
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return apperrors.NotFound("User")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, publicProfile{
		ID:        user.ID,
		Name:      user.Name,
		Role:      user.Role,
		Points:    user.Points,
		AvatarURL: user.AvatarURL,
	}, "")
	return nil
}

// UpdateMe changes the caller's display name and avatar URL. Empty fields
// are left untouched.
func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	caller := auth.MustGetUser(r.Context())

	var req struct {
		Name      string `json:"name"`
		AvatarURL string `json:"avatarUrl"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.AvatarURL = strings.TrimSpace(req.AvatarURL)
	if req.Name == "" && req.AvatarURL == "" {
		return apperrors.ValidationError("Nothing to update")
	}
	if len(req.Name) > 50 {
		return apperrors.ValidationError("Name must be 50 characters or fewer")
	}
	if len(req.AvatarURL) > 500 {
		return apperrors.ValidationError("Avatar URL must be 500 characters or fewer")
	}

	if err := h.users.UpdateProfile(r.Context(), caller.ID, req.Name, req.AvatarURL); err != nil {
		return err
	}

	user, err := h.users.GetByID(r.Context(), caller.ID)
	if err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, auth.NewUserResponse(user), "")
	return nil
}

// Summary is the dashboard aggregate: spend this month, goal progress,
// lessons completed, points and badges.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	caller := auth.MustGetUser(r.Context())
	ctx := r.Context()

	user, err := h.users.GetByID(ctx, caller.ID)
	if err != nil {
		return err
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	totals, err := h.expenses.TotalsByCategory(ctx, caller.ID, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return err
	}
	var monthSpend float64
	for _, t := range totals {
		monthSpend += t.Total
	}

	goals, err := h.goals.List(ctx, caller.ID)
	if err != nil {
		return err
	}
	activeGoals, completedGoals := 0, 0
	for _, g := range goals {
		if g.Status == db.GoalCompleted {
			completedGoals++
		} else {
			activeGoals++
		}
	}

	lessonsCompleted, err := h.progress.CountCompleted(ctx, caller.ID)
	if err != nil {
		return err
	}

	badges, err := h.gamification.BadgesForUser(ctx, caller.ID)
	if err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]any{
		"monthSpend":       monthSpend,
		"spendByCategory":  totals,
		"activeGoals":      activeGoals,
		"completedGoals":   completedGoals,
		"lessonsCompleted": lessonsCompleted,
		"points":           user.Points,
		"badgeCount":       len(badges),
	}, "")
	return nil
}

// UploadAvatar accepts a multipart image, stores it in the avatar bucket
// and records the serving URL on the profile.
func (h *Handlers) UploadAvatar(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	caller := auth.MustGetUser(r.Context())

	if h.avatars == nil {
		return apperrors.StorageError("Avatar storage is not configured")
	}

	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		return apperrors.BadRequest("Avatar must be a multipart upload of at most 2 MiB")
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		return apperrors.ValidationError("avatar file field is required")
	}
	defer file.Close()

	if header.Size > maxAvatarSize {
		return apperrors.ValidationError("Avatar must be at most 2 MiB")
	}
	contentType := header.Header.Get("Content-Type")
	ext, ok := allowedAvatarTypes[contentType]
	if !ok {
		return apperrors.ValidationError("Avatar must be JPEG, PNG or WebP")
	}

	key := fmt.Sprintf("%s%s", caller.ID, ext)
	if err := h.avatars.PutAvatar(r.Context(), key, file, header.Size, contentType); err != nil {
		return apperrors.StorageError("Failed to store avatar").WithCause(err)
	}

	avatarURL := "/api/v1/users/me/avatar"
	if err := h.users.UpdateProfile(r.Context(), caller.ID, "", avatarURL); err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]string{
		"avatarUrl": avatarURL,
	}, "Avatar updated")
	return nil
}

// ServeAvatar streams the caller's avatar from storage.
func (h *Handlers) ServeAvatar(w http.ResponseWriter, r *http.Request) error {
	caller := auth.MustGetUser(r.Context())

	if h.avatars == nil {
		return apperrors.NotFound("Avatar")
	}

	var body io.ReadCloser
	var contentType string
	var err error
	for _, ext := range []string{".jpg", ".png", ".webp"} {
		body, contentType, err = h.avatars.GetAvatar(r.Context(), caller.ID.String()+ext)
		if err == nil {
			break
		}
	}
	if err != nil {
		return apperrors.NotFound("Avatar")
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	io.Copy(w, body)
	return nil
}
