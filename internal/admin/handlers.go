// Package admin exposes management endpoints: lesson and badge catalogs,
// user listing and role changes. Every route here sits behind the admin
// role check.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/cache"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
)

type Handlers struct {
	users   *db.UserRepository
	lessons *db.LessonRepository
	badges  *db.BadgeRepository
	cache   *cache.Cache
}

func NewHandlers(users *db.UserRepository, lessons *db.LessonRepository, badges *db.BadgeRepository, c *cache.Cache) *Handlers {
	return &Handlers{users: users, lessons: lessons, badges: badges, cache: c}
}

type lessonRequest struct {
	Title           string            `json:"title"`
	Slug            string            `json:"slug"`
	ContentMarkdown string            `json:"contentMarkdown"`
	DurationMins    int               `json:"durationMins"`
	Quiz            []db.QuizQuestion `json:"quiz"`
	Tags            []string          `json:"tags"`
}

func (req *lessonRequest) validate() error {
	if strings.TrimSpace(req.Title) == "" {
		return apperrors.ValidationError("Title is required")
	}
	if strings.TrimSpace(req.Slug) == "" {
		return apperrors.ValidationError("Slug is required")
	}
	if strings.TrimSpace(req.ContentMarkdown) == "" {
		return apperrors.ValidationError("Lesson content is required")
	}
	if req.DurationMins <= 0 {
		return apperrors.ValidationError("Duration must be positive")
	}
	for i, q := range req.Quiz {
		if q.Prompt == "" || len(q.Options) < 2 {
			return apperrors.ValidationError("Each quiz question needs a prompt and at least two options")
		}
		if q.Answer < 0 || q.Answer >= len(q.Options) {
			return apperrors.ValidationError("Quiz answer index out of range in question " + strconv.Itoa(i+1))
		}
	}
	return nil
}

func (h *Handlers) CreateLesson(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	var req lessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	now := time.Now()
	lesson := &db.Lesson{
		ID:              uuid.New(),
		Title:           req.Title,
		Slug:            req.Slug,
		ContentMarkdown: req.ContentMarkdown,
		DurationMins:    req.DurationMins,
		Quiz:            req.Quiz,
		Tags:            req.Tags,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := h.lessons.Create(r.Context(), lesson); err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusCreated, lesson, "")
	return nil
}

func (h *Handlers) UpdateLesson(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid lesson ID")
	}

	var req lessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	lesson := &db.Lesson{
		ID:              id,
		Title:           req.Title,
		Slug:            req.Slug,
		ContentMarkdown: req.ContentMarkdown,
		DurationMins:    req.DurationMins,
		Quiz:            req.Quiz,
		Tags:            req.Tags,
	}
	if err := h.lessons.Update(r.Context(), lesson); err != nil {
		if errors.Is(err, db.ErrLessonNotFound) {
			return apperrors.NotFound("Lesson")
		}
		return err
	}

	updated, err := h.lessons.GetByID(r.Context(), id)
	if err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, updated, "")
	return nil
}

func (h *Handlers) DeleteLesson(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid lesson ID")
	}

	if err := h.lessons.Delete(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrLessonNotFound) {
			return apperrors.NotFound("Lesson")
		}
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Lesson deleted")
	return nil
}

type badgeRequest struct {
	Key            string `json:"key"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	PointsRequired int    `json:"pointsRequired"`
	Icon           string `json:"icon"`
}

func (req *badgeRequest) validate() error {
	if strings.TrimSpace(req.Key) == "" || strings.TrimSpace(req.Name) == "" {
		return apperrors.ValidationError("Key and name are required")
	}
	if req.PointsRequired < 0 {
		return apperrors.ValidationError("Points required must not be negative")
	}
	return nil
}

func (h *Handlers) CreateBadge(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	var req badgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	now := time.Now()
	badge := &db.Badge{
		ID:             uuid.New(),
		Key:            req.Key,
		Name:           req.Name,
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
		Icon:           req.Icon,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.badges.Create(r.Context(), badge); err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusCreated, badge, "")
	return nil
}

func (h *Handlers) UpdateBadge(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid badge ID")
	}

	var req badgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if err := req.validate(); err != nil {
		return err
	}

	badge := &db.Badge{
		ID:             id,
		Key:            req.Key,
		Name:           req.Name,
		Description:    req.Description,
		PointsRequired: req.PointsRequired,
		Icon:           req.Icon,
	}
	if err := h.badges.Update(r.Context(), badge); err != nil {
		if errors.Is(err, db.ErrBadgeNotFound) {
			return apperrors.NotFound("Badge")
		}
		return err
	}

	updated, err := h.badges.GetByID(r.Context(), id)
	if err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, updated, "")
	return nil
}

func (h *Handlers) DeleteBadge(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid badge ID")
	}

	if err := h.badges.Delete(r.Context(), id); err != nil {
		if errors.Is(err, db.ErrBadgeNotFound) {
			return apperrors.NotFound("Badge")
		}
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Badge deleted")
	return nil
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	q := r.URL.Query()

	role := q.Get("role")
	if role != "" && role != db.RoleUser && role != db.RoleMentor && role != db.RoleAdmin {
		return apperrors.ValidationError("role must be user, mentor or admin")
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperrors.ValidationError("page must be a positive integer")
		}
		page = n
	}
	pageSize := 20
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return apperrors.ValidationError("pageSize must be between 1 and 100")
		}
		pageSize = n
	}

	users, err := h.users.List(r.Context(), role, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	total, err := h.users.Count(r.Context(), role)
	if err != nil {
		return err
	}

	views := make([]auth.UserResponse, 0, len(users))
	for _, u := range users {
		views = append(views, auth.NewUserResponse(u))
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]any{
		"users": views,
		"pagination": map[string]int{
			"page":     page,
			"pageSize": pageSize,
			"total":    total,
		},
	}, "")
	return nil
}

// UpdateUserRole promotes or demotes a user. Promoting off the "user" role
// also drops them from the public leaderboard.
func (h *Handlers) UpdateUserRole(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	caller := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid user ID")
	}
	if id == caller.ID {
		return apperrors.BadRequest("You cannot change your own role")
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if req.Role != db.RoleUser && req.Role != db.RoleMentor && req.Role != db.RoleAdmin {
		return apperrors.ValidationError("role must be user, mentor or admin")
	}

	if err := h.users.UpdateRole(r.Context(), id, req.Role); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return apperrors.NotFound("User")
		}
		return err
	}

	if req.Role != db.RoleUser && h.cache != nil {
		_ = h.cache.RemoveFromLeaderboard(r.Context(), id.String())
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, auth.NewUserResponse(user), "")
	return nil
}
