package gamification

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
)

const defaultLeaderboardSize = 10

type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	limit := defaultLeaderboardSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			return apperrors.ValidationError("limit must be between 1 and 100")
		}
		limit = n
	}

	entries, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []db.LeaderboardEntry{}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, entries, "")
	return nil
}

func (h *Handlers) Badges(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	badges, err := h.service.AllBadges(r.Context())
	if err != nil {
		return err
	}
	if badges == nil {
		badges = []*db.Badge{}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, badges, "")
	return nil
}

func (h *Handlers) MyBadges(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	badges, err := h.service.BadgesForUser(r.Context(), user.ID)
	if err != nil {
		return err
	}
	if badges == nil {
		badges = []*db.UserBadge{}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, badges, "")
	return nil
}

// UserBadges lists another user's earned badges.
func (h *Handlers) UserBadges(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid user ID")
	}

	badges, err := h.service.BadgesForUser(r.Context(), id)
	if err != nil {
		return err
	}
	if badges == nil {
		badges = []*db.UserBadge{}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, badges, "")
	return nil
}
