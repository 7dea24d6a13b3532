// Package goal manages savings goals and the contribution calculator.
package goal

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
)

type Handlers struct {
	goals *db.GoalRepository
}

func NewHandlers(goals *db.GoalRepository) *Handlers {
	return &Handlers{goals: goals}
}

type goalRequest struct {
	Title               string  `json:"title"`
	TargetAmount        float64 `json:"targetAmount"`
	CurrentAmount       float64 `json:"currentAmount"`
	MonthlyContribution float64 `json:"monthlyContribution"`
	Deadline            string  `json:"deadline"`
	Category            string  `json:"category"`
}

func (req *goalRequest) validate() (time.Time, error) {
	if req.Title == "" {
		return time.Time{}, apperrors.ValidationError("Title is required")
	}
	if len(req.Title) > 100 {
		return time.Time{}, apperrors.ValidationError("Title must be 100 characters or fewer")
	}
	if req.TargetAmount <= 0 {
		return time.Time{}, apperrors.ValidationError("Target amount must be positive")
	}
	if req.CurrentAmount < 0 || req.MonthlyContribution < 0 {
		return time.Time{}, apperrors.ValidationError("Amounts must not be negative")
	}
	deadline, err := time.Parse("2006-01-02", req.Deadline)
	if err != nil {
		return time.Time{}, apperrors.ValidationError("Deadline must be YYYY-MM-DD")
	}
	return deadline, nil
}

// statusFor derives the goal status from its amounts.
func statusFor(current, target float64) string {
	switch {
	case current >= target:
		return db.GoalCompleted
	case current > 0:
		return db.GoalInProgress
	default:
		return db.GoalNotStarted
	}
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	deadline, err := req.validate()
	if err != nil {
		return err
	}

	now := time.Now()
	goal := &db.Goal{
		ID:                  uuid.New(),
		UserID:              user.ID,
		Title:               req.Title,
		TargetAmount:        req.TargetAmount,
		CurrentAmount:       req.CurrentAmount,
		MonthlyContribution: req.MonthlyContribution,
		Deadline:            deadline,
		Category:            req.Category,
		Status:              statusFor(req.CurrentAmount, req.TargetAmount),
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := h.goals.Create(r.Context(), goal); err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusCreated, goal, "")
	return nil
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	goals, err := h.goals.List(r.Context(), user.ID)
	if err != nil {
		return err
	}
	if goals == nil {
		goals = []*db.Goal{}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, goals, "")
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid goal ID")
	}

	goal, err := h.goals.GetByID(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, db.ErrGoalNotFound) {
			return apperrors.NotFound("Goal")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, goal, "")
	return nil
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid goal ID")
	}

	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	deadline, err := req.validate()
	if err != nil {
		return err
	}

	goal := &db.Goal{
		ID:                  id,
		UserID:              user.ID,
		Title:               req.Title,
		TargetAmount:        req.TargetAmount,
		CurrentAmount:       req.CurrentAmount,
		MonthlyContribution: req.MonthlyContribution,
		Deadline:            deadline,
		Category:            req.Category,
		Status:              statusFor(req.CurrentAmount, req.TargetAmount),
	}
	if err := h.goals.Update(r.Context(), goal); err != nil {
		if errors.Is(err, db.ErrGoalNotFound) {
			return apperrors.NotFound("Goal")
		}
		return err
	}

	updated, err := h.goals.GetByID(r.Context(), user.ID, id)
	if err != nil {
		return err
	}
	apperrors.WriteSuccess(w, requestID, http.StatusOK, updated, "")
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid goal ID")
	}

	if err := h.goals.Delete(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, db.ErrGoalNotFound) {
			return apperrors.NotFound("Goal")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Goal deleted")
	return nil
}

type calculateRequest struct {
	TargetAmount  float64 `json:"targetAmount"`
	CurrentAmount float64 `json:"currentAmount"`
	Deadline      string  `json:"deadline"`
}

// Calculate returns the monthly contribution needed to hit the target by
// the deadline. Already-met targets need zero; a past deadline is an error.
func (h *Handlers) Calculate(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())

	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	if req.TargetAmount <= 0 {
		return apperrors.ValidationError("Target amount must be positive")
	}
	if req.CurrentAmount < 0 {
		return apperrors.ValidationError("Current amount must not be negative")
	}
	deadline, err := time.Parse("2006-01-02", req.Deadline)
	if err != nil {
		return apperrors.ValidationError("Deadline must be YYYY-MM-DD")
	}

	remaining := req.TargetAmount - req.CurrentAmount
	months := monthsUntil(time.Now(), deadline)

	var monthly float64
	switch {
	case remaining <= 0:
		monthly = 0
	case months <= 0:
		return apperrors.ValidationError("Deadline must be in the future")
	default:
		monthly = math.Round(remaining/float64(months)*100) / 100
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]any{
		"monthlyContribution": monthly,
		"months":              months,
		"remaining":           math.Max(remaining, 0),
	}, "")
	return nil
}

// monthsUntil counts whole months from now to the deadline, rounding up so
// a partial final month still gets a contribution.
func monthsUntil(now, deadline time.Time) int {
	if !deadline.After(now) {
		return 0
	}
	months := 0
	for cursor := now.AddDate(0, 1, 0); !cursor.After(deadline); cursor = cursor.AddDate(0, 1, 0) {
		months++
	}
	if months == 0 {
		return 1
	}
	// Partial trailing month.
	if now.AddDate(0, months, 0).Before(deadline) {
		months++
	}
	return months
}
