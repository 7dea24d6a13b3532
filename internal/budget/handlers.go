// Package budget manages spending plans: per-category allocations over a
// date window, plus a status view comparing allocations to actual spend.
package budget

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
)

type Handlers struct {
	budgets  *db.BudgetRepository
	expenses *db.ExpenseRepository
}

func NewHandlers(budgets *db.BudgetRepository, expenses *db.ExpenseRepository) *Handlers {
	return &Handlers{budgets: budgets, expenses: expenses}
}

type budgetRequest struct {
	Period      string          `json:"period"`
	Allocations []db.Allocation `json:"allocations"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
}

func (req *budgetRequest) validate() (time.Time, time.Time, error) {
	if req.Period != "weekly" && req.Period != "monthly" {
		return time.Time{}, time.Time{}, apperrors.ValidationError("Period must be weekly or monthly")
	}
	if len(req.Allocations) == 0 {
		return time.Time{}, time.Time{}, apperrors.ValidationError("At least one allocation is required")
	}
	seen := make(map[string]bool, len(req.Allocations))
	for _, a := range req.Allocations {
		if a.Category == "" {
			return time.Time{}, time.Time{}, apperrors.ValidationError("Allocation category is required")
		}
		if a.Limit < 0 {
			return time.Time{}, time.Time{}, apperrors.ValidationError("Allocation limit must not be negative")
		}
		if seen[a.Category] {
			return time.Time{}, time.Time{}, apperrors.ValidationError("Duplicate allocation category: " + a.Category)
		}
		seen[a.Category] = true
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.ValidationError("startDate must be YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.ValidationError("endDate must be YYYY-MM-DD")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, apperrors.ValidationError("endDate must be after startDate")
	}
	return start, end, nil
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	start, end, err := req.validate()
	if err != nil {
		return err
	}

	now := time.Now()
	budget := &db.Budget{
		ID:          uuid.New(),
		UserID:      user.ID,
		Period:      req.Period,
		Allocations: req.Allocations,
		StartDate:   start,
		EndDate:     end,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.budgets.Create(r.Context(), budget); err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusCreated, budget, "")
	return nil
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	budgets, err := h.budgets.List(r.Context(), user.ID)
	if err != nil {
		return err
	}
	if budgets == nil {
		budgets = []*db.Budget{}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, budgets, "")
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid budget ID")
	}

	budget, err := h.budgets.GetByID(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, db.ErrBudgetNotFound) {
			return apperrors.NotFound("Budget")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, budget, "")
	return nil
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid budget ID")
	}

	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	start, end, err := req.validate()
	if err != nil {
		return err
	}

	budget := &db.Budget{
		ID:          id,
		UserID:      user.ID,
		Period:      req.Period,
		Allocations: req.Allocations,
		StartDate:   start,
		EndDate:     end,
	}
	if err := h.budgets.Update(r.Context(), budget); err != nil {
		if errors.Is(err, db.ErrBudgetNotFound) {
			return apperrors.NotFound("Budget")
		}
		return err
	}

	updated, err := h.budgets.GetByID(r.Context(), user.ID, id)
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
		return apperrors.BadRequest("Invalid budget ID")
	}

	if err := h.budgets.Delete(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, db.ErrBudgetNotFound) {
			return apperrors.NotFound("Budget")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Budget deleted")
	return nil
}

// allocationStatus is one row of the budget status view.
type allocationStatus struct {
	Category  string  `json:"category"`
	Limit     float64 `json:"limit"`
	Spent     float64 `json:"spent"`
	Remaining float64 `json:"remaining"`
	Over      bool    `json:"over"`
}

// Status compares the current budget's allocations with actual spend inside
// the budget window.
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	budget, err := h.budgets.GetCurrent(r.Context(), user.ID, time.Now())
	if err != nil {
		if errors.Is(err, db.ErrBudgetNotFound) {
			return apperrors.NotFound("Active budget")
		}
		return err
	}

	totals, err := h.expenses.TotalsByCategory(r.Context(), user.ID,
		budget.StartDate, budget.EndDate.Add(24*time.Hour))
	if err != nil {
		return err
	}

	spent := make(map[string]float64, len(totals))
	for _, t := range totals {
		spent[t.Category] = t.Total
	}

	statuses := make([]allocationStatus, 0, len(budget.Allocations))
	for _, a := range budget.Allocations {
		s := allocationStatus{
			Category:  a.Category,
			Limit:     a.Limit,
			Spent:     spent[a.Category],
			Remaining: a.Limit - spent[a.Category],
		}
		s.Over = s.Remaining < 0
		statuses = append(statuses, s)
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]any{
		"budget":      budget,
		"allocations": statuses,
	}, "")
	return nil
}
