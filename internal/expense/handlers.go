// Package expense implements expense tracking: CRUD, filtered listing with
// pagination, per-category summaries and spreadsheet export.
package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/auth"
	"github.com/finwise/backend/internal/db"
	apperrors "github.com/finwise/backend/internal/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type Handlers struct {
	expenses *db.ExpenseRepository
}

func NewHandlers(expenses *db.ExpenseRepository) *Handlers {
	return &Handlers{expenses: expenses}
}

type expenseRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Category string  `json:"category"`
	Merchant string  `json:"merchant"`
	Date     string  `json:"date"`
	Note     string  `json:"note"`
}

func (req *expenseRequest) validate() (time.Time, error) {
	if req.Amount <= 0 {
		return time.Time{}, apperrors.ValidationError("Amount must be positive")
	}
	if req.Category == "" {
		return time.Time{}, apperrors.ValidationError("Category is required")
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	date := time.Now()
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", req.Date)
			if err != nil {
				return time.Time{}, apperrors.ValidationError("Date must be RFC 3339 or YYYY-MM-DD")
			}
		}
		date = parsed
	}
	return date, nil
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	date, err := req.validate()
	if err != nil {
		return err
	}

	now := time.Now()
	expense := &db.Expense{
		ID:        uuid.New(),
		UserID:    user.ID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Category:  req.Category,
		Merchant:  req.Merchant,
		Date:      date,
		Note:      req.Note,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.expenses.Create(r.Context(), expense); err != nil {
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusCreated, expense, "")
	return nil
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	filter, page, err := parseFilter(r)
	if err != nil {
		return err
	}

	expenses, total, err := h.expenses.List(r.Context(), user.ID, filter)
	if err != nil {
		return err
	}
	if expenses == nil {
		expenses = []*db.Expense{}
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]any{
		"expenses": expenses,
		"pagination": map[string]int{
			"page":     page,
			"pageSize": filter.Limit,
			"total":    total,
		},
	}, "")
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid expense ID")
	}

	expense, err := h.expenses.GetByID(r.Context(), user.ID, id)
	if err != nil {
		if errors.Is(err, db.ErrExpenseNotFound) {
			return apperrors.NotFound("Expense")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, expense, "")
	return nil
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return apperrors.BadRequest("Invalid expense ID")
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	date, err := req.validate()
	if err != nil {
		return err
	}

	expense := &db.Expense{
		ID:       id,
		UserID:   user.ID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Category: req.Category,
		Merchant: req.Merchant,
		Date:     date,
		Note:     req.Note,
	}
	if err := h.expenses.Update(r.Context(), expense); err != nil {
		if errors.Is(err, db.ErrExpenseNotFound) {
			return apperrors.NotFound("Expense")
		}
		return err
	}

	updated, err := h.expenses.GetByID(r.Context(), user.ID, id)
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
		return apperrors.BadRequest("Invalid expense ID")
	}

	if err := h.expenses.Delete(r.Context(), user.ID, id); err != nil {
		if errors.Is(err, db.ErrExpenseNotFound) {
			return apperrors.NotFound("Expense")
		}
		return err
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, nil, "Expense deleted")
	return nil
}

// Summary aggregates spend per category over a month (default: current).
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) error {
	requestID := apperrors.GetRequestID(r.Context())
	user := auth.MustGetUser(r.Context())

	from, to, err := parseMonth(r.URL.Query().Get("month"))
	if err != nil {
		return err
	}

	totals, err := h.expenses.TotalsByCategory(r.Context(), user.ID, from, to)
	if err != nil {
		return err
	}
	if totals == nil {
		totals = []db.CategoryTotal{}
	}

	var overall float64
	for _, t := range totals {
		overall += t.Total
	}

	apperrors.WriteSuccess(w, requestID, http.StatusOK, map[string]any{
		"month":      from.Format("2006-01"),
		"total":      overall,
		"categories": totals,
	}, "")
	return nil
}

func parseFilter(r *http.Request) (db.ExpenseFilter, int, error) {
	q := r.URL.Query()

	filter := db.ExpenseFilter{
		Category: q.Get("category"),
		Limit:    defaultPageSize,
	}

	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, 0, apperrors.ValidationError("from must be YYYY-MM-DD")
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, 0, apperrors.ValidationError("to must be YYYY-MM-DD")
		}
		// Inclusive end of day.
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}

	page := 1
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, 0, apperrors.ValidationError("page must be a positive integer")
		}
		page = n
	}
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return filter, 0, apperrors.ValidationError("pageSize must be a positive integer")
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		filter.Limit = n
	}
	filter.Offset = (page - 1) * filter.Limit
	return filter, page, nil
}

func parseMonth(raw string) (time.Time, time.Time, error) {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			return time.Time{}, time.Time{}, apperrors.ValidationError(
				fmt.Sprintf("month %q must be YYYY-MM", raw))
		}
		start = parsed
	}
	return start, start.AddDate(0, 1, 0), nil
}
