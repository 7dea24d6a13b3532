package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrBudgetNotFound = errors.New("budget not found")

// Allocation is a planned spend limit for one category within a budget.
// The set lives as a JSONB array on the budget row; allocations are always
// read and written as a whole.
type Allocation struct {
	Category string  `json:"category"`
	Limit    float64 `json:"limit"`
}

type Budget struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"-"`
	Period      string       `json:"period"`
	Allocations []Allocation `json:"allocations"`
	StartDate   time.Time    `json:"startDate"`
	EndDate     time.Time    `json:"endDate"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type BudgetRepository struct {
	db *DB
}

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

func (r *BudgetRepository) Create(ctx context.Context, b *Budget) error {
	allocations, err := json.Marshal(b.Allocations)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO budgets (id, user_id, period, allocations, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.db.ExecContext(ctx, query,
		b.ID, b.UserID, b.Period, allocations, b.StartDate, b.EndDate, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (r *BudgetRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*Budget, error) {
	query := `
		SELECT id, user_id, period, allocations, start_date, end_date, created_at, updated_at
		FROM budgets WHERE id = $1 AND user_id = $2
	`
	return scanBudget(r.db.QueryRowContext(ctx, query, id, userID))
}

// GetCurrent returns the budget whose window covers the given instant, if
// any. When windows overlap the most recently started one wins.
func (r *BudgetRepository) GetCurrent(ctx context.Context, userID uuid.UUID, at time.Time) (*Budget, error) {
	query := `
		SELECT id, user_id, period, allocations, start_date, end_date, created_at, updated_at
		FROM budgets
		WHERE user_id = $1 AND start_date <= $2 AND end_date >= $2
		ORDER BY start_date DESC
		LIMIT 1
	`
	return scanBudget(r.db.QueryRowContext(ctx, query, userID, at))
}

func (r *BudgetRepository) List(ctx context.Context, userID uuid.UUID) ([]*Budget, error) {
	query := `
		SELECT id, user_id, period, allocations, start_date, end_date, created_at, updated_at
		FROM budgets WHERE user_id = $1
		ORDER BY start_date DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var budgets []*Budget
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, err
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *BudgetRepository) Update(ctx context.Context, b *Budget) error {
	allocations, err := json.Marshal(b.Allocations)
	if err != nil {
		return err
	}
	query := `
		UPDATE budgets
		SET period = $3, allocations = $4, start_date = $5, end_date = $6, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		b.ID, b.UserID, b.Period, allocations, b.StartDate, b.EndDate,
	)
	if err != nil {
		return err
	}
	return expectRow(result, ErrBudgetNotFound)
}

func (r *BudgetRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM budgets WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrBudgetNotFound)
}

func scanBudget(row interface{ Scan(...any) error }) (*Budget, error) {
	b := &Budget{}
	var allocations []byte
	err := row.Scan(
		&b.ID, &b.UserID, &b.Period, &allocations,
		&b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBudgetNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(allocations, &b.Allocations); err != nil {
		return nil, err
	}
	return b, nil
}
