package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrExpenseNotFound = errors.New("expense not found")

type Expense struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"-"`
	Amount       float64   `json:"amount"`
	Currency     string    `json:"currency"`
	Category     string    `json:"category"`
	Merchant     string    `json:"merchant,omitempty"`
	Date         time.Time `json:"date"`
	Note         string    `json:"note,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ExpenseFilter narrows listing queries. Zero values mean "no constraint".
type ExpenseFilter struct {
	Category string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

type ExpenseRepository struct {
	db *DB
}

func NewExpenseRepository(db *DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

func (r *ExpenseRepository) Create(ctx context.Context, e *Expense) error {
	query := `
		INSERT INTO expenses (id, user_id, amount, currency, category, merchant, date, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Amount, e.Currency, e.Category, e.Merchant,
		e.Date, e.Note, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (r *ExpenseRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*Expense, error) {
	query := `
		SELECT id, user_id, amount, currency, category, merchant, date, note, created_at, updated_at
		FROM expenses WHERE id = $1 AND user_id = $2
	`
	e := &Expense{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&e.ID, &e.UserID, &e.Amount, &e.Currency, &e.Category, &e.Merchant,
		&e.Date, &e.Note, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrExpenseNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns the user's expenses newest-first along with the total count
// matching the filter, for pagination.
func (r *ExpenseRepository) List(ctx context.Context, userID uuid.UUID, filter ExpenseFilter) ([]*Expense, int, error) {
	where, args := buildExpenseWhere(userID, filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM expenses ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, amount, currency, category, merchant, date, note, created_at, updated_at
		FROM expenses %s
		ORDER BY date DESC, created_at DESC
		LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		e := &Expense{}
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Amount, &e.Currency, &e.Category, &e.Merchant,
			&e.Date, &e.Note, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		expenses = append(expenses, e)
	}
	return expenses, total, rows.Err()
}

// ListAll streams every expense matching the filter, for exports.
func (r *ExpenseRepository) ListAll(ctx context.Context, userID uuid.UUID, filter ExpenseFilter) ([]*Expense, error) {
	filter.Limit = 100000
	filter.Offset = 0
	expenses, _, err := r.List(ctx, userID, filter)
	return expenses, err
}

func (r *ExpenseRepository) Update(ctx context.Context, e *Expense) error {
	query := `
		UPDATE expenses
		SET amount = $3, currency = $4, category = $5, merchant = $6,
			date = $7, note = $8, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		e.ID, e.UserID, e.Amount, e.Currency, e.Category, e.Merchant, e.Date, e.Note,
	)
	if err != nil {
		return err
	}
	return expectRow(result, ErrExpenseNotFound)
}

func (r *ExpenseRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrExpenseNotFound)
}

// CategoryTotal is a per-category spend aggregate over a date range.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

// TotalsByCategory sums spend per category within [from, to).
func (r *ExpenseRepository) TotalsByCategory(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]CategoryTotal, error) {
	query := `
		SELECT category, COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE user_id = $1 AND date >= $2 AND date < $3
		GROUP BY category
		ORDER BY 2 DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Category, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func buildExpenseWhere(userID uuid.UUID, filter ExpenseFilter) (string, []any) {
	clauses := []string{"user_id = $1"}
	args := []any{userID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		clauses = append(clauses, fmt.Sprintf("category = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		clauses = append(clauses, fmt.Sprintf("date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		clauses = append(clauses, fmt.Sprintf("date <= $%d", len(args)))
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

func expectRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
