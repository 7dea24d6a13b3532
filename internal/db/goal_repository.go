package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrGoalNotFound = errors.New("goal not found")

// Goal statuses track progress toward the target amount.
const (
	GoalNotStarted = "not-started"
	GoalInProgress = "in-progress"
	GoalCompleted  = "completed"
)

type Goal struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"-"`
	Title               string    `json:"title"`
	TargetAmount        float64   `json:"targetAmount"`
	CurrentAmount       float64   `json:"currentAmount"`
	MonthlyContribution float64   `json:"monthlyContribution"`
	Deadline            time.Time `json:"deadline"`
	Category            string    `json:"category"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

type GoalRepository struct {
	db *DB
}

func NewGoalRepository(db *DB) *GoalRepository {
	return &GoalRepository{db: db}
}

const goalColumns = `id, user_id, title, target_amount, current_amount, monthly_contribution,
	deadline, category, status, created_at, updated_at`

func (r *GoalRepository) Create(ctx context.Context, g *Goal) error {
	query := `
		INSERT INTO goals (` + goalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		g.ID, g.UserID, g.Title, g.TargetAmount, g.CurrentAmount,
		g.MonthlyContribution, g.Deadline, g.Category, g.Status,
		g.CreatedAt, g.UpdatedAt,
	)
	return err
}

func (r *GoalRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1 AND user_id = $2`
	return scanGoal(r.db.QueryRowContext(ctx, query, id, userID))
}

func (r *GoalRepository) List(ctx context.Context, userID uuid.UUID) ([]*Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = $1 ORDER BY deadline ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []*Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func (r *GoalRepository) Update(ctx context.Context, g *Goal) error {
	query := `
		UPDATE goals
		SET title = $3, target_amount = $4, current_amount = $5,
			monthly_contribution = $6, deadline = $7, category = $8,
			status = $9, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		g.ID, g.UserID, g.Title, g.TargetAmount, g.CurrentAmount,
		g.MonthlyContribution, g.Deadline, g.Category, g.Status,
	)
	if err != nil {
		return err
	}
	return expectRow(result, ErrGoalNotFound)
}

func (r *GoalRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return expectRow(result, ErrGoalNotFound)
}

func scanGoal(row interface{ Scan(...any) error }) (*Goal, error) {
	g := &Goal{}
	err := row.Scan(
		&g.ID, &g.UserID, &g.Title, &g.TargetAmount, &g.CurrentAmount,
		&g.MonthlyContribution, &g.Deadline, &g.Category, &g.Status,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return g, nil
}
