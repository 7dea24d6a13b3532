package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrProgressNotFound = errors.New("progress not found")

type Progress struct {
	UserID      uuid.UUID     `json:"-"`
	LessonID    uuid.UUID     `json:"lessonId"`
	Status      string        `json:"status"`
	Score       sql.NullInt64 `json:"-"`
	CompletedAt sql.NullTime  `json:"-"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type ProgressRepository struct {
	db *DB
}

func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

func (r *ProgressRepository) Get(ctx context.Context, userID, lessonID uuid.UUID) (*Progress, error) {
	query := `
		SELECT user_id, lesson_id, status, score, completed_at, created_at, updated_at
		FROM progress WHERE user_id = $1 AND lesson_id = $2
	`
	p := &Progress{}
	err := r.db.QueryRowContext(ctx, query, userID, lessonID).Scan(
		&p.UserID, &p.LessonID, &p.Status, &p.Score, &p.CompletedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *ProgressRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Progress, error) {
	query := `
		SELECT user_id, lesson_id, status, score, completed_at, created_at, updated_at
		FROM progress WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*Progress
	for rows.Next() {
		p := &Progress{}
		if err := rows.Scan(
			&p.UserID, &p.LessonID, &p.Status, &p.Score, &p.CompletedAt,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// MarkStarted records that the user opened the lesson. Re-opening a lesson
// never downgrades a completed status.
func (r *ProgressRepository) MarkStarted(ctx context.Context, userID, lessonID uuid.UUID) error {
	query := `
		INSERT INTO progress (user_id, lesson_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET status = CASE WHEN progress.status = $4 THEN progress.status ELSE $3 END,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, userID, lessonID, GoalInProgress, GoalCompleted)
	return err
}

// Complete upserts a completed record and reports whether this was the first
// completion, so points are awarded exactly once per lesson. Row locks alone
// cannot serialize two first-time submissions (there is no row to lock yet),
// so the transaction takes a per-(user, lesson) advisory lock: the second
// submission waits for the first to commit and then sees the completed row.
func (r *ProgressRepository) Complete(ctx context.Context, userID, lessonID uuid.UUID, score int) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || $2::text, 0))`,
		userID, lessonID,
	); err != nil {
		return false, err
	}

	var prevStatus string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM progress WHERE user_id = $1 AND lesson_id = $2`,
		userID, lessonID,
	).Scan(&prevStatus)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	first := prevStatus != GoalCompleted

	upsert := `
		INSERT INTO progress (user_id, lesson_id, status, score, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), NOW())
		ON CONFLICT (user_id, lesson_id) DO UPDATE
		SET status = $3,
			score = GREATEST(COALESCE(progress.score, 0), EXCLUDED.score),
			completed_at = COALESCE(progress.completed_at, EXCLUDED.completed_at),
			updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, upsert, userID, lessonID, GoalCompleted, score); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return first, nil
}

// CountCompleted returns how many lessons the user has finished.
func (r *ProgressRepository) CountCompleted(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM progress WHERE user_id = $1 AND status = $2`,
		userID, GoalCompleted,
	).Scan(&n)
	return n, err
}
