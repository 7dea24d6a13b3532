package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrBadgeNotFound = errors.New("badge not found")

type Badge struct {
	ID             uuid.UUID `json:"id"`
	Key            string    `json:"key"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	PointsRequired int       `json:"pointsRequired"`
	Icon           string    `json:"icon,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// UserBadge pairs a badge with when the user earned it.
type UserBadge struct {
	Badge
	AwardedAt time.Time `json:"awardedAt"`
}

type BadgeRepository struct {
	db *DB
}

func NewBadgeRepository(db *DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

const badgeColumns = `id, key, name, description, points_required, icon, created_at, updated_at`

func (r *BadgeRepository) Create(ctx context.Context, b *Badge) error {
	query := `
		INSERT INTO badges (` + badgeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		b.ID, b.Key, b.Name, b.Description, b.PointsRequired, b.Icon,
		b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (r *BadgeRepository) GetByID(ctx context.Context, id uuid.UUID) (*Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE id = $1`
	return scanBadge(r.db.QueryRowContext(ctx, query, id))
}

func (r *BadgeRepository) List(ctx context.Context) ([]*Badge, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges ORDER BY points_required ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []*Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func (r *BadgeRepository) Update(ctx context.Context, b *Badge) error {
	query := `
		UPDATE badges
		SET key = $2, name = $3, description = $4, points_required = $5,
			icon = $6, updated_at = NOW()
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query,
		b.ID, b.Key, b.Name, b.Description, b.PointsRequired, b.Icon,
	)
	if err != nil {
		return err
	}
	return expectRow(result, ErrBadgeNotFound)
}

func (r *BadgeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM badges WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRow(result, ErrBadgeNotFound)
}

// Award grants a badge once; awarding an already-held badge is a no-op and
// reports false.
func (r *BadgeRepository) Award(ctx context.Context, userID, badgeID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO user_badges (user_id, badge_id, awarded_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, badge_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, userID, badgeID)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *BadgeRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*UserBadge, error) {
	query := `
		SELECT b.id, b.key, b.name, b.description, b.points_required, b.icon,
			b.created_at, b.updated_at, ub.awarded_at
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.awarded_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []*UserBadge
	for rows.Next() {
		ub := &UserBadge{}
		if err := rows.Scan(
			&ub.ID, &ub.Key, &ub.Name, &ub.Description, &ub.PointsRequired,
			&ub.Icon, &ub.CreatedAt, &ub.UpdatedAt, &ub.AwardedAt,
		); err != nil {
			return nil, err
		}
		badges = append(badges, ub)
	}
	return badges, rows.Err()
}

// Eligible returns badges the user qualifies for by points but has not yet
// been awarded.
func (r *BadgeRepository) Eligible(ctx context.Context, userID uuid.UUID, points int) ([]*Badge, error) {
	query := `
		SELECT ` + badgeColumns + ` FROM badges
		WHERE points_required <= $2
		AND id NOT IN (SELECT badge_id FROM user_badges WHERE user_id = $1)
	`
	rows, err := r.db.QueryContext(ctx, query, userID, points)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var badges []*Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}

func scanBadge(row interface{ Scan(...any) error }) (*Badge, error) {
	b := &Badge{}
	err := row.Scan(
		&b.ID, &b.Key, &b.Name, &b.Description, &b.PointsRequired, &b.Icon,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBadgeNotFound
		}
		return nil, err
	}
	return b, nil
}
