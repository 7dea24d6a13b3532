package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrUserNotFound = errors.New("user not found")
var ErrEmailExists = errors.New("email already exists")

// Roles a user can hold. Mentors moderate community content; admins manage
// lessons, badges and users.
const (
	RoleUser   = "user"
	RoleMentor = "mentor"
	RoleAdmin  = "admin"
)

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Points       int
	AvatarURL    string
	Verified     bool

	EmailVerificationToken   sql.NullString
	EmailVerificationExpires sql.NullTime
	PasswordResetToken       sql.NullString
	PasswordResetExpires     sql.NullTime

	CreatedAt time.Time
	UpdatedAt time.Time
}

const userColumns = `id, name, email, password_hash, role, points, avatar_url, verified,
	email_verification_token, email_verification_expires,
	password_reset_token, password_reset_expires,
	created_at, updated_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	user := &User{}
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Role,
		&user.Points, &user.AvatarURL, &user.Verified,
		&user.EmailVerificationToken, &user.EmailVerificationExpires,
		&user.PasswordResetToken, &user.PasswordResetExpires,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, role, points, avatar_url, verified,
			email_verification_token, email_verification_expires, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, strings.ToLower(user.Email), user.PasswordHash,
		user.Role, user.Points, user.AvatarURL, user.Verified,
		user.EmailVerificationToken, user.EmailVerificationExpires,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return err
	}

	return nil
}

// GetByEmail looks a user up case-insensitively; emails are stored
// lowercase but older rows may predate that.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByVerificationToken matches only live (unexpired) verification tokens.
// Expired and unknown tokens are indistinguishable to the caller.
func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE email_verification_token = $1 AND email_verification_expires > NOW()`
	return scanUser(r.db.QueryRowContext(ctx, query, token))
}

// GetByResetToken matches only live (unexpired) password reset tokens.
func (r *UserRepository) GetByResetToken(ctx context.Context, token string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE password_reset_token = $1 AND password_reset_expires > NOW()`
	return scanUser(r.db.QueryRowContext(ctx, query, token))
}

// SetVerificationToken replaces any previous verification token, so at most
// one live token exists per user.
func (r *UserRepository) SetVerificationToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	query := `UPDATE users
		SET email_verification_token = $2, email_verification_expires = $3, updated_at = NOW()
		WHERE id = $1`
	return r.execExpectingUser(ctx, query, id, token, expires)
}

// MarkVerified flips the verified flag and clears the verification token.
func (r *UserRepository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE users
		SET verified = TRUE, email_verification_token = NULL,
			email_verification_expires = NULL, updated_at = NOW()
		WHERE id = $1`
	return r.execExpectingUser(ctx, query, id)
}

// SetResetToken replaces any previous reset token.
func (r *UserRepository) SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error {
	query := `UPDATE users
		SET password_reset_token = $2, password_reset_expires = $3, updated_at = NOW()
		WHERE id = $1`
	return r.execExpectingUser(ctx, query, id, token, expires)
}

// UpdatePassword overwrites the password hash and clears the reset token in
// the same statement so a consumed token cannot be replayed.
func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	query := `UPDATE users
		SET password_hash = $2, password_reset_token = NULL,
			password_reset_expires = NULL, updated_at = NOW()
		WHERE id = $1`
	return r.execExpectingUser(ctx, query, id, passwordHash)
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, name, avatarURL string) error {
	query := `UPDATE users
		SET name = COALESCE(NULLIF($2, ''), name),
			avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
			updated_at = NOW()
		WHERE id = $1`
	return r.execExpectingUser(ctx, query, id, name, avatarURL)
}

func (r *UserRepository) UpdateRole(ctx context.Context, id uuid.UUID, role string) error {
	query := `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`
	return r.execExpectingUser(ctx, query, id, role)
}

// AddPoints increments the user's points and returns the new total plus the
// user's role, which callers use to decide leaderboard visibility.
func (r *UserRepository) AddPoints(ctx context.Context, id uuid.UUID, delta int) (int, string, error) {
	query := `UPDATE users SET points = points + $2, updated_at = NOW()
		WHERE id = $1 RETURNING points, role`
	var points int
	var role string
	err := r.db.QueryRowContext(ctx, query, id, delta).Scan(&points, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, "", ErrUserNotFound
		}
		return 0, "", err
	}
	return points, role, nil
}

// List returns users sorted newest-first, optionally filtered by role.
func (r *UserRepository) List(ctx context.Context, role string, limit, offset int) ([]*User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, role, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) Count(ctx context.Context, role string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE ($1 = '' OR role = $1)`, role,
	).Scan(&total)
	return total, err
}

// LeaderboardEntry is the public projection used for rankings.
type LeaderboardEntry struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Points    int       `json:"points"`
}

// TopByPoints returns the highest-scoring plain users. Mentors and admins
// are excluded from the public leaderboard.
func (r *UserRepository) TopByPoints(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	query := `SELECT id, name, avatar_url, points FROM users
		WHERE role = $1
		ORDER BY points DESC, created_at ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, RoleUser, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.AvatarURL, &e.Points); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *UserRepository) execExpectingUser(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
