package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrTokenNotFound = errors.New("refresh token not found")

// RefreshToken is the stored form of a session's refresh credential. Only
// the SHA-256 hash of the opaque token ever reaches this table.
type RefreshToken struct {
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TokenRepository struct {
	db *DB
}

func NewTokenRepository(db *DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Upsert stores or replaces the user's refresh token. user_id is the primary
// key, so each user holds at most one live session; a login from a second
// device silently invalidates the first.
func (r *TokenRepository) Upsert(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, userID, tokenHash, expiresAt)
	return err
}

// FindValid returns the stored token matching the given hash if it has not
// expired. Expired rows are treated as absent.
func (r *TokenRepository) FindValid(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	query := `
		SELECT user_id, token_hash, expires_at, created_at, updated_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND expires_at > NOW()
	`

	token := &RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.UserID, &token.TokenHash, &token.ExpiresAt,
		&token.CreatedAt, &token.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return token, nil
}

// DeleteByHash removes the session identified by the hash. Deleting an
// already-absent token is not an error; logout is idempotent.
func (r *TokenRepository) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return err
}

// DeleteByUserID revokes whatever session the user holds, if any. Used when
// a password reset must force re-authentication everywhere.
func (r *TokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}

// DeleteExpired clears rows past their expiry. Run periodically; correctness
// does not depend on it since FindValid filters on expiry.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
