package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finwise/backend/internal/db"
	"github.com/finwise/backend/internal/logger"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already registered")
	ErrUserNotVerified    = errors.New("email not verified")
	ErrInvalidSession     = errors.New("invalid session")
	ErrInvalidActionToken = errors.New("invalid or expired token")
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = 1 * time.Hour
)

// EmailSender delivers account emails. The auth service treats delivery
// failures as non-fatal; the account flow must not hinge on the mail
// provider being up.
type EmailSender interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}

// UserStore is the slice of the user repository the session flows touch.
type UserStore interface {
	Create(ctx context.Context, user *db.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*db.User, error)
	GetByEmail(ctx context.Context, email string) (*db.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*db.User, error)
	GetByResetToken(ctx context.Context, token string) (*db.User, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// TokenStore persists the per-user refresh token hash.
type TokenStore interface {
	Upsert(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	FindValid(ctx context.Context, tokenHash string) (*db.RefreshToken, error)
	DeleteByHash(ctx context.Context, tokenHash string) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// Service implements the session lifecycle: registration, email
// verification, login, refresh rotation, logout and password recovery.
type Service struct {
	users      UserStore
	tokens     TokenStore
	hasher     *PasswordHasher
	signer     *TokenSigner
	email      EmailSender
	autoVerify bool
	log        *logger.Logger
}

func NewService(
	users UserStore,
	tokens TokenStore,
	hasher *PasswordHasher,
	signer *TokenSigner,
	email EmailSender,
	autoVerify bool,
) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		hasher:     hasher,
		signer:     signer,
		email:      email,
		autoVerify: autoVerify,
		log:        logger.Default().WithComponent("auth"),
	}
}

// Register creates an account and, unless auto-verify is on, emails a
// verification link. The returned user never includes the password hash
// upstream; handlers take care of projection.
func (s *Service) Register(ctx context.Context, name, email, password string) (*db.User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &db.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         db.RoleUser,
		Verified:     s.autoVerify,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var verificationToken string
	if !s.autoVerify {
		verificationToken, err = generateOpaqueToken()
		if err != nil {
			return nil, err
		}
		user.EmailVerificationToken.String = verificationToken
		user.EmailVerificationToken.Valid = true
		user.EmailVerificationExpires.Time = now.Add(verificationTokenTTL)
		user.EmailVerificationExpires.Valid = true
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	if !s.autoVerify && s.email != nil {
		if err := s.email.SendVerification(ctx, user.Email, user.Name, verificationToken); err != nil {
			s.log.Error(ctx, "failed to send verification email", err)
		}
	}

	return user, nil
}

// VerifyEmail consumes a verification token. Unknown and expired tokens are
// indistinguishable to the caller.
func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidActionToken
	}
	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return ErrInvalidActionToken
		}
		return err
	}
	return s.users.MarkVerified(ctx, user.ID)
}

// Login checks credentials and issues a token pair. A wrong email and a
// wrong password produce the same error so accounts cannot be enumerated.
func (s *Service) Login(ctx context.Context, email, password string) (*db.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.Verified {
		return nil, nil, ErrUserNotVerified
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh rotates the session. The presented refresh JWT must verify AND its
// hash must match the stored row; a replayed token whose hash no longer
// matches is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*db.User, *TokenPair, error) {
	claims, err := s.signer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, nil, ErrInvalidSession
	}

	stored, err := s.tokens.FindValid(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, db.ErrTokenNotFound) {
			return nil, nil, ErrInvalidSession
		}
		return nil, nil, err
	}

	if stored.UserID != claims.UserID {
		return nil, nil, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, nil, ErrInvalidSession
		}
		return nil, nil, err
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Logout revokes the session holding the given refresh token. Absent or
// already-revoked tokens succeed; logout is idempotent.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.DeleteByHash(ctx, hashToken(refreshToken))
}

// ForgotPassword starts password recovery. The caller always gets success
// regardless of whether the email exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil
		}
		return err
	}

	token, err := generateOpaqueToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return err
	}

	if s.email != nil {
		if err := s.email.SendPasswordReset(ctx, user.Email, user.Name, token); err != nil {
			s.log.Error(ctx, "failed to send password reset email", err)
		}
	}
	return nil
}

// ResetPassword consumes a reset token, replaces the password and revokes
// any live session so a stolen refresh token dies with the old password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidActionToken
	}
	user, err := s.users.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return ErrInvalidActionToken
		}
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	return s.tokens.DeleteByUserID(ctx, user.ID)
}

// ValidateAccessToken verifies a bearer token and returns its claims.
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.signer.VerifyAccess(tokenString)
}

// AuthenticateAccessToken verifies a bearer token and loads the account it
// names. A token whose user no longer exists is as invalid as a forged one,
// and the store, not the token, is the authority on the caller's role.
func (s *Service) AuthenticateAccessToken(ctx context.Context, tokenString string) (*db.User, error) {
	claims, err := s.signer.VerifyAccess(tokenString)
	if err != nil {
		return nil, ErrInvalidSession
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) issueTokens(ctx context.Context, user *db.User) (*TokenPair, error) {
	accessToken, err := s.signer.SignAccess(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.signer.SignRefresh(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.signer.RefreshTTL())
	if err := s.tokens.Upsert(ctx, user.ID, hashToken(refreshToken), expiresAt); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.signer.AccessTTL().Seconds()),
	}, nil
}

// hashToken maps a refresh token to its storage form. Only this digest ever
// touches the database.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
