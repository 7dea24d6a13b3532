package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPasswordHasher(t *testing.T) {
	hasher := NewPasswordHasher(4) // low cost to keep the test fast
	password := "testpassword123"

	hash, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if hash == password {
		t.Error("hash should not equal the plaintext password")
	}

	hash2, err := hasher.Hash(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if hash == hash2 {
		t.Error("hashing the same password twice should produce different digests")
	}

	if !hasher.Compare(hash, password) {
		t.Error("comparison failed for correct password")
	}
	if hasher.Compare(hash, "wrongpassword") {
		t.Error("comparison should fail for wrong password")
	}
}

func TestTokenSignerRoundTrip(t *testing.T) {
	signer := NewTokenSigner("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour)
	userID := uuid.New()

	access, err := signer.SignAccess(userID, "test@example.com", "user")
	if err != nil {
		t.Fatalf("failed to sign access token: %v", err)
	}

	claims, err := signer.VerifyAccess(access)
	if err != nil {
		t.Fatalf("failed to verify access token: %v", err)
	}
	if claims.UserID != userID {
		t.Errorf("UserID = %v, want %v", claims.UserID, userID)
	}
	if claims.Email != "test@example.com" {
		t.Errorf("Email = %q, want %q", claims.Email, "test@example.com")
	}
	if claims.Role != "user" {
		t.Errorf("Role = %q, want %q", claims.Role, "user")
	}
}

func TestTokenSignerSeparateSecrets(t *testing.T) {
	signer := NewTokenSigner("access-secret", "refresh-secret", 15*time.Minute, 30*24*time.Hour)
	userID := uuid.New()

	refresh, err := signer.SignRefresh(userID, "test@example.com", "user")
	if err != nil {
		t.Fatalf("failed to sign refresh token: %v", err)
	}

	// A refresh token must not verify as an access token.
	if _, err := signer.VerifyAccess(refresh); err == nil {
		t.Error("refresh token should not verify against the access secret")
	}
	if _, err := signer.VerifyRefresh(refresh); err != nil {
		t.Errorf("refresh token failed to verify: %v", err)
	}
}

func TestTokenSignerRefreshSecretFallback(t *testing.T) {
	signer := NewTokenSigner("only-secret", "", 15*time.Minute, 30*24*time.Hour)
	userID := uuid.New()

	refresh, err := signer.SignRefresh(userID, "test@example.com", "user")
	if err != nil {
		t.Fatalf("failed to sign refresh token: %v", err)
	}
	if _, err := signer.VerifyRefresh(refresh); err != nil {
		t.Errorf("refresh token failed to verify with fallback secret: %v", err)
	}
}

func TestTokenSignerExpired(t *testing.T) {
	signer := NewTokenSigner("access-secret", "", -time.Minute, 30*24*time.Hour)
	userID := uuid.New()

	token, err := signer.SignAccess(userID, "test@example.com", "user")
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	if _, err := signer.VerifyAccess(token); err != ErrTokenExpired {
		t.Errorf("VerifyAccess() error = %v, want ErrTokenExpired", err)
	}
}

func TestTokenSignerMalformed(t *testing.T) {
	signer := NewTokenSigner("access-secret", "", 15*time.Minute, 30*24*time.Hour)

	malformed := []string{
		"",
		"not-a-jwt",
		"a.b.c",
		"eyJhbGciOiJIUzI1NiJ9.e30.",
	}
	for _, token := range malformed {
		if _, err := signer.VerifyAccess(token); err == nil {
			t.Errorf("VerifyAccess(%q) should fail", token)
		}
	}
}

func TestTokenSignerForged(t *testing.T) {
	good := NewTokenSigner("real-secret", "", 15*time.Minute, 30*24*time.Hour)
	bad := NewTokenSigner("attacker-secret", "", 15*time.Minute, 30*24*time.Hour)

	forged, err := bad.SignAccess(uuid.New(), "test@example.com", "admin")
	if err != nil {
		t.Fatalf("failed to sign forged token: %v", err)
	}
	if _, err := good.VerifyAccess(forged); err == nil {
		t.Error("token signed with the wrong secret should not verify")
	}
}

func TestHashToken(t *testing.T) {
	token1 := "test-token-1"
	token2 := "test-token-2"

	hash1 := hashToken(token1)
	hash1Again := hashToken(token1)
	hash2 := hashToken(token2)

	if hash1 != hash1Again {
		t.Error("same token should produce same hash")
	}
	if hash1 == hash2 {
		t.Error("different tokens should produce different hashes")
	}
	if len(hash1) != 64 {
		t.Errorf("hash should be 64 characters (SHA-256 hex), got %d", len(hash1))
	}
	if hash1 == token1 {
		t.Error("hash should not equal the raw token")
	}
}

func TestValidateRegisterRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *registerRequest
		wantErr bool
	}{
		{
			name:    "valid request",
			req:     &registerRequest{Name: "Test User", Email: "test@example.com", Password: "password123"},
			wantErr: false,
		},
		{
			name:    "empty name",
			req:     &registerRequest{Name: "  ", Email: "test@example.com", Password: "password123"},
			wantErr: true,
		},
		{
			name:    "name too long",
			req:     &registerRequest{Name: strings.Repeat("a", 51), Email: "test@example.com", Password: "password123"},
			wantErr: true,
		},
		{
			name:    "invalid email format",
			req:     &registerRequest{Name: "Test User", Email: "notanemail", Password: "password123"},
			wantErr: true,
		},
		{
			name:    "password too short",
			req:     &registerRequest{Name: "Test User", Email: "test@example.com", Password: "short"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRegisterRequest(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRegisterRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateOpaqueToken(t *testing.T) {
	token1, err := generateOpaqueToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	token2, err := generateOpaqueToken()
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if len(token1) != 64 {
		t.Errorf("token should be 64 hex characters, got %d", len(token1))
	}
	if token1 == token2 {
		t.Error("two generated tokens should differ")
	}
}
