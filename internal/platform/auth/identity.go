package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials is returned when the email/password pair is rejected.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrTokenExpired is returned for an expired ID token.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid is returned for a malformed or unverifiable ID token.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Identity is an authenticated editor.
type Identity struct {
	UID       string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// PasswordSignIn exchanges credentials for an ID token.
type PasswordSignIn interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
}

// TokenVerifier validates an ID token issued by SignIn.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
