package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	localIssuer     = "almarpuit-admin"
	defaultLocalTTL = 12 * time.Hour
	localUIDPrefix  = "local:"
)

type localClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// LocalAuthority signs editors in against bcrypt hashes from configuration and
// issues HS256 tokens. It serves offline development without Firebase.
type LocalAuthority struct {
	users  map[string]string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// LocalOption customises the authority.
type LocalOption func(*LocalAuthority)

// WithLocalClock injects a clock for tests.
func WithLocalClock(now func() time.Time) LocalOption {
	return func(a *LocalAuthority) {
		if now != nil {
			a.now = now
		}
	}
}

// WithTokenTTL overrides the issued token lifetime.
func WithTokenTTL(ttl time.Duration) LocalOption {
	return func(a *LocalAuthority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// NewLocalAuthority builds an authority. users maps lower-cased emails to bcrypt hashes.
func NewLocalAuthority(users map[string]string, secret string, opts ...LocalOption) (*LocalAuthority, error) {
	if len(users) == 0 {
		return nil, errors.New("auth: local users are required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	normalized := make(map[string]string, len(users))
	for email, hash := range users {
		normalized[normalizeEmail(email)] = hash
	}
	a := &LocalAuthority{
		users:  normalized,
		secret: []byte(secret),
		ttl:    defaultLocalTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// SignIn implements PasswordSignIn.
func (a *LocalAuthority) SignIn(_ context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	hash, ok := a.users[email]
	if !ok || password == "" {
		return Identity{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}

	now := a.now().UTC()
	expires := now.Add(a.ttl)
	claims := localClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    localIssuer,
			Subject:   localUIDPrefix + email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Identity{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return Identity{UID: claims.Subject, Email: email, Token: signed, ExpiresAt: expires}, nil
}

// Verify implements TokenVerifier.
func (a *LocalAuthority) Verify(_ context.Context, token string) (Identity, error) {
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrTokenInvalid
	}
	var claims localClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		var validation *jwt.ValidationError
		if errors.As(err, &validation) && validation.Errors&jwt.ValidationErrorExpired != 0 {
			return Identity{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid || claims.Issuer != localIssuer {
		return Identity{}, ErrTokenInvalid
	}
	if _, ok := a.users[claims.Email]; !ok {
		return Identity{}, fmt.Errorf("%w: unknown user", ErrTokenInvalid)
	}
	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return Identity{UID: claims.Subject, Email: claims.Email, Token: token, ExpiresAt: expires}, nil
}
