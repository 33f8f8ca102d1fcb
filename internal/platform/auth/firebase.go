package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/almarpuit/site/internal/platform/config"
)

const defaultVerifyTimeout = 5 * time.Second

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier validates Firebase ID tokens with the Admin SDK.
type FirebaseVerifier struct {
	client  idTokenVerifier
	timeout time.Duration
}

// NewFirebaseVerifier constructs a FirebaseVerifier backed by the Admin SDK.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig, opts ...option.ClientOption) (*FirebaseVerifier, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: authClient, timeout: defaultVerifyTimeout}, nil
}

// Verify implements TokenVerifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if v == nil || v.client == nil {
		return Identity{}, errors.New("firebase verifier not initialised")
	}
	if strings.TrimSpace(token) == "" {
		return Identity{}, ErrTokenInvalid
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	verified, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) {
			return Identity{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	email, _ := verified.Claims["email"].(string)
	return Identity{
		UID:       verified.UID,
		Email:     normalizeEmail(email),
		Token:     token,
		ExpiresAt: time.Unix(verified.Expires, 0).UTC(),
	}, nil
}

// FirebasePasswordSignIn signs editors in with the Identity Toolkit password endpoint.
type FirebasePasswordSignIn struct {
	service *identitytoolkit.Service
}

// NewFirebasePasswordSignIn builds the Identity Toolkit client from the web API key.
func NewFirebasePasswordSignIn(ctx context.Context, apiKey string, opts ...option.ClientOption) (*FirebasePasswordSignIn, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("firebase api key is required")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise identity toolkit: %w", err)
	}
	return &FirebasePasswordSignIn{service: svc}, nil
}

// SignIn implements PasswordSignIn.
func (f *FirebasePasswordSignIn) SignIn(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}

	resp, err := f.service.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 400 {
			return Identity{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiErr.Message)
		}
		return Identity{}, fmt.Errorf("auth: verify password: %w", err)
	}
	if resp.IdToken == "" {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{
		UID:   resp.LocalId,
		Email: normalizeEmail(resp.Email),
		Token: resp.IdToken,
	}, nil
}
