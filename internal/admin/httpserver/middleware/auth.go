package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	appsession "github.com/almarpuit/site/internal/admin/session"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/platform/auth"
	"github.com/almarpuit/site/internal/platform/requestctx"
)

// TokenCookieName carries the editor's ID token.
const TokenCookieName = "almar_token"

type authContextKey string

const userContextKey authContextKey = "auth.user"

// User represents the authenticated editor.
type User struct {
	UID   string
	Email string
	Token string
}

// Authenticator resolves an incoming token into a User.
type Authenticator interface {
	Authenticate(r *http.Request, token string) (*User, error)
}

// ErrUnauthorized is returned when authentication fails.
var ErrUnauthorized = errors.New("unauthorized")

// AuthError contains reason codes for failed authentication attempts.
type AuthError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError constructs an AuthError with the provided reason.
func NewAuthError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

const (
	// ReasonMissingToken indicates an auth attempt without credentials.
	ReasonMissingToken = "missing_token"
	// ReasonTokenInvalid indicates a malformed or invalid token.
	ReasonTokenInvalid = "token_invalid"
	// ReasonTokenExpired indicates an expired token which may be recoverable.
	ReasonTokenExpired = "token_expired"
)

// TokenAuthenticator adapts an auth.TokenVerifier (Firebase or local) to the middleware.
type TokenAuthenticator struct {
	verifier auth.TokenVerifier
}

// NewTokenAuthenticator constructs an Authenticator backed by verifier.
func NewTokenAuthenticator(verifier auth.TokenVerifier) *TokenAuthenticator {
	if verifier == nil {
		panic("token verifier is required")
	}
	return &TokenAuthenticator{verifier: verifier}
}

// Authenticate implements Authenticator.
func (a *TokenAuthenticator) Authenticate(r *http.Request, token string) (*User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, NewAuthError(ReasonMissingToken, ErrUnauthorized)
	}
	identity, err := a.verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, NewAuthError(ReasonTokenExpired, err)
		}
		return nil, NewAuthError(ReasonTokenInvalid, err)
	}
	return &User{UID: identity.UID, Email: identity.Email, Token: token}, nil
}

// Auth validates incoming requests and either attaches a User to context or redirects to login.
// The user is also exposed to the content layer as its session principal.
func Auth(authenticator Authenticator, loginPath string) func(http.Handler) http.Handler {
	if authenticator == nil {
		panic("authenticator is required")
	}
	if loginPath == "" {
		loginPath = "/login"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := requestctx.Logger(r.Context())
			token := parseBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				token = cookieToken(r)
			}
			if token == "" {
				destroySession(r.Context())
				handleUnauthorized(w, r, loginPath, ReasonMissingToken)
				return
			}

			user, err := authenticator.Authenticate(r, token)
			if err != nil || user == nil {
				reason := ReasonTokenInvalid
				var authErr *AuthError
				if errors.As(err, &authErr) && authErr.Reason != "" {
					reason = authErr.Reason
				}
				logger.Info("admin auth failure", zap.String("reason", reason), zap.Error(err))
				destroySession(r.Context())
				handleUnauthorized(w, r, loginPath, reason)
				return
			}

			if sess, ok := SessionFromContext(r.Context()); ok {
				sess.SetEditor(&appsession.Editor{UID: user.UID, Email: user.Email})
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = content.WithPrincipal(ctx, content.Principal{UID: user.UID, Email: user.Email})
			ctx = requestctx.WithLogger(ctx, logger.With(zap.String("user_id", user.UID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext retrieves the authenticated user if present.
func UserFromContext(ctx context.Context) (*User, bool) {
	user, ok := ctx.Value(userContextKey).(*User)
	return user, ok && user != nil
}

// ContextWithUser attaches a user, mirroring what Auth does.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	if user != nil {
		ctx = content.WithPrincipal(ctx, content.Principal{UID: user.UID, Email: user.Email})
	}
	return ctx
}

func parseBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func cookieToken(r *http.Request) string {
	c, err := r.Cookie(TokenCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func handleUnauthorized(w http.ResponseWriter, r *http.Request, loginPath, reason string) {
	if IsHTMXRequest(r.Context()) {
		if reason == ReasonTokenExpired {
			w.Header().Set("HX-Redirect", loginURL(loginPath, r, "expired"))
		} else {
			w.Header().Set("HX-Redirect", loginPath)
		}
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	target := loginPath
	if reason == ReasonTokenExpired {
		target = loginURL(loginPath, r, "expired")
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func loginURL(loginPath string, r *http.Request, reason string) string {
	u, err := url.Parse(loginPath)
	if err != nil {
		return loginPath
	}
	q := u.Query()
	q.Set("reason", reason)
	if r.Method == http.MethodGet && r.URL != nil {
		q.Set("next", r.URL.RequestURI())
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func destroySession(ctx context.Context) {
	if sess, ok := SessionFromContext(ctx); ok {
		sess.SetEditor(nil)
	}
}
