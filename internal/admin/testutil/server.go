package testutil

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/admin/dashboard"
	"github.com/almarpuit/site/internal/admin/httpserver"
	"github.com/almarpuit/site/internal/admin/httpserver/middleware"
	"github.com/almarpuit/site/internal/admin/httpserver/ui"
	"github.com/almarpuit/site/internal/admin/session"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/platform/auth"
	"github.com/almarpuit/site/internal/repositories/memory"
)

// Editor credentials accepted by the default test server.
const (
	EditorEmail    = "editor@almarpuit.ee"
	EditorPassword = "kuusk-mand-kask"
	EditorToken    = "test-token"
)

// Server is a running admin stack backed by the in-memory store.
type Server struct {
	*httptest.Server
	Store *memory.Store
	Hub   *content.Hub
}

// ServerOption customises the HTTP server configuration for tests.
type ServerOption func(*httpserver.Config)

// WithAuthenticator overrides the authenticator used by the admin server.
func WithAuthenticator(a middleware.Authenticator) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Authenticator = a
	}
}

// WithBasePath sets a custom base path for the admin routes.
func WithBasePath(path string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.BasePath = path
	}
}

// WithDashboardService wires a custom dashboard service implementation.
func WithDashboardService(service dashboard.Service) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Dashboard = service
	}
}

// WithUploader enables image uploads.
func WithUploader(uploader ui.ImageUploader) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.Uploader = uploader
	}
}

// NewServer constructs an httptest server running the admin HTTP stack with sensible defaults.
func NewServer(t testing.TB, opts ...ServerOption) *Server {
	t.Helper()

	store := memory.New()
	hub, err := content.NewHub(content.Deps{
		Registry: store,
		Session:  content.ContextSession{},
		Logger:   zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("content hub: %v", err)
	}
	t.Cleanup(hub.Close)

	sessions, err := session.NewManager(session.Config{
		HashKey:  []byte(strings.Repeat("h", 32)),
		BlockKey: []byte(strings.Repeat("b", 32)),
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	service, err := dashboard.NewService(store)
	if err != nil {
		t.Fatalf("dashboard service: %v", err)
	}

	cfg := httpserver.Config{
		BasePath:      "/admin",
		Authenticator: StaticAuthenticator{Token: EditorToken},
		SignIn:        StaticSignIn{Email: EditorEmail, Password: EditorPassword, Token: EditorToken},
		Sessions:      sessions,
		Content:       hub,
		Dashboard:     service,
		Feed:          store.Changes(),
		Logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := httpserver.New(cfg)
	if err != nil {
		t.Fatalf("admin server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return &Server{Server: ts, Store: store, Hub: hub}
}

// Client returns a cookie-keeping client that does not follow redirects.
func Client(t testing.TB) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// StaticAuthenticator accepts a single token.
type StaticAuthenticator struct {
	Token string
}

// Authenticate implements middleware.Authenticator.
func (a StaticAuthenticator) Authenticate(_ *http.Request, token string) (*middleware.User, error) {
	if token != a.Token {
		return nil, middleware.NewAuthError(middleware.ReasonTokenInvalid, middleware.ErrUnauthorized)
	}
	return &middleware.User{UID: "editor-1", Email: EditorEmail, Token: token}, nil
}

// StaticSignIn accepts a single email/password pair.
type StaticSignIn struct {
	Email    string
	Password string
	Token    string
}

// SignIn implements auth.PasswordSignIn.
func (s StaticSignIn) SignIn(_ context.Context, email, password string) (auth.Identity, error) {
	if email != s.Email || password != s.Password {
		return auth.Identity{}, auth.ErrInvalidCredentials
	}
	return auth.Identity{UID: "editor-1", Email: email, Token: s.Token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}
