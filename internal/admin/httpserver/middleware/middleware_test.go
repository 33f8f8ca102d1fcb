package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	appsession "github.com/almarpuit/site/internal/admin/session"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/platform/auth"
)

type mockAuthenticator struct {
	token string
	user  *User
	err   error
}

func (m *mockAuthenticator) Authenticate(_ *http.Request, token string) (*User, error) {
	if token != m.token {
		return nil, ErrUnauthorized
	}
	return m.user, m.err
}

func newTestSessions(t *testing.T) *appsession.Manager {
	t.Helper()
	mgr, err := appsession.NewManager(appsession.Config{
		CookieName: "test_session",
		HashKey:    []byte("12345678901234567890123456789012"),
		BlockKey:   []byte("abcdefghijklmnopqrstuvwxyzABCDEF"),
		CookiePath: "/admin",
	})
	if err != nil {
		t.Fatalf("session manager init: %v", err)
	}
	return mgr
}

func TestAuthMiddleware(t *testing.T) {
	authn := &mockAuthenticator{
		token: "valid",
		user:  &User{UID: "user-1", Email: "editor@almarpuit.ee"},
	}

	handler := HTMX()(Auth(authn, "/admin/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			t.Fatalf("expected user in context")
		}
		principal, ok := content.PrincipalFromContext(r.Context())
		if !ok || principal.UID != "user-1" {
			t.Fatalf("expected content principal, got %+v", principal)
		}
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("missing token redirects", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rr.Code)
		}
		if location := rr.Header().Get("Location"); location != "/admin/login" {
			t.Fatalf("expected redirect to /admin/login, got %s", location)
		}
	})

	t.Run("htmx unauthorized returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("HX-Request", "true")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rr.Code)
		}
		if rr.Header().Get("HX-Redirect") != "/admin/login" {
			t.Fatalf("expected HX-Redirect header to /admin/login")
		}
	})

	t.Run("valid bearer passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer valid")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("token from cookie passes through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "valid"})
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rr.Code)
		}
	})

	t.Run("expired token redirects with reason and next", func(t *testing.T) {
		authn.err = NewAuthError(ReasonTokenExpired, errors.New("expired"))
		defer func() { authn.err = nil }()

		req := httptest.NewRequest(http.MethodGet, "/admin/sections/hero", nil)
		req.Header.Set("Authorization", "Bearer valid")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rr.Code)
		}
		loc, err := url.Parse(rr.Header().Get("Location"))
		if err != nil {
			t.Fatalf("parse location: %v", err)
		}
		if loc.Path != "/admin/login" || loc.Query().Get("reason") != "expired" || loc.Query().Get("next") != "/admin/sections/hero" {
			t.Fatalf("unexpected location %s", loc)
		}
	})
}

type stubVerifier struct {
	err error
}

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	if s.err != nil {
		return auth.Identity{}, s.err
	}
	return auth.Identity{UID: "uid-" + token, Email: "editor@almarpuit.ee", Token: token}, nil
}

func TestTokenAuthenticatorMapsReasons(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)

	user, err := NewTokenAuthenticator(stubVerifier{}).Authenticate(req, "abc")
	if err != nil || user.UID != "uid-abc" {
		t.Fatalf("unexpected result %+v %v", user, err)
	}

	cases := map[error]string{
		auth.ErrTokenExpired: ReasonTokenExpired,
		auth.ErrTokenInvalid: ReasonTokenInvalid,
	}
	for verr, reason := range cases {
		_, err := NewTokenAuthenticator(stubVerifier{err: verr}).Authenticate(req, "abc")
		var authErr *AuthError
		if !errors.As(err, &authErr) || authErr.Reason != reason {
			t.Fatalf("expected reason %s, got %v", reason, err)
		}
	}

	_, err = NewTokenAuthenticator(stubVerifier{}).Authenticate(req, " ")
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Reason != ReasonMissingToken {
		t.Fatalf("expected missing token reason, got %v", err)
	}
}

func TestCSRFMiddleware(t *testing.T) {
	sessions := newTestSessions(t)
	var issued string
	handler := Session(sessions)(CSRF(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issued = CSRFTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rr.Code != http.StatusOK || issued == "" {
		t.Fatalf("expected token issued on GET, code=%d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatalf("expected session cookie")
	}

	post := func(mutate func(*http.Request)) int {
		req := httptest.NewRequest(http.MethodPost, "/admin/settings", strings.NewReader(""))
		for _, c := range cookies {
			req.AddCookie(c)
		}
		mutate(req)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(func(*http.Request) {}); code != http.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", code)
	}
	if code := post(func(r *http.Request) { r.Header.Set("X-CSRF-Token", "wrong") }); code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong token, got %d", code)
	}
	token := issued
	if code := post(func(r *http.Request) { r.Header.Set("X-CSRF-Token", token) }); code != http.StatusOK {
		t.Fatalf("expected 200 with header token, got %d", code)
	}

	form := url.Values{CSRFFormField: {token}}.Encode()
	req := httptest.NewRequest(http.MethodPost, "/admin/logout", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with form token, got %d", rec.Code)
	}
}

func TestSessionMiddlewareKeepsIdentity(t *testing.T) {
	sessions := newTestSessions(t)
	var ids []string
	handler := Session(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			t.Fatalf("session missing in context")
		}
		ids = append(ids, sess.ID())
		_, _ = w.Write([]byte("ok"))
	}))

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, httptest.NewRequest(http.MethodGet, "/admin", nil))
	cookies := rec1.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "test_session" {
		t.Fatalf("expected session cookie, got %v", cookies)
	}
	if cookies[0].Expires.Before(time.Now()) {
		t.Fatalf("cookie must not be expired")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req2.AddCookie(cookies[0])
	handler.ServeHTTP(httptest.NewRecorder(), req2)
	if len(ids) != 2 || ids[0] != ids[1] {
		t.Fatalf("expected stable session id, got %v", ids)
	}
}

func TestRequireHTMX(t *testing.T) {
	handler := HTMX()(RequireHTMX()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/fragment", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for direct navigation, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/fragment", nil)
	req.Header.Set("HX-Request", "true")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
}
