package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func newTestManager(t *testing.T) (*Manager, *fixedClock) {
	t.Helper()

	clock := &fixedClock{current: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	mgr, err := NewManager(Config{
		CookieName:  "test_session",
		HashKey:     []byte("12345678901234567890123456789012"),
		BlockKey:    []byte("abcdefghijklmnopqrstuv0123456789"),
		IdleTimeout: 10 * time.Minute,
		Lifetime:    2 * time.Hour,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}
	return mgr, clock
}

func roundTrip(t *testing.T, mgr *Manager, sess *Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := mgr.Save(rec, sess); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func TestManagerPersistsEditorAndCSRF(t *testing.T) {
	mgr, clock := newTestManager(t)

	sess, err := mgr.Load(httptest.NewRequest(http.MethodGet, "/admin", nil))
	if err != nil || sess == nil {
		t.Fatalf("Load: %v", err)
	}
	token, err := sess.EnsureCSRFToken()
	if err != nil || token == "" {
		t.Fatalf("EnsureCSRFToken: %v", err)
	}
	sess.SetEditor(&Editor{UID: "uid-1", Email: "editor@almarpuit.ee"})
	sess.SetFlash("success", "Salvestatud")

	cookie := roundTrip(t, mgr, sess)
	if !cookie.HttpOnly || cookie.MaxAge <= 0 {
		t.Fatalf("unexpected cookie attributes: %+v", cookie)
	}

	clock.current = clock.current.Add(5 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	loaded, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID() != sess.ID() {
		t.Fatalf("expected same session id")
	}
	again, _ := loaded.EnsureCSRFToken()
	if again != token {
		t.Fatalf("csrf token changed")
	}
	principal, ok := loaded.Principal()
	if !ok || principal.UID != "uid-1" || principal.Email != "editor@almarpuit.ee" {
		t.Fatalf("unexpected principal %+v", principal)
	}
	if flash := loaded.PopFlash(); flash == nil || flash.Message != "Salvestatud" {
		t.Fatalf("expected flash, got %+v", flash)
	}
	if loaded.PopFlash() != nil {
		t.Fatalf("flash must be one-shot")
	}
}

func TestManagerIdleExpiry(t *testing.T) {
	mgr, clock := newTestManager(t)
	sess := mgr.New()
	cookie := roundTrip(t, mgr, sess)

	clock.current = clock.current.Add(11 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	if _, err := mgr.Load(req); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestManagerTamperedCookieStartsFresh(t *testing.T) {
	mgr, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: "test_session", Value: "garbage"})
	sess, err := mgr.Load(req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := sess.Principal(); ok {
		t.Fatalf("fresh session must not carry an editor")
	}
}

func TestManagerDestroyClearsCookie(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess := mgr.New()
	sess.Destroy()
	cookie := roundTrip(t, mgr, sess)
	if cookie.MaxAge != -1 || cookie.Value != "" {
		t.Fatalf("expected cleared cookie, got %+v", cookie)
	}
}

func TestNewManagerValidatesKeys(t *testing.T) {
	if _, err := NewManager(Config{HashKey: []byte("short")}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewManager(Config{HashKey: make([]byte, 32), BlockKey: []byte("bad")}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for block key, got %v", err)
	}
}
