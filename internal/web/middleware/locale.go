package middleware

import (
	"net/http"
	"time"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/platform/requestctx"
)

// LocaleCookie remembers an explicit language choice.
const LocaleCookie = "hl"

// LocaleMatcher picks a locale from an Accept-Language header.
type LocaleMatcher interface {
	Match(acceptLanguage string) domain.Locale
}

// Locale resolves the request language: the hl query parameter, then the hl
// cookie, then Accept-Language, then the matcher's fallback. An explicit hl
// query is persisted in the cookie.
func Locale(matcher LocaleMatcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var locale domain.Locale
			if q, ok := domain.ParseLocale(r.URL.Query().Get("hl")); ok {
				locale = q
				http.SetCookie(w, &http.Cookie{
					Name:     LocaleCookie,
					Value:    string(q),
					Path:     "/",
					MaxAge:   int((365 * 24 * time.Hour).Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			} else if c, err := r.Cookie(LocaleCookie); err == nil {
				locale, _ = domain.ParseLocale(c.Value)
			}
			if locale == "" {
				locale = matcher.Match(r.Header.Get("Accept-Language"))
			}

			w.Header().Set("Content-Language", string(locale))
			ctx := requestctx.WithLocale(r.Context(), string(locale))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// VaryLocale sets Vary header for Accept-Language on dynamic responses
func VaryLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Language")
		next.ServeHTTP(w, r)
	})
}

// Lang returns the resolved request locale, defaulting to Estonian.
func Lang(r *http.Request) domain.Locale {
	if locale, ok := domain.ParseLocale(requestctx.Locale(r.Context())); ok {
		return locale
	}
	return domain.DefaultLocale
}
