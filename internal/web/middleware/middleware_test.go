package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/almarpuit/site/internal/domain"
)

type staticMatcher domain.Locale

func (m staticMatcher) Match(string) domain.Locale { return domain.Locale(m) }

func TestLocaleResolutionOrder(t *testing.T) {
	var got domain.Locale
	handler := Locale(staticMatcher(domain.LocaleEN))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = Lang(r)
	}))

	cases := []struct {
		name   string
		target string
		cookie string
		want   domain.Locale
		setHL  bool
	}{
		{name: "query wins", target: "/?hl=et", cookie: "en", want: domain.LocaleET, setHL: true},
		{name: "cookie", target: "/", cookie: "et", want: domain.LocaleET},
		{name: "invalid cookie falls to header", target: "/", cookie: "fi", want: domain.LocaleEN},
		{name: "invalid query ignored", target: "/?hl=xx", want: domain.LocaleEN},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: LocaleCookie, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, tc.want, got)
			require.Equal(t, string(tc.want), rec.Header().Get("Content-Language"))
			if tc.setHL {
				require.Contains(t, rec.Header().Get("Set-Cookie"), "hl="+string(tc.want))
			} else {
				require.Empty(t, rec.Header().Get("Set-Cookie"))
			}
		})
	}
}

func TestLangDefaultsToEstonian(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Equal(t, domain.LocaleET, Lang(req))
}

func TestAssetsWithCache(t *testing.T) {
	fsys := fstest.MapFS{"site.css": {Data: []byte("body{}")}}
	handler := AssetsWithCache(fsys)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/site.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	require.Contains(t, rec.Header().Get("Cache-Control"), "max-age=604800")

	req := httptest.NewRequest(http.MethodGet, "/site.css", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotModified, rec.Code)
}
