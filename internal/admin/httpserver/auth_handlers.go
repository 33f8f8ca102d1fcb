package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	custommw "github.com/almarpuit/site/internal/admin/httpserver/middleware"
	appsession "github.com/almarpuit/site/internal/admin/session"
	"github.com/almarpuit/site/internal/admin/templates/auth"
	platformauth "github.com/almarpuit/site/internal/platform/auth"
	"github.com/almarpuit/site/internal/platform/requestctx"
)

type authHandlers struct {
	signIn       platformauth.PasswordSignIn
	basePath     string
	loginPath    string
	cookieSecure bool
}

func newAuthHandlers(signIn platformauth.PasswordSignIn, basePath, loginPath string, cookieSecure bool) *authHandlers {
	if signIn == nil {
		panic("auth: password sign-in is required")
	}
	if strings.TrimSpace(basePath) == "" {
		basePath = "/"
	}
	if strings.TrimSpace(loginPath) == "" {
		loginPath = resolveLoginPath(basePath)
	}
	return &authHandlers{
		signIn:       signIn,
		basePath:     basePath,
		loginPath:    loginPath,
		cookieSecure: cookieSecure,
	}
}

func (h *authHandlers) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.isAuthenticated(r) && !forceLogin(r) {
		http.Redirect(w, r, h.redirectTarget(r.URL.Query().Get("next")), http.StatusFound)
		return
	}
	h.renderLoginPage(w, r, h.buildLoginPageData(r, nil), http.StatusOK)
}

func (h *authHandlers) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		state := &loginFormState{Error: "Vormi saatmine ebaõnnestus. Palun proovige uuesti."}
		h.renderLoginPage(w, r, h.buildLoginPageData(r, state), http.StatusBadRequest)
		return
	}

	state := &loginFormState{
		Email: strings.TrimSpace(r.PostFormValue("email")),
		Next:  r.PostFormValue("next"),
	}
	password := r.PostFormValue("password")
	if state.Email == "" || password == "" {
		state.Error = "Sisestage e-post ja parool."
		h.renderLoginPage(w, r, h.buildLoginPageData(r, state), http.StatusBadRequest)
		return
	}

	logger := requestctx.Logger(r.Context())
	identity, err := h.signIn.SignIn(r.Context(), state.Email, password)
	if err != nil {
		if errors.Is(err, platformauth.ErrInvalidCredentials) {
			logger.Info("admin login rejected")
			state.Error = "Vale e-post või parool."
			h.renderLoginPage(w, r, h.buildLoginPageData(r, state), http.StatusUnauthorized)
			return
		}
		logger.Error("admin login failed", zap.Error(err))
		state.Error = "Sisselogimine ebaõnnestus. Palun proovige hiljem uuesti."
		h.renderLoginPage(w, r, h.buildLoginPageData(r, state), http.StatusBadGateway)
		return
	}

	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.SetEditor(&appsession.Editor{UID: identity.UID, Email: identity.Email})
	}
	h.setAuthCookie(w, identity.Token, identity.ExpiresAt)
	logger.Info("admin login", zap.String("user_id", identity.UID))

	target := h.redirectTarget(state.Next)
	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *authHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := custommw.SessionFromContext(r.Context()); ok {
		sess.Destroy()
	}
	h.clearAuthCookie(w)

	redirect := h.loginURLWithParams(map[string]string{"status": "logged_out"})
	if custommw.IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", redirect)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

type loginFormState struct {
	Email string
	Next  string
	Error string
}

func (h *authHandlers) buildLoginPageData(r *http.Request, state *loginFormState) auth.LoginPageData {
	q := r.URL.Query()
	data := auth.LoginPageData{
		Message:   messageForQuery(q),
		LoginPath: h.loginPath,
		BasePath:  h.basePath,
		CSRFToken: custommw.CSRFTokenFromContext(r.Context()),
	}
	if state != nil {
		data.Email = state.Email
		data.Error = state.Error
		data.Next = h.normalizeNext(state.Next)
	} else {
		data.Email = strings.TrimSpace(q.Get("email"))
		data.Next = h.normalizeNext(q.Get("next"))
	}
	return data
}

func (h *authHandlers) renderLoginPage(w http.ResponseWriter, r *http.Request, data auth.LoginPageData, status int) {
	templ.Handler(auth.LoginPage(data), templ.WithStatus(status)).ServeHTTP(w, r)
}

func (h *authHandlers) isAuthenticated(r *http.Request) bool {
	sess, ok := custommw.SessionFromContext(r.Context())
	if !ok {
		return false
	}
	_, ok = sess.Principal()
	return ok
}

func messageForQuery(q url.Values) string {
	if q.Get("status") == "logged_out" {
		return "Olete välja logitud."
	}
	switch q.Get("reason") {
	case custommw.ReasonTokenExpired, "expired":
		return "Sessioon on aegunud. Palun logige uuesti sisse."
	case custommw.ReasonTokenInvalid:
		return "Sisselogimise andmed ei kehti. Palun logige uuesti sisse."
	}
	return ""
}

func (h *authHandlers) redirectTarget(raw string) string {
	if next := h.normalizeNext(raw); next != "" {
		return next
	}
	return h.basePath
}

func (h *authHandlers) setAuthCookie(w http.ResponseWriter, token string, expires time.Time) {
	if strings.TrimSpace(token) == "" {
		h.clearAuthCookie(w)
		return
	}
	cookie := &http.Cookie{
		Name:     custommw.TokenCookieName,
		Value:    token,
		Path:     h.basePath,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		cookie.Expires = expires.UTC()
	}
	http.SetCookie(w, cookie)
}

func (h *authHandlers) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     custommw.TokenCookieName,
		Value:    "",
		Path:     h.basePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *authHandlers) loginURLWithParams(params map[string]string) string {
	parsed, err := url.Parse(h.loginPath)
	if err != nil {
		return h.loginPath
	}
	q := parsed.Query()
	for key, val := range params {
		if strings.TrimSpace(val) != "" {
			q.Set(key, val)
		}
	}
	parsed.RawQuery = q.Encode()
	return parsed.String()
}

func forceLogin(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("force"))) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	trim := func(p string) string {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		for len(p) > 1 && strings.HasSuffix(p, "/") {
			p = strings.TrimSuffix(p, "/")
		}
		return p
	}
	return trim(a) == trim(b)
}

func (h *authHandlers) normalizeNext(raw string) string {
	sanitized := sanitizeNextTarget(h.basePath, raw)
	if sanitized == "" || samePath(pathOnly(sanitized), h.loginPath) {
		return ""
	}
	return sanitized
}

// sanitizeNextTarget accepts only same-origin paths below basePath.
func sanitizeNextTarget(basePath, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}

	pathValue := parsed.Path
	if pathValue == "" {
		pathValue = "/"
	}
	unescaped, err := url.PathUnescape(pathValue)
	if err != nil || strings.Contains(unescaped, "\\") {
		return ""
	}
	cleaned := path.Clean(unescaped)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	if strings.HasPrefix(cleaned, "//") {
		return ""
	}
	base := normalizeBasePath(basePath)
	if base != "/" && !hasSafePrefix(cleaned, base) {
		return ""
	}

	target := cleaned
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return target
}

func hasSafePrefix(pathValue, base string) bool {
	if base == "/" {
		return strings.HasPrefix(pathValue, "/")
	}
	if !strings.HasPrefix(pathValue, base) {
		return false
	}
	return len(pathValue) == len(base) || pathValue[len(base)] == '/'
}

func pathOnly(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return parsed.Path
}
