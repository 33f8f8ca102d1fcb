package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/admin/assets"
	"github.com/almarpuit/site/internal/admin/dashboard"
	custommw "github.com/almarpuit/site/internal/admin/httpserver/middleware"
	"github.com/almarpuit/site/internal/admin/httpserver/ui"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/platform/auth"
	"github.com/almarpuit/site/internal/platform/observability"
	"github.com/almarpuit/site/internal/repositories"
)

// Config holds runtime options for the admin HTTP server.
type Config struct {
	Address  string
	BasePath string

	Authenticator custommw.Authenticator
	SignIn        auth.PasswordSignIn
	Sessions      custommw.SessionStore
	CookieSecure  bool
	CSRFHeader    string

	Content   *content.Hub
	Dashboard dashboard.Service
	Uploader  ui.ImageUploader
	Feed      repositories.ChangeFeed

	Logger         *zap.Logger
	TraceProjectID string
	Now            func() time.Time

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// New constructs the HTTP server with middleware stack and embedded assets.
func New(cfg Config) (*http.Server, error) {
	switch {
	case cfg.Authenticator == nil:
		return nil, errors.New("httpserver: authenticator is required")
	case cfg.SignIn == nil:
		return nil, errors.New("httpserver: password sign-in is required")
	case cfg.Sessions == nil:
		return nil, errors.New("httpserver: session store is required")
	case cfg.Content == nil:
		return nil, errors.New("httpserver: content hub is required")
	}

	staticContent, err := assets.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("httpserver: embed static: %w", err)
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLoggerMiddleware(cfg.Logger))
	router.Use(observability.TraceMiddleware(cfg.TraceProjectID))
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(observability.RecoveryMiddleware(cfg.Logger))

	basePath := normalizeBasePath(cfg.BasePath)
	loginPath := resolveLoginPath(basePath)

	handlers := ui.NewHandlers(ui.Dependencies{
		BasePath:  basePath,
		Content:   cfg.Content,
		Dashboard: cfg.Dashboard,
		Uploader:  cfg.Uploader,
		Feed:      cfg.Feed,
		Now:       cfg.Now,
	})
	authHandlers := newAuthHandlers(cfg.SignIn, basePath, loginPath, cfg.CookieSecure)

	mountAdminRoutes(router, basePath, routeOptions{
		Authenticator: cfg.Authenticator,
		LoginPath:     loginPath,
		Sessions:      cfg.Sessions,
		CSRF:          custommw.CSRFConfig{HeaderName: cfg.CSRFHeader},
		Handlers:      handlers,
		Auth:          authHandlers,
		Static:        http.FileServer(http.FS(staticContent)),
	})

	return &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  durationOr(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: durationOr(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  durationOr(cfg.IdleTimeout, 60*time.Second),
	}, nil
}

type routeOptions struct {
	Authenticator custommw.Authenticator
	LoginPath     string
	Sessions      custommw.SessionStore
	CSRF          custommw.CSRFConfig
	Handlers      *ui.Handlers
	Auth          *authHandlers
	Static        http.Handler
}

func mountAdminRoutes(router chi.Router, base string, opts routeOptions) {
	h := opts.Handlers
	router.Route(base, func(r chi.Router) {
		assetsPrefix := strings.TrimSuffix(base, "/") + "/assets/"
		r.Handle("/assets/*", http.StripPrefix(assetsPrefix, opts.Static))

		r.Group(func(r chi.Router) {
			r.Use(custommw.HTMX())
			r.Use(custommw.NoStore())
			r.Use(custommw.Session(opts.Sessions))
			r.Use(custommw.CSRF(opts.CSRF))

			r.Get("/login", opts.Auth.LoginForm)
			r.Post("/login", opts.Auth.LoginSubmit)
			r.Post("/logout", opts.Auth.Logout)

			r.Group(func(r chi.Router) {
				r.Use(custommw.Auth(opts.Authenticator, opts.LoginPath))

				r.Get("/", h.Dashboard)
				RegisterFragment(r, "/fragments/save-status", h.SaveStatusReset)
				r.Get("/live/{key}", h.Live)

				r.Get("/settings", h.Settings)
				r.Post("/settings", h.UpdateSettings)

				r.Route("/sections/{key}", func(r chi.Router) {
					r.Get("/", h.SectionEditor)
					r.Post("/translations/{field}", h.UpdateTranslation)
					r.Post("/images/{field}", h.UpdateImage)
					r.Post("/images/{field}/upload", h.UploadImage)

					r.Post("/milestones", h.CreateMilestone)
					r.Post("/milestones/reorder", h.ReorderMilestones)
					r.Post("/milestones/{id}", h.UpdateMilestone)
					r.Post("/milestones/{id}/delete", h.DeleteMilestone)

					r.Post("/requirements", h.UpdateRequirement)
					r.Post("/requirements/items", h.AddRequirementItem)
					r.Post("/requirements/items/{index}", h.UpdateRequirementItem)
					r.Post("/requirements/items/{index}/delete", h.RemoveRequirementItem)
					r.Post("/requirements/items/{index}/move", h.MoveRequirementItem)
				})
			})
		})
	})
}

func normalizeBasePath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return "/admin"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}

func resolveLoginPath(base string) string {
	if base == "/" {
		return "/login"
	}
	return base + "/login"
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}

// RegisterFragment registers a GET handler intended for htmx fragment rendering.
func RegisterFragment(r chi.Router, pattern string, handler http.HandlerFunc) {
	r.With(custommw.RequireHTMX()).Get(pattern, handler)
}
