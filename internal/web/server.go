package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/platform/observability"
	"github.com/almarpuit/site/internal/web/assets"
	"github.com/almarpuit/site/internal/web/handlers"
	"github.com/almarpuit/site/internal/web/middleware"
)

// Config holds runtime options for the public site server.
type Config struct {
	Address  string
	Handlers *handlers.Handlers
	Locales  middleware.LocaleMatcher

	// CORSOrigins limits which origins may read the JSON API. Empty allows any origin.
	CORSOrigins []string

	Logger         *zap.Logger
	TraceProjectID string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// New constructs the public HTTP server.
func New(cfg Config) (*http.Server, error) {
	if cfg.Handlers == nil {
		return nil, errors.New("web: handlers are required")
	}
	if cfg.Locales == nil {
		return nil, errors.New("web: locale matcher is required")
	}
	router, err := NewRouter(cfg)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       durationOr(cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      durationOr(cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       durationOr(cfg.IdleTimeout, 60*time.Second),
	}, nil
}

// NewRouter builds the routing tree wrapped in response compression.
func NewRouter(cfg Config) (http.Handler, error) {
	staticContent, err := assets.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("web: embed static: %w", err)
	}
	h := cfg.Handlers

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.InjectLoggerMiddleware(cfg.Logger))
	r.Use(observability.TraceMiddleware(cfg.TraceProjectID))
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(observability.RecoveryMiddleware(cfg.Logger))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Handle("/assets/*", http.StripPrefix("/assets", middleware.AssetsWithCache(staticContent)))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Locale(cfg.Locales))
		r.Use(middleware.VaryLocale)

		r.Get("/", h.Home)
		r.Post("/contact", h.Contact)

		r.Route("/api", func(r chi.Router) {
			r.Use(cors.New(cors.Options{
				AllowedOrigins: cfg.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodHead},
				MaxAge:         600,
			}).Handler)
			r.Get("/content/{section}", h.SectionContent)
			r.Get("/settings", h.GlobalSettings)
		})
	})

	return gzhttp.GzipHandler(r), nil
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
