package ui

import (
	"context"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/admin/dashboard"
	custommw "github.com/almarpuit/site/internal/admin/httpserver/middleware"
	dashboardtpl "github.com/almarpuit/site/internal/admin/templates/dashboard"
	"github.com/almarpuit/site/internal/admin/templates/editor"
	"github.com/almarpuit/site/internal/admin/templates/helpers"
	"github.com/almarpuit/site/internal/admin/templates/layout"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/platform/requestctx"
	"github.com/almarpuit/site/internal/platform/storage"
	"github.com/almarpuit/site/internal/repositories"
)

// ImageUploader stores editor uploads and returns their public URL.
type ImageUploader interface {
	Upload(ctx context.Context, upload storage.Upload) (storage.Result, error)
	MaxSize() int64
}

// Dependencies collects external services required by the UI handlers.
type Dependencies struct {
	BasePath  string
	Content   *content.Hub
	Dashboard dashboard.Service
	// Uploader is optional; image uploads are hidden without it.
	Uploader ImageUploader
	// Feed is optional; live editor notifications are disabled without it.
	Feed repositories.ChangeFeed
	Now  func() time.Time
}

// Handlers exposes HTTP handlers for admin UI pages and fragments.
type Handlers struct {
	basePath  string
	content   *content.Hub
	dashboard dashboard.Service
	uploader  ImageUploader
	feed      repositories.ChangeFeed
	now       func() time.Time
}

// NewHandlers wires the UI handler set.
func NewHandlers(deps Dependencies) *Handlers {
	if deps.Content == nil {
		panic("ui: content hub is required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	base := deps.BasePath
	if base == "" {
		base = "/"
	}
	return &Handlers{
		basePath:  base,
		content:   deps.Content,
		dashboard: deps.Dashboard,
		uploader:  deps.Uploader,
		feed:      deps.Feed,
		now:       now,
	}
}

// Dashboard renders the admin dashboard.
func (h *Handlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := dashboardtpl.PageData{BasePath: h.basePath, Now: h.now()}

	if h.dashboard == nil {
		data.Error = "Töölaua andmed ei ole saadaval."
	} else {
		recent, err := h.dashboard.RecentActivity(ctx, dashboard.RecentLimit)
		if err == nil {
			data.Recent = recent
			data.Warnings, err = h.dashboard.Warnings(ctx, dashboard.WarningLimit)
		}
		if err != nil {
			requestctx.Logger(ctx).Error("dashboard: load failed", zap.Error(err))
			data.Error = content.UserMessage(err)
		}
	}

	h.renderPage(w, r, "Töölaud", dashboardtpl.Page(data))
}

// SaveStatusReset returns the idle save indicator polled by success and error fragments.
func (h *Handlers) SaveStatusReset(w http.ResponseWriter, r *http.Request) {
	templ.Handler(editor.SaveStatus(editor.SaveStatusData{State: editor.StatusIdle})).ServeHTTP(w, r)
}

func (h *Handlers) renderPage(w http.ResponseWriter, r *http.Request, title string, body templ.Component) {
	ctx := r.Context()
	page := layout.Page{
		Title:       title,
		BasePath:    h.basePath,
		CurrentPath: r.URL.Path,
		CSRFToken:   custommw.CSRFTokenFromContext(ctx),
	}
	if user, ok := custommw.UserFromContext(ctx); ok {
		page.EditorEmail = user.Email
	}
	if sess, ok := custommw.SessionFromContext(ctx); ok {
		if flash := sess.PopFlash(); flash != nil {
			page.Flash = &layout.Flash{Kind: flash.Kind, Message: flash.Message}
		}
	}
	templ.Handler(layout.Shell(page, body)).ServeHTTP(w, r)
}

func (h *Handlers) renderFragment(w http.ResponseWriter, r *http.Request, c templ.Component) {
	templ.Handler(c).ServeHTTP(w, r)
}

func (h *Handlers) saveStatus(w http.ResponseWriter, r *http.Request, err error) {
	data := editor.SaveStatusData{State: editor.StatusSuccess, ResetURL: h.path("fragments", "save-status")}
	if err != nil {
		data.State = editor.StatusError
		data.Message = content.UserMessage(err)
	}
	h.renderFragment(w, r, editor.SaveStatus(data))
}

func (h *Handlers) path(parts ...string) string {
	return helpers.Join(h.basePath, parts...)
}

func logWriteFailure(ctx context.Context, op, section string, err error) {
	requestctx.Logger(ctx).Warn("admin: save failed", zap.String("op", op), zap.String("section", section), zap.Error(err))
}
