package handlers

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/platform/mail"
	"github.com/almarpuit/site/internal/platform/requestctx"
	"github.com/almarpuit/site/internal/repositories"
	"github.com/almarpuit/site/internal/web/i18n"
	"github.com/almarpuit/site/internal/web/middleware"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// ContentSource exposes the watched content handles. *content.Hub satisfies it.
type ContentSource interface {
	Section(ctx context.Context, key string) *content.Section
	Milestones(ctx context.Context, key string) *content.Milestones
	Requirements(ctx context.Context, key string) *content.Requirements
	Settings(ctx context.Context) *content.Settings
}

// Dependencies wires the public site handlers.
type Dependencies struct {
	Content   ContentSource
	Bundle    *i18n.Bundle
	Mail      mail.Sender
	Health    repositories.HealthRepository
	PublicURL string
	Now       func() time.Time
}

// Handlers serves the public site pages and JSON API.
type Handlers struct {
	content   ContentSource
	bundle    *i18n.Bundle
	mail      mail.Sender
	health    repositories.HealthRepository
	publicURL string
	now       func() time.Time
	tmpl      *template.Template
	md        *markdown
}

// New parses the embedded templates and returns the handlers.
func New(deps Dependencies) (*Handlers, error) {
	if deps.Content == nil {
		return nil, errors.New("web handlers: content source is required")
	}
	if deps.Bundle == nil {
		return nil, errors.New("web handlers: i18n bundle is required")
	}
	tmpl, err := template.New("site").ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("web handlers: parse templates: %w", err)
	}
	sender := deps.Mail
	if sender == nil {
		sender = mail.Discard{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		content:   deps.Content,
		bundle:    deps.Bundle,
		mail:      sender,
		health:    deps.Health,
		publicURL: strings.TrimRight(deps.PublicURL, "/"),
		now:       now,
		tmpl:      tmpl,
		md:        newMarkdown(),
	}, nil
}

// Home renders the one-page site.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r)
	if status := r.URL.Query().Get("contact"); status == ContactSent {
		data.Contact.Status = ContactSent
	}
	h.render(w, r, http.StatusOK, data)
}

func (h *Handlers) pageData(r *http.Request) *PageData {
	ctx := r.Context()
	lang := middleware.Lang(r)

	sections := make(map[string]content.Snapshot, len(domain.SectionKeys))
	for _, key := range domain.SectionKeys {
		sections[key] = h.content.Section(ctx, key).Snapshot()
	}
	settings := h.content.Settings(ctx).Current()

	data := &PageData{
		Lang:     lang,
		Toggle:   lang.Toggle(),
		Year:     h.now().Year(),
		Settings: settings,
		sections: sections,
		bundle:   h.bundle,
		md:       h.md,
	}
	data.SEO = h.seo(settings, lang)
	data.Milestones = projectMilestones(h.content.Milestones(ctx, domain.SectionAbout).Cards(), lang)
	if req, ok := h.content.Requirements(ctx, domain.SectionWoodPurchase).Requirement(); ok {
		data.Requirement = projectRequirement(req, lang, h.bundle.T(lang, "woodPurchase.requirements"))
	}
	return data
}

func (h *Handlers) seo(settings domain.GlobalSettings, lang domain.Locale) SEOData {
	seo := SEOData{
		Title:       settings.MetaTitle.Get(lang),
		Description: settings.MetaDescription.Get(lang),
	}
	if strings.TrimSpace(seo.Title) == "" {
		seo.Title = h.bundle.T(lang, "meta.title")
	}
	if strings.TrimSpace(seo.Description) == "" {
		seo.Description = h.bundle.T(lang, "meta.description")
	}
	if h.publicURL != "" {
		seo.Canonical = localizedURL(h.publicURL+"/", lang)
		for _, locale := range domain.Locales {
			seo.Alternates = append(seo.Alternates, Alternate{
				Href:     localizedURL(h.publicURL+"/", locale),
				Hreflang: string(locale),
			})
		}
	}
	return seo
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, data *PageData) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		requestctx.Logger(r.Context()).Error("render page failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func localizedURL(base string, locale domain.Locale) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("hl", string(locale))
	u.RawQuery = q.Encode()
	return u.String()
}
