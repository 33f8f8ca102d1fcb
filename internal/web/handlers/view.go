package handlers

import (
	"html/template"
	"strings"

	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/web/i18n"
)

// Contact form outcomes shown as a banner above the form.
const (
	ContactSent    = "sent"
	ContactError   = "error"
	ContactInvalid = "invalid"
)

// SEOData carries the head metadata of the page.
type SEOData struct {
	Title       string
	Description string
	Canonical   string
	Alternates  []Alternate
}

// Alternate is an hreflang link.
type Alternate struct {
	Href     string
	Hreflang string
}

// MilestoneView is a milestone card projected into the active locale.
type MilestoneView struct {
	Label       string
	Description string
}

// RequirementView is the requirement list projected into the active locale.
type RequirementView struct {
	Title string
	Items []string
}

// ContactForm echoes the submitted values back after a failed submission.
type ContactForm struct {
	Name    string
	Email   string
	Message string
	Status  string
}

// PageData is the view model for the one-page site.
type PageData struct {
	Lang        domain.Locale
	Toggle      domain.Locale
	Year        int
	Settings    domain.GlobalSettings
	SEO         SEOData
	Milestones  []MilestoneView
	Requirement *RequirementView
	Contact     ContactForm

	sections map[string]content.Snapshot
	bundle   *i18n.Bundle
	md       *markdown
}

// T returns the text for "<section>.<field>": the remote value for the active
// locale, then the bundled string, then the key itself.
func (p *PageData) T(key string) string {
	return resolveText(p.sections, p.bundle, p.Lang, key)
}

// Markdown renders T(key) as sanitised HTML.
func (p *PageData) Markdown(key string) template.HTML {
	return p.md.Render(p.T(key))
}

// Image returns the remote image for "<section>.<field>".
func (p *PageData) Image(key string) content.ImageRef {
	section, field, ok := strings.Cut(key, ".")
	if !ok {
		return content.ImageRef{}
	}
	snap, ok := p.sections[section]
	if !ok {
		return content.ImageRef{}
	}
	return snap.Images[field]
}

// CompanyName returns the configured company name or the default.
func (p *PageData) CompanyName() string {
	return p.Settings.DisplayCompanyName()
}

func resolveText(sections map[string]content.Snapshot, bundle *i18n.Bundle, locale domain.Locale, key string) string {
	if section, field, ok := strings.Cut(key, "."); ok {
		if snap, ok := sections[section]; ok {
			if v := snap.Get(field, locale); strings.TrimSpace(v) != "" {
				return v
			}
		}
	}
	if bundle == nil {
		return key
	}
	return bundle.T(locale, key)
}

func projectMilestones(cards []domain.MilestoneCard, locale domain.Locale) []MilestoneView {
	out := make([]MilestoneView, 0, len(cards))
	for _, card := range cards {
		out = append(out, MilestoneView{
			Label:       card.Label,
			Description: card.Description().Get(locale),
		})
	}
	return out
}

func projectRequirement(req domain.ProductRequirement, locale domain.Locale, fallbackTitle string) *RequirementView {
	view := &RequirementView{Title: req.Title().Get(locale)}
	if strings.TrimSpace(view.Title) == "" {
		view.Title = fallbackTitle
	}
	for _, item := range req.Items {
		v := item.Get(locale)
		if strings.TrimSpace(v) == "" {
			v = item.ET
		}
		if strings.TrimSpace(v) != "" {
			view.Items = append(view.Items, v)
		}
	}
	return view
}
