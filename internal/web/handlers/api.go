package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/platform/httpx"
	"github.com/almarpuit/site/internal/web/middleware"
)

type milestonePayload struct {
	Label       string      `json:"label"`
	Description domain.Text `json:"description"`
	SortOrder   int         `json:"sort_order"`
}

type requirementPayload struct {
	Title domain.Text   `json:"title"`
	Items []domain.Text `json:"items"`
}

type sectionPayload struct {
	Key          string                      `json:"key"`
	Locale       domain.Locale               `json:"locale"`
	Strings      map[string]string           `json:"strings"`
	Translations map[string]domain.Text      `json:"translations"`
	Images       map[string]content.ImageRef `json:"images"`
	Milestones   []milestonePayload          `json:"milestones,omitempty"`
	Requirement  *requirementPayload         `json:"requirement,omitempty"`
}

// SectionContent returns a section's content as JSON. Strings holds every text
// field resolved for the request locale with the bundled fallback applied.
func (h *Handlers) SectionContent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "section")
	def, ok := domain.LookupSection(key)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("section_not_found", "unknown section", http.StatusNotFound))
		return
	}

	snap := h.content.Section(ctx, def.Key).Snapshot()
	if snap.State == content.StateFailed {
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", content.UserMessage(snap.Err), http.StatusServiceUnavailable))
		return
	}

	lang := middleware.Lang(r)
	sections := map[string]content.Snapshot{def.Key: snap}
	payload := sectionPayload{
		Key:          def.Key,
		Locale:       lang,
		Strings:      map[string]string{},
		Translations: snap.Translations,
		Images:       snap.Images,
	}
	if payload.Translations == nil {
		payload.Translations = map[string]domain.Text{}
	}
	if payload.Images == nil {
		payload.Images = map[string]content.ImageRef{}
	}
	for _, field := range def.Fields {
		if field.Kind == domain.FieldImage {
			continue
		}
		payload.Strings[field.Key] = resolveText(sections, h.bundle, lang, def.Key+"."+field.Key)
	}
	if def.Milestones {
		for _, card := range h.content.Milestones(ctx, def.Key).Cards() {
			payload.Milestones = append(payload.Milestones, milestonePayload{
				Label:       card.Label,
				Description: card.Description(),
				SortOrder:   card.SortOrder,
			})
		}
	}
	if def.Requirements {
		if req, ok := h.content.Requirements(ctx, def.Key).Requirement(); ok {
			payload.Requirement = &requirementPayload{Title: req.Title(), Items: req.Items}
		}
	}
	httpx.WriteJSON(w, http.StatusOK, payload)
}

// GlobalSettings returns the site-wide settings as JSON.
func (h *Handlers) GlobalSettings(w http.ResponseWriter, r *http.Request) {
	settings := h.content.Settings(r.Context()).Current()
	if settings.CompanyName == "" {
		settings.CompanyName = settings.DisplayCompanyName()
	}
	httpx.WriteJSON(w, http.StatusOK, settings)
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports whether the content store answers.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.health.Ping(ctx); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("store_unavailable", "content store unreachable", http.StatusServiceUnavailable))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
