package editor

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	"github.com/almarpuit/site/internal/admin/templates/helpers"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/domain"
)

// FieldView is one editable field with its current values.
type FieldView struct {
	Def   domain.FieldDef
	Value domain.Text
	Image content.ImageRef
}

// SectionPageData is rendered by SectionPage.
type SectionPageData struct {
	BasePath       string
	Key            string
	Title          string
	Fields         []FieldView
	Milestones     *MilestonesData
	Requirements   *RequirementsData
	Error          string
	LiveURL        string
	UploadsEnabled bool
	MaxUploadBytes int64
}

func (d SectionPageData) path(parts ...string) string {
	return helpers.Join(d.BasePath, append([]string{"sections", d.Key}, parts...)...)
}

// SectionPage renders the editor for one section.
func SectionPage(data SectionPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<div data-editor`).Attr("data-section", data.Key)
		if data.LiveURL != "" {
			h.Attr("data-live-url", data.LiveURL)
		}
		h.Raw(">")
		h.Raw(`<h1 class="mb-6 text-2xl font-semibold">`).Text(data.Title).Raw("</h1>")
		h.Raw(`<div id="live-banner" hidden class="mb-4 rounded bg-amber-50 p-3 text-sm text-amber-800">Sisu muudeti mujal. <a href="">Laadi uuesti</a></div>`)
		h.Component(ErrorBanner(data.Error))
		for _, field := range data.Fields {
			h.Component(fieldCard(data, field))
		}
		if data.Milestones != nil {
			h.Component(MilestoneList(*data.Milestones))
		}
		if data.Requirements != nil {
			h.Component(RequirementEditor(*data.Requirements))
		}
		h.Raw("</div>")
		return h.Err()
	})
}

func fieldCard(data SectionPageData, field FieldView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<section class="mb-6 rounded-lg border bg-white p-4"`).Attr("data-field", field.Def.Key).Raw(">")
		h.Raw(`<h2 class="mb-3 font-medium">`).Text(field.Def.Label).Raw("</h2>")
		if field.Def.Kind == domain.FieldImage {
			h.Component(imageForms(data, field))
		} else {
			locales := domain.Locales
			if field.Def.Monolingual {
				locales = []domain.Locale{domain.LocaleET}
			}
			for _, locale := range locales {
				h.Component(translationForm(data, field, locale))
			}
		}
		h.Raw("</section>")
		return h.Err()
	})
}

func statusID(field, suffix string) string {
	return "status-" + field + "-" + suffix
}

func translationForm(data SectionPageData, field FieldView, locale domain.Locale) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		target := statusID(field.Def.Key, string(locale))
		h.Raw(`<form class="mb-3"`).Attr("data-locale", string(locale)).
			URL("hx-post", data.path("translations", field.Def.Key)).
			Attr("hx-target", "#"+target).Raw(` hx-swap="innerHTML">`)
		h.Raw(`<input type="hidden" name="lang"`).Attr("value", string(locale)).Raw(">")
		h.Raw(`<label class="block text-sm text-slate-600">`).Text(helpers.LocaleLabel(locale))
		value := field.Value.Get(locale)
		if field.Def.Kind == domain.FieldTextarea {
			h.Raw(`<textarea name="value" rows="4" class="mt-1 w-full rounded border px-3 py-2">`).Text(value).Raw("</textarea>")
		} else {
			h.Raw(`<input type="text" name="value" class="mt-1 w-full rounded border px-3 py-2"`).Attr("value", value).Raw(">")
		}
		h.Raw("</label>")
		h.Raw(`<div class="mt-1 flex items-center gap-3"><button type="submit" class="rounded bg-forest-700 px-3 py-1 text-sm text-white">Salvesta</button>`)
		h.Raw("<span").Attr("id", target).Raw(">").Component(SaveStatus(SaveStatusData{State: StatusIdle})).Raw("</span></div>")
		h.Raw("</form>")
		return h.Err()
	})
}

func imageForms(data SectionPageData, field FieldView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		target := statusID(field.Def.Key, "image")
		if field.Image.URL != "" {
			h.Raw(`<img class="mb-3 max-h-40 rounded"`).URL("src", field.Image.URL).Attr("alt", field.Image.Alt()).Raw(">")
		}
		h.Raw(`<form class="mb-3 space-y-2"`).URL("hx-post", data.path("images", field.Def.Key)).
			Attr("hx-target", "#"+target).Raw(` hx-swap="innerHTML">`)
		h.Raw(`<label class="block text-sm text-slate-600">Pildi aadress<input type="url" name="url" class="mt-1 w-full rounded border px-3 py-2"`).Attr("value", field.Image.URL).Raw("></label>")
		h.Raw(`<label class="block text-sm text-slate-600">Alternatiivtekst<input type="text" name="alt" class="mt-1 w-full rounded border px-3 py-2"`).Attr("value", field.Image.Alt()).Raw("></label>")
		h.Raw(`<div class="flex items-center gap-3"><button type="submit" class="rounded bg-forest-700 px-3 py-1 text-sm text-white">Salvesta</button>`)
		h.Raw("<span").Attr("id", target).Raw(">").Component(SaveStatus(SaveStatusData{State: StatusIdle})).Raw("</span></div></form>")

		if data.UploadsEnabled {
			h.Raw(`<form hx-encoding="multipart/form-data" class="flex items-center gap-3"`).
				URL("hx-post", data.path("images", field.Def.Key, "upload")).
				Attr("hx-target", "#"+target).Raw(` hx-swap="innerHTML">`)
			h.Raw(`<input type="file" name="file" accept="image/jpeg,image/png,image/webp,image/gif">`)
			h.Raw(`<span class="text-xs text-slate-500">max `).Text(strconv.FormatInt(data.MaxUploadBytes>>20, 10)).Raw(" MB</span>")
			h.Raw(`<button type="submit" class="rounded border px-3 py-1 text-sm">Laadi üles</button></form>`)
		}
		return h.Err()
	})
}
