package settings

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/almarpuit/site/internal/admin/templates/helpers"
	"github.com/almarpuit/site/internal/domain"
)

// PageData is rendered by Form.
type PageData struct {
	BasePath string
	Settings domain.GlobalSettings
	Error    string
	Saved    bool
}

type field struct {
	name  string
	label string
	kind  string
	value string
}

func fields(s domain.GlobalSettings) []field {
	return []field{
		{name: "company_name", label: "Ettevõtte nimi", kind: "text", value: s.CompanyName},
		{name: "industry_address", label: "Tootmise aadress", kind: "text", value: s.IndustryAddress},
		{name: "legal_address", label: "Juriidiline aadress", kind: "text", value: s.LegalAddress},
		{name: "contact_phone", label: "Telefon", kind: "tel", value: s.ContactPhone},
		{name: "contact_email", label: "E-post", kind: "email", value: s.ContactEmail},
		{name: "form_target_email", label: "Kontaktivormi saaja", kind: "email", value: s.FormTargetEmail},
		{name: "meta_title_et", label: "SEO pealkiri (eesti)", kind: "text", value: s.MetaTitle.ET},
		{name: "meta_title_en", label: "SEO pealkiri (inglise)", kind: "text", value: s.MetaTitle.EN},
		{name: "meta_description_et", label: "SEO kirjeldus (eesti)", kind: "textarea", value: s.MetaDescription.ET},
		{name: "meta_description_en", label: "SEO kirjeldus (inglise)", kind: "textarea", value: s.MetaDescription.EN},
	}
}

// Page renders the settings screen.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<h1 class="mb-6 text-2xl font-semibold">Seaded</h1>`)
		h.Component(Form(data))
		return h.Err()
	})
}

// Form renders the settings form; it is also the htmx swap target.
func Form(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<form id="settings-form" class="max-w-2xl space-y-4 rounded-lg border bg-white p-4"`).
			URL("hx-post", helpers.Join(data.BasePath, "settings")).Raw(` hx-target="#settings-form" hx-swap="outerHTML">`)
		if data.Error != "" {
			h.Raw(`<div role="alert" data-banner="error" class="border-l-4 border-red-500 bg-red-50 p-3 text-red-700">`).Text(data.Error).Raw("</div>")
		}
		if data.Saved {
			h.Raw(`<div data-banner="success" class="border-l-4 border-green-500 bg-green-50 p-3 text-green-800">Seaded salvestatud.</div>`)
		}
		for _, f := range fields(data.Settings) {
			h.Raw(`<label class="block text-sm">`).Text(f.label)
			if f.kind == "textarea" {
				h.Raw(`<textarea rows="3" class="mt-1 w-full rounded border px-3 py-2"`).Attr("name", f.name).Raw(">").Text(f.value).Raw("</textarea>")
			} else {
				h.Raw(`<input class="mt-1 w-full rounded border px-3 py-2"`).Attr("type", f.kind).Attr("name", f.name).Attr("value", f.value).Raw(">")
			}
			h.Raw("</label>")
		}
		h.Raw(`<button type="submit" class="rounded bg-forest-700 px-4 py-2 text-white">Salvesta</button></form>`)
		return h.Err()
	})
}
