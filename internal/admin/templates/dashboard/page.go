package dashboard

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/almarpuit/site/internal/admin/templates/helpers"
	"github.com/almarpuit/site/internal/domain"
)

// PageData is rendered by Page.
type PageData struct {
	BasePath string
	Now      time.Time
	Recent   []domain.SectionSummary
	Warnings []domain.ContentWarning
	Error    string
}

// Page renders the dashboard body.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<h1 class="mb-6 text-2xl font-semibold">Töölaud</h1>`)
		if data.Error != "" {
			h.Raw(`<div role="alert" data-banner="error" class="mb-4 border-l-4 border-red-500 bg-red-50 p-4 text-red-700">`).Text(data.Error).Raw("</div>")
		}
		h.Component(recentTable(data))
		h.Component(warningList(data))
		return h.Err()
	})
}

func recentTable(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<section class="mb-8"><h2 class="mb-3 text-lg font-medium">Viimati muudetud</h2>`)
		if len(data.Recent) == 0 {
			h.Raw(`<p data-empty="recent" class="text-sm text-slate-500">Muudatusi pole veel tehtud.</p></section>`)
			return h.Err()
		}
		h.Raw(`<table data-table="recent" class="w-full text-sm"><thead><tr><th class="text-left">Sektsioon</th><th class="text-left">Tõlkeid</th><th class="text-left">Pilte</th><th class="text-left">Muudetud</th></tr></thead><tbody>`)
		for _, row := range data.Recent {
			h.Raw("<tr").Attr("data-section", row.Section.Key).Raw("><td>")
			h.Raw("<a").URL("href", helpers.Join(data.BasePath, "sections", row.Section.Key)).Raw(">").Text(helpers.SectionTitle(row.Section.Key)).Raw("</a></td>")
			h.Raw("<td>").Text(strconv.Itoa(row.TranslationCount)).Raw("</td>")
			h.Raw("<td>").Text(strconv.Itoa(row.ImageCount)).Raw("</td>")
			h.Raw("<td").Attr("title", helpers.Date(row.Section.UpdatedAt)).Raw(">").Text(helpers.Relative(row.Section.UpdatedAt, data.Now)).Raw("</td></tr>")
		}
		h.Raw("</tbody></table></section>")
		return h.Err()
	})
}

func warningList(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<section><h2 class="mb-3 text-lg font-medium">Puuduv sisu</h2>`)
		if len(data.Warnings) == 0 {
			h.Raw(`<p data-empty="warnings" class="text-sm text-green-700">Kogu sisu on olemas.</p></section>`)
			return h.Err()
		}
		h.Raw(`<ul data-list="warnings" class="space-y-2 text-sm">`)
		for _, warning := range data.Warnings {
			h.Raw("<li").Attr("data-kind", string(warning.Kind)).Raw(` class="rounded border border-amber-200 bg-amber-50 p-2">`)
			h.Raw("<a").URL("href", helpers.Join(data.BasePath, "sections", warning.SectionKey)).Raw(">").Text(helpers.SectionTitle(warning.SectionKey)).Raw("</a>: ")
			h.Text(warningText(warning))
			h.Raw("</li>")
		}
		h.Raw("</ul></section>")
		return h.Err()
	})
}

func warningText(warning domain.ContentWarning) string {
	if warning.Kind == domain.WarningMissingImage {
		return "puudub pilt " + warning.Field
	}
	return "puudub tõlge " + warning.Field + " (" + helpers.LocaleLabel(warning.Locale) + ")"
}
