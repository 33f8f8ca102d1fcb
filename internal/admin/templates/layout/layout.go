package layout

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/almarpuit/site/internal/admin/templates/helpers"
	"github.com/almarpuit/site/internal/domain"
)

// Flash is a banner rendered above the page content.
type Flash struct {
	Kind    string
	Message string
}

// Page carries the shell state shared by every admin screen.
type Page struct {
	Title       string
	BasePath    string
	CurrentPath string
	CSRFToken   string
	EditorEmail string
	Flash       *Flash
}

type navItem struct {
	Label string
	Href  string
}

func navigation(base string) []navItem {
	items := []navItem{{Label: "Töölaud", Href: helpers.Join(base)}}
	for _, def := range domain.SectionDefs() {
		items = append(items, navItem{Label: def.Title, Href: helpers.Join(base, "sections", def.Key)})
	}
	return append(items, navItem{Label: "Seaded", Href: helpers.Join(base, "settings")})
}

// Shell wraps body in the admin document.
func Shell(page Page, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<!DOCTYPE html><html lang="et"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.Raw("<title>").Text(page.Title + " | Almar Puit admin").Raw("</title>")
		h.Raw(`<meta name="csrf-token"`).Attr("content", page.CSRFToken).Raw(">")
		h.Raw(`<link rel="stylesheet"`).URL("href", helpers.Join(page.BasePath, "assets", "admin.css")).Raw(">")
		h.Raw(`<script defer src="https://unpkg.com/htmx.org@1.9.12" crossorigin="anonymous"></script>`)
		h.Raw(`<script defer`).URL("src", helpers.Join(page.BasePath, "assets", "admin.js")).Raw("></script>")
		h.Raw(`</head><body class="bg-slate-50"`).Attr("hx-headers", `{"X-CSRF-Token":"`+page.CSRFToken+`"}`).Raw(">")

		h.Raw(`<div class="flex min-h-screen"><aside class="w-64 border-r bg-white p-4"><nav data-nav="sidebar" class="space-y-1">`)
		for _, item := range navigation(page.BasePath) {
			active := isActive(page.CurrentPath, item.Href, page.BasePath)
			h.Raw("<a").URL("href", item.Href).Attr("class", helpers.NavClass(active)).AttrIf(active, `aria-current="page"`).Raw(">").Text(item.Label).Raw("</a>")
		}
		h.Raw(`</nav></aside><div class="flex-1">`)

		h.Raw(`<header class="flex items-center justify-between border-b bg-white px-6 py-3"><span class="font-semibold text-forest-800">OÜ Almar Puit</span>`)
		if page.EditorEmail != "" {
			h.Raw(`<form method="post"`).URL("action", helpers.Join(page.BasePath, "logout")).Raw(` class="flex items-center gap-3">`)
			h.Raw(`<span data-editor-email class="text-sm text-slate-600">`).Text(page.EditorEmail).Raw("</span>")
			h.Raw(`<input type="hidden" name="csrf_token"`).Attr("value", page.CSRFToken).Raw(">")
			h.Raw(`<button type="submit" class="text-sm text-forest-700 hover:underline">Logi välja</button></form>`)
		}
		h.Raw("</header>")

		h.Raw(`<main class="p-6">`)
		if page.Flash != nil && page.Flash.Message != "" {
			h.Component(Banner(page.Flash.Kind, page.Flash.Message))
		}
		h.Component(body)
		h.Raw("</main></div></div></body></html>")
		return h.Err()
	})
}

// Banner renders an inline success or error message.
func Banner(kind, message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "mb-4 border-l-4 border-green-500 bg-green-50 p-4 text-green-800"
		if kind == "error" {
			class = "mb-4 border-l-4 border-red-500 bg-red-50 p-4 text-red-700"
		}
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<div role="alert"`).Attr("data-banner", kind).Attr("class", class).Raw(">").Text(message).Raw("</div>")
		return h.Err()
	})
}

func isActive(current, href, base string) bool {
	if href == helpers.Join(base) {
		return strings.TrimRight(current, "/") == strings.TrimRight(href, "/")
	}
	return current == href || strings.HasPrefix(current, href+"/")
}
