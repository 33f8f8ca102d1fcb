package editor

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/almarpuit/site/internal/admin/templates/helpers"
	"github.com/almarpuit/site/internal/domain"
)

// MilestonesData is rendered by MilestoneList.
type MilestonesData struct {
	BasePath string
	Key      string
	Cards    []domain.MilestoneCard
	Error    string
	Saved    bool
}

func (d MilestonesData) path(parts ...string) string {
	return helpers.Join(d.BasePath, append([]string{"sections", d.Key, "milestones"}, parts...)...)
}

// MilestoneList renders the ordered milestone cards. Every form swaps the
// whole list so ordering stays consistent after a write.
func MilestoneList(data MilestonesData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<section id="milestones" class="mb-6 rounded-lg border bg-white p-4">`)
		h.Raw(`<h2 class="mb-3 font-medium">Ajajoon</h2>`)
		h.Component(ErrorBanner(data.Error))
		if data.Saved {
			h.Component(SaveStatus(SaveStatusData{State: StatusSuccess}))
		}
		h.Raw(`<ol data-list="milestones" class="space-y-3">`)
		for i, card := range data.Cards {
			h.Component(milestoneCard(data, card, i))
		}
		h.Raw("</ol>")

		h.Raw(`<form data-form="milestone-create" class="mt-4 space-y-2 border-t pt-4"`).URL("hx-post", data.path()).
			Raw(` hx-target="#milestones" hx-swap="outerHTML">`)
		h.Component(milestoneInputs(domain.MilestoneCard{}))
		h.Raw(`<button type="submit" class="rounded bg-forest-700 px-3 py-1 text-sm text-white">Lisa verstapost</button></form>`)
		h.Raw("</section>")
		return h.Err()
	})
}

func milestoneCard(data MilestonesData, card domain.MilestoneCard, index int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<li class="rounded border p-3"`).Attr("data-card", card.ID).Attr("data-sort-order", strconv.Itoa(card.SortOrder)).Raw(">")
		h.Raw(`<form class="space-y-2"`).URL("hx-post", data.path(card.ID)).Raw(` hx-target="#milestones" hx-swap="outerHTML">`)
		h.Component(milestoneInputs(card))
		h.Raw(`<div class="flex gap-2"><button type="submit" class="rounded bg-forest-700 px-3 py-1 text-sm text-white">Salvesta</button>`)
		h.Raw("<button").URL("hx-post", data.path(card.ID, "delete")).
			Raw(` hx-target="#milestones" hx-swap="outerHTML" hx-confirm="Kustutada verstapost?" type="button" class="rounded border px-3 py-1 text-sm text-red-700">Kustuta</button>`)
		if index > 0 {
			h.Component(moveButton(data.path("reorder"), swapIDs(data.Cards, index, index-1), "Üles"))
		}
		if index < len(data.Cards)-1 {
			h.Component(moveButton(data.path("reorder"), swapIDs(data.Cards, index, index+1), "Alla"))
		}
		h.Raw("</div></form></li>")
		return h.Err()
	})
}

func milestoneInputs(card domain.MilestoneCard) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<label class="block text-sm">Aasta või silt<input type="text" name="label" required class="mt-1 w-full rounded border px-2 py-1"`).Attr("value", card.Label).Raw("></label>")
		h.Raw(`<label class="block text-sm">Kirjeldus (eesti)<textarea name="description_et" rows="2" class="mt-1 w-full rounded border px-2 py-1">`).Text(card.DescriptionET).Raw("</textarea></label>")
		h.Raw(`<label class="block text-sm">Kirjeldus (inglise)<textarea name="description_en" rows="2" class="mt-1 w-full rounded border px-2 py-1">`).Text(card.DescriptionEN).Raw("</textarea></label>")
		return h.Err()
	})
}

func moveButton(action string, ids []string, label string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw("<button type=\"button\"").URL("hx-post", action).Attr("hx-vals", `{"order":`+strconv.Quote(strings.Join(ids, ","))+`}`).
			Raw(` hx-target="#milestones" hx-swap="outerHTML" class="rounded border px-2 py-1 text-sm">`).Text(label).Raw("</button>")
		return h.Err()
	})
}

func swapIDs(cards []domain.MilestoneCard, i, j int) []string {
	ids := make([]string, len(cards))
	for n, card := range cards {
		ids[n] = card.ID
	}
	ids[i], ids[j] = ids[j], ids[i]
	return ids
}

// RequirementsData is rendered by RequirementEditor.
type RequirementsData struct {
	BasePath    string
	Key         string
	Requirement domain.ProductRequirement
	Exists      bool
	Error       string
	Saved       bool
}

func (d RequirementsData) path(parts ...string) string {
	return helpers.Join(d.BasePath, append([]string{"sections", d.Key, "requirements"}, parts...)...)
}

// RequirementEditor renders the requirement title and its item list.
func RequirementEditor(data RequirementsData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<section id="requirements" class="mb-6 rounded-lg border bg-white p-4">`)
		h.Raw(`<h2 class="mb-3 font-medium">Nõuded</h2>`)
		h.Component(ErrorBanner(data.Error))
		if data.Saved {
			h.Component(SaveStatus(SaveStatusData{State: StatusSuccess}))
		}

		h.Raw(`<form data-form="requirement-title" class="mb-4 space-y-2"`).URL("hx-post", data.path()).
			Raw(` hx-target="#requirements" hx-swap="outerHTML">`)
		h.Raw(`<label class="block text-sm">Pealkiri (eesti)<input type="text" name="title_et" class="mt-1 w-full rounded border px-2 py-1"`).Attr("value", data.Requirement.TitleET).Raw("></label>")
		h.Raw(`<label class="block text-sm">Pealkiri (inglise)<input type="text" name="title_en" class="mt-1 w-full rounded border px-2 py-1"`).Attr("value", data.Requirement.TitleEN).Raw("></label>")
		h.Raw(`<button type="submit" class="rounded bg-forest-700 px-3 py-1 text-sm text-white">Salvesta pealkiri</button></form>`)

		if !data.Exists {
			h.Raw(`<p data-empty="requirements" class="text-sm text-slate-500">Nõuete kirje puudub. Salvesta pealkiri, et alustada.</p></section>`)
			return h.Err()
		}

		h.Raw(`<ol data-list="requirement-items" class="space-y-2">`)
		items := data.Requirement.Items
		for i, item := range items {
			idx := strconv.Itoa(i)
			h.Raw(`<li class="flex items-end gap-2"`).Attr("data-item", idx).Raw(">")
			h.Raw(`<form class="flex flex-1 items-end gap-2"`).URL("hx-post", data.path("items", idx)).
				Raw(` hx-target="#requirements" hx-swap="outerHTML">`)
			h.Component(itemInputs(item))
			h.Raw(`<button type="submit" class="rounded border px-2 py-1 text-sm">Salvesta</button></form>`)
			if i > 0 {
				h.Component(itemAction(data.path("items", idx, "move"), `{"direction":"up"}`, "Üles"))
			}
			if i < len(items)-1 {
				h.Component(itemAction(data.path("items", idx, "move"), `{"direction":"down"}`, "Alla"))
			}
			h.Component(itemAction(data.path("items", idx, "delete"), "", "Eemalda"))
			h.Raw("</li>")
		}
		h.Raw("</ol>")

		h.Raw(`<form data-form="requirement-item-create" class="mt-4 flex items-end gap-2 border-t pt-4"`).URL("hx-post", data.path("items")).
			Raw(` hx-target="#requirements" hx-swap="outerHTML">`)
		h.Component(itemInputs(domain.Text{}))
		h.Raw(`<button type="submit" class="rounded bg-forest-700 px-3 py-1 text-sm text-white">Lisa</button></form>`)
		h.Raw("</section>")
		return h.Err()
	})
}

func itemInputs(item domain.Text) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<label class="flex-1 text-sm">Eesti<input type="text" name="et" class="mt-1 w-full rounded border px-2 py-1"`).Attr("value", item.ET).Raw("></label>")
		h.Raw(`<label class="flex-1 text-sm">Inglise<input type="text" name="en" class="mt-1 w-full rounded border px-2 py-1"`).Attr("value", item.EN).Raw("></label>")
		return h.Err()
	})
}

func itemAction(action, vals, label string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<button type="button" class="rounded border px-2 py-1 text-sm"`).URL("hx-post", action)
		if vals != "" {
			h.Attr("hx-vals", vals)
		}
		h.Raw(` hx-target="#requirements" hx-swap="outerHTML">`).Text(label).Raw("</button>")
		return h.Err()
	})
}
