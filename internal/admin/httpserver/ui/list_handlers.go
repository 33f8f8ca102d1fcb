package ui

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/almarpuit/site/internal/admin/templates/editor"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/domain"
)

var errBadInput = errors.New("ui: invalid form input")

func (h *Handlers) milestonesData(r *http.Request, key string, err error) editor.MilestonesData {
	handle := h.content.Milestones(r.Context(), key)
	data := editor.MilestonesData{
		BasePath: h.basePath,
		Key:      key,
		Cards:    handle.Cards(),
		Saved:    err == nil && r.Method == http.MethodPost,
	}
	if err == nil {
		if state, fetchErr := handle.State(); state == content.StateFailed {
			err = fetchErr
		}
	}
	data.Error = formMessage(err)
	return data
}

func (h *Handlers) requirementsData(r *http.Request, key string, err error) editor.RequirementsData {
	handle := h.content.Requirements(r.Context(), key)
	req, exists := handle.Requirement()
	data := editor.RequirementsData{
		BasePath:    h.basePath,
		Key:         key,
		Requirement: req,
		Exists:      exists,
		Saved:       err == nil && r.Method == http.MethodPost,
	}
	if err == nil {
		if state, fetchErr := handle.State(); state == content.StateFailed {
			err = fetchErr
		}
	}
	data.Error = formMessage(err)
	return data
}

func formMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, errBadInput) {
		return "Kontrolli sisestatud andmeid."
	}
	return content.UserMessage(err)
}

func milestoneSection(w http.ResponseWriter, r *http.Request) (domain.SectionDef, bool) {
	def, ok := lookupSection(w, r)
	if ok && !def.Milestones {
		http.NotFound(w, r)
		return def, false
	}
	return def, ok
}

func requirementSection(w http.ResponseWriter, r *http.Request) (domain.SectionDef, bool) {
	def, ok := lookupSection(w, r)
	if ok && !def.Requirements {
		http.NotFound(w, r)
		return def, false
	}
	return def, ok
}

// CreateMilestone appends a card at the end of the timeline.
func (h *Handlers) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	def, ok := milestoneSection(w, r)
	if !ok {
		return
	}
	err := r.ParseForm()
	if err == nil {
		label := strings.TrimSpace(r.PostFormValue("label"))
		if label == "" {
			err = errBadInput
		} else {
			_, err = h.content.Milestones(r.Context(), def.Key).Create(r.Context(), domain.MilestoneDraft{
				Label:         label,
				DescriptionET: r.PostFormValue("description_et"),
				DescriptionEN: r.PostFormValue("description_en"),
			})
		}
	}
	h.renderMilestones(w, r, def.Key, "milestone create", err)
}

// UpdateMilestone edits the label and descriptions of one card.
func (h *Handlers) UpdateMilestone(w http.ResponseWriter, r *http.Request) {
	def, ok := milestoneSection(w, r)
	if !ok {
		return
	}
	err := r.ParseForm()
	if err == nil {
		label := strings.TrimSpace(r.PostFormValue("label"))
		descET := r.PostFormValue("description_et")
		descEN := r.PostFormValue("description_en")
		if label == "" {
			err = errBadInput
		} else {
			err = h.content.Milestones(r.Context(), def.Key).Update(r.Context(), chi.URLParam(r, "id"), domain.MilestonePatch{
				Label:         &label,
				DescriptionET: &descET,
				DescriptionEN: &descEN,
			})
		}
	}
	h.renderMilestones(w, r, def.Key, "milestone update", err)
}

// DeleteMilestone removes one card.
func (h *Handlers) DeleteMilestone(w http.ResponseWriter, r *http.Request) {
	def, ok := milestoneSection(w, r)
	if !ok {
		return
	}
	err := h.content.Milestones(r.Context(), def.Key).Delete(r.Context(), chi.URLParam(r, "id"))
	h.renderMilestones(w, r, def.Key, "milestone delete", err)
}

// ReorderMilestones applies a comma separated id order.
func (h *Handlers) ReorderMilestones(w http.ResponseWriter, r *http.Request) {
	def, ok := milestoneSection(w, r)
	if !ok {
		return
	}
	err := r.ParseForm()
	if err == nil {
		var ids []string
		for _, id := range strings.Split(r.PostFormValue("order"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			err = errBadInput
		} else {
			err = h.content.Milestones(r.Context(), def.Key).Reorder(r.Context(), ids)
		}
	}
	h.renderMilestones(w, r, def.Key, "milestone reorder", err)
}

func (h *Handlers) renderMilestones(w http.ResponseWriter, r *http.Request, key, op string, err error) {
	if err != nil {
		logWriteFailure(r.Context(), op, key, err)
	}
	h.renderFragment(w, r, editor.MilestoneList(h.milestonesData(r, key, err)))
}

// UpdateRequirement saves the requirement titles, creating the record when absent.
func (h *Handlers) UpdateRequirement(w http.ResponseWriter, r *http.Request) {
	def, ok := requirementSection(w, r)
	if !ok {
		return
	}
	err := r.ParseForm()
	if err == nil {
		titleET := r.PostFormValue("title_et")
		titleEN := r.PostFormValue("title_en")
		err = h.content.Requirements(r.Context(), def.Key).Update(r.Context(), domain.RequirementPatch{
			TitleET: &titleET,
			TitleEN: &titleEN,
		})
	}
	h.renderRequirements(w, r, def.Key, "requirement update", err)
}

// AddRequirementItem appends an item.
func (h *Handlers) AddRequirementItem(w http.ResponseWriter, r *http.Request) {
	def, ok := requirementSection(w, r)
	if !ok {
		return
	}
	item, err := itemFromForm(r)
	if err == nil {
		err = h.content.Requirements(r.Context(), def.Key).AddItem(r.Context(), item)
	}
	h.renderRequirements(w, r, def.Key, "requirement item add", err)
}

// UpdateRequirementItem replaces the item at {index}.
func (h *Handlers) UpdateRequirementItem(w http.ResponseWriter, r *http.Request) {
	def, ok := requirementSection(w, r)
	if !ok {
		return
	}
	index, err := itemIndex(r)
	var item domain.Text
	if err == nil {
		item, err = itemFromForm(r)
	}
	if err == nil {
		err = h.content.Requirements(r.Context(), def.Key).UpdateItem(r.Context(), index, item)
	}
	h.renderRequirements(w, r, def.Key, "requirement item update", err)
}

// RemoveRequirementItem deletes the item at {index}.
func (h *Handlers) RemoveRequirementItem(w http.ResponseWriter, r *http.Request) {
	def, ok := requirementSection(w, r)
	if !ok {
		return
	}
	index, err := itemIndex(r)
	if err == nil {
		err = h.content.Requirements(r.Context(), def.Key).RemoveItem(r.Context(), index)
	}
	h.renderRequirements(w, r, def.Key, "requirement item remove", err)
}

// MoveRequirementItem swaps the item at {index} with its neighbour.
func (h *Handlers) MoveRequirementItem(w http.ResponseWriter, r *http.Request) {
	def, ok := requirementSection(w, r)
	if !ok {
		return
	}
	index, err := itemIndex(r)
	if err == nil {
		err = r.ParseForm()
	}
	if err == nil {
		handle := h.content.Requirements(r.Context(), def.Key)
		req, exists := handle.Requirement()
		target := index - 1
		if r.PostFormValue("direction") == "down" {
			target = index + 1
		}
		switch {
		case !exists:
			err = content.ErrNoRequirement
		case index < 0 || index >= len(req.Items) || target < 0 || target >= len(req.Items):
			err = content.ErrItemIndex
		default:
			items := req.Items
			items[index], items[target] = items[target], items[index]
			err = handle.ReorderItems(r.Context(), items)
		}
	}
	h.renderRequirements(w, r, def.Key, "requirement item move", err)
}

func (h *Handlers) renderRequirements(w http.ResponseWriter, r *http.Request, key, op string, err error) {
	if err != nil {
		logWriteFailure(r.Context(), op, key, err)
	}
	h.renderFragment(w, r, editor.RequirementEditor(h.requirementsData(r, key, err)))
}

func itemFromForm(r *http.Request) (domain.Text, error) {
	if err := r.ParseForm(); err != nil {
		return domain.Text{}, errBadInput
	}
	item := domain.Text{
		ET: strings.TrimSpace(r.PostFormValue("et")),
		EN: strings.TrimSpace(r.PostFormValue("en")),
	}
	if item.ET == "" && item.EN == "" {
		return item, errBadInput
	}
	return item, nil
}

func itemIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, errBadInput
	}
	return index, nil
}
