package ui

import (
	"net/http"
	"strings"

	"github.com/almarpuit/site/internal/admin/templates/settings"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/domain"
)

// Settings renders the global settings page.
func (h *Handlers) Settings(w http.ResponseWriter, r *http.Request) {
	handle := h.content.Settings(r.Context())
	data := settings.PageData{BasePath: h.basePath, Settings: handle.Current()}
	if state, err := handle.State(); state == content.StateFailed {
		data.Error = content.UserMessage(err)
	}
	h.renderPage(w, r, "Seaded", settings.Page(data))
}

// UpdateSettings merges the submitted form into the settings object.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	handle := h.content.Settings(ctx)

	err := r.ParseForm()
	if err == nil {
		err = handle.Update(ctx, settingsPatch(r))
	}
	data := settings.PageData{BasePath: h.basePath, Settings: handle.Current(), Saved: err == nil}
	if err != nil {
		logWriteFailure(ctx, "settings", domain.GlobalSettingsKey, err)
		data.Error = formMessage(err)
	}
	h.renderFragment(w, r, settings.Form(data))
}

func settingsPatch(r *http.Request) domain.SettingsPatch {
	field := func(name string) *string {
		if _, ok := r.PostForm[name]; !ok {
			return nil
		}
		v := strings.TrimSpace(r.PostFormValue(name))
		return &v
	}
	text := func(prefix string) *domain.Text {
		et, en := field(prefix+"_et"), field(prefix+"_en")
		if et == nil && en == nil {
			return nil
		}
		var t domain.Text
		if et != nil {
			t.ET = *et
		}
		if en != nil {
			t.EN = *en
		}
		return &t
	}
	return domain.SettingsPatch{
		CompanyName:     field("company_name"),
		IndustryAddress: field("industry_address"),
		LegalAddress:    field("legal_address"),
		ContactPhone:    field("contact_phone"),
		ContactEmail:    field("contact_email"),
		FormTargetEmail: field("form_target_email"),
		MetaTitle:       text("meta_title"),
		MetaDescription: text("meta_description"),
	}
}
