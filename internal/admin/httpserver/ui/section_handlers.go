package ui

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	custommw "github.com/almarpuit/site/internal/admin/httpserver/middleware"
	"github.com/almarpuit/site/internal/admin/templates/editor"
	"github.com/almarpuit/site/internal/content"
	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/platform/requestctx"
	"github.com/almarpuit/site/internal/platform/storage"
)

// SectionEditor renders the editor page for {key}.
func (h *Handlers) SectionEditor(w http.ResponseWriter, r *http.Request) {
	def, ok := lookupSection(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	handle := h.content.Section(ctx, def.Key)
	snap := handle.Snapshot()

	data := editor.SectionPageData{
		BasePath: h.basePath,
		Key:      def.Key,
		Title:    def.Title,
	}
	if snap.State == content.StateFailed && snap.Err != nil {
		data.Error = content.UserMessage(snap.Err)
	}
	if h.uploader != nil {
		data.UploadsEnabled = true
		data.MaxUploadBytes = h.uploader.MaxSize()
	}
	if h.feed != nil {
		data.LiveURL = h.path("live", def.Key)
	}
	for _, field := range def.Fields {
		view := editor.FieldView{Def: field, Value: snap.Translations[field.Key]}
		if field.Kind == domain.FieldImage {
			view.Image = snap.Images[field.Key]
		}
		data.Fields = append(data.Fields, view)
	}
	if def.Milestones {
		m := h.milestonesData(r, def.Key, nil)
		data.Milestones = &m
	}
	if def.Requirements {
		req := h.requirementsData(r, def.Key, nil)
		data.Requirements = &req
	}

	h.renderPage(w, r, def.Title, editor.SectionPage(data))
}

// UpdateTranslation saves one language of a text field and returns the save-status fragment.
func (h *Handlers) UpdateTranslation(w http.ResponseWriter, r *http.Request) {
	def, ok := lookupSection(w, r)
	if !ok {
		return
	}
	field, ok := def.Field(chi.URLParam(r, "field"))
	if !ok || field.Kind == domain.FieldImage {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	locale, ok := domain.ParseLocale(r.PostFormValue("lang"))
	if !ok || (field.Monolingual && locale != domain.LocaleET) {
		http.Error(w, "unsupported language", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	err := h.content.Section(ctx, def.Key).UpdateTranslation(ctx, field.Key, locale, r.PostFormValue("value"))
	if err != nil {
		logWriteFailure(ctx, "translation", def.Key, err)
	}
	h.saveStatus(w, r, err)
}

// UpdateImage saves an image URL and alt text.
func (h *Handlers) UpdateImage(w http.ResponseWriter, r *http.Request) {
	def, field, ok := imageField(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	url := strings.TrimSpace(r.PostFormValue("url"))
	alt := strings.TrimSpace(r.PostFormValue("alt"))

	ctx := r.Context()
	err := h.content.Section(ctx, def.Key).UpdateImage(ctx, field.Key, url, &alt)
	if err != nil {
		logWriteFailure(ctx, "image", def.Key, err)
	}
	h.saveStatus(w, r, err)
}

// UploadImage stores a multipart upload in the images bucket and points the field at it.
func (h *Handlers) UploadImage(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		http.NotFound(w, r)
		return
	}
	def, field, ok := imageField(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	limit := h.uploader.MaxSize()

	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		h.uploadFailed(w, r, def.Key, storage.ErrTooLarge)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		h.uploadFailed(w, r, def.Key, storage.ErrEmpty)
		return
	}
	defer file.Close()

	result, err := h.uploader.Upload(ctx, storage.Upload{
		SectionKey: def.Key,
		Field:      field.Key,
		Filename:   header.Filename,
		Body:       file,
	})
	if err != nil {
		h.uploadFailed(w, r, def.Key, err)
		return
	}

	handle := h.content.Section(ctx, def.Key)
	var alt *string
	if current, ok := handle.Image(field.Key); ok {
		alt = current.AltText
	}
	if err := handle.UpdateImage(ctx, field.Key, result.URL, alt); err != nil {
		logWriteFailure(ctx, "image upload", def.Key, err)
		h.saveStatus(w, r, err)
		return
	}

	requestctx.Logger(ctx).Info("admin: image uploaded",
		zap.String("section", def.Key),
		zap.String("field", field.Key),
		zap.String("object", result.Object),
		zap.Int64("size", result.Size),
	)
	if sess, ok := custommw.SessionFromContext(ctx); ok {
		sess.SetFlash("success", "Pilt laaditi üles.")
	}
	w.Header().Set("HX-Refresh", "true")
	h.saveStatus(w, r, nil)
}

func (h *Handlers) uploadFailed(w http.ResponseWriter, r *http.Request, section string, err error) {
	logWriteFailure(r.Context(), "image upload", section, err)
	h.renderFragment(w, r, editor.SaveStatus(editor.SaveStatusData{
		State:    editor.StatusError,
		Message:  uploadMessage(err),
		ResetURL: h.path("fragments", "save-status"),
	}))
}

func uploadMessage(err error) string {
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return "Fail on liiga suur."
	case errors.Is(err, storage.ErrUnsupportedType):
		return "Lubatud on ainult JPEG, PNG, WebP ja GIF pildid."
	case errors.Is(err, storage.ErrEmpty):
		return "Vali üleslaaditav fail."
	}
	return "Pildi üleslaadimine ebaõnnestus."
}

func lookupSection(w http.ResponseWriter, r *http.Request) (domain.SectionDef, bool) {
	def, ok := domain.LookupSection(chi.URLParam(r, "key"))
	if !ok {
		http.NotFound(w, r)
	}
	return def, ok
}

func imageField(w http.ResponseWriter, r *http.Request) (domain.SectionDef, domain.FieldDef, bool) {
	def, ok := lookupSection(w, r)
	if !ok {
		return def, domain.FieldDef{}, false
	}
	field, ok := def.Field(chi.URLParam(r, "field"))
	if !ok || field.Kind != domain.FieldImage {
		http.NotFound(w, r)
		return def, field, false
	}
	return def, field, true
}
