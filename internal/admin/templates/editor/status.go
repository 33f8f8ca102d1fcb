package editor

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/almarpuit/site/internal/admin/templates/helpers"
)

// Save states rendered by SaveStatus.
const (
	StatusIdle    = "idle"
	StatusSaving  = "saving"
	StatusSuccess = "success"
	StatusError   = "error"
)

// SaveStatusData is rendered by SaveStatus.
type SaveStatusData struct {
	State   string
	Message string
	// ResetURL is polled once after two seconds to return the indicator to idle.
	ResetURL string
}

// SaveStatus renders the per-field save indicator fragment.
func SaveStatus(data SaveStatusData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw("<span").Attr("data-save-status", data.State).Attr("class", statusClass(data.State))
		if data.State == StatusSuccess || data.State == StatusError {
			if data.ResetURL != "" {
				h.URL("hx-get", data.ResetURL).Raw(` hx-trigger="load delay:2s" hx-swap="outerHTML"`)
			}
		}
		h.Raw(">").Text(statusText(data)).Raw("</span>")
		return h.Err()
	})
}

func statusText(data SaveStatusData) string {
	switch data.State {
	case StatusSaving:
		return "Salvestan…"
	case StatusSuccess:
		return "Salvestatud"
	case StatusError:
		if data.Message != "" {
			return data.Message
		}
		return "Salvestamine ebaõnnestus"
	}
	return ""
}

func statusClass(state string) string {
	switch state {
	case StatusSuccess:
		return "text-xs text-green-700"
	case StatusError:
		return "text-xs text-red-700"
	case StatusSaving:
		return "text-xs text-slate-500"
	}
	return "text-xs"
}

// ErrorBanner renders the inline failure message shown above an editor.
func ErrorBanner(message string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if message == "" {
			return nil
		}
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<div role="alert" data-banner="error" class="mb-4 border-l-4 border-red-500 bg-red-50 p-4 text-red-700">`).Text(message).Raw("</div>")
		return h.Err()
	})
}
