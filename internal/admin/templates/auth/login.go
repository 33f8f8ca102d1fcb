package auth

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/almarpuit/site/internal/admin/templates/helpers"
)

// LoginPageData is rendered by LoginPage.
type LoginPageData struct {
	Email     string
	Message   string
	Error     string
	Next      string
	LoginPath string
	BasePath  string
	CSRFToken string
}

// LoginPage renders the email/password sign-in form.
func LoginPage(data LoginPageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := helpers.NewHTML(ctx, w)
		h.Raw(`<!DOCTYPE html><html lang="et"><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.Raw(`<title>Sisselogimine | Almar Puit admin</title>`)
		h.Raw(`<link rel="stylesheet"`).URL("href", helpers.Join(data.BasePath, "assets", "admin.css")).Raw(">")
		h.Raw(`</head><body class="flex min-h-screen items-center justify-center bg-slate-50">`)
		h.Raw(`<main class="w-full max-w-sm rounded-lg bg-white p-8 shadow">`)
		h.Raw(`<h1 class="mb-6 text-xl font-semibold text-forest-800">Sisselogimine</h1>`)
		if data.Message != "" {
			h.Raw(`<p data-login-message class="mb-4 rounded bg-slate-100 p-3 text-sm">`).Text(data.Message).Raw("</p>")
		}
		if data.Error != "" {
			h.Raw(`<p data-login-error role="alert" class="mb-4 rounded bg-red-50 p-3 text-sm text-red-700">`).Text(data.Error).Raw("</p>")
		}
		h.Raw(`<form method="post" class="space-y-4"`).URL("action", data.LoginPath).Raw(">")
		h.Raw(`<input type="hidden" name="csrf_token"`).Attr("value", data.CSRFToken).Raw(">")
		if data.Next != "" {
			h.Raw(`<input type="hidden" name="next"`).Attr("value", data.Next).Raw(">")
		}
		h.Raw(`<label class="block text-sm">E-post<input type="email" name="email" required autocomplete="username" class="mt-1 w-full rounded border px-3 py-2"`).Attr("value", data.Email).Raw("></label>")
		h.Raw(`<label class="block text-sm">Parool<input type="password" name="password" required autocomplete="current-password" class="mt-1 w-full rounded border px-3 py-2"></label>`)
		h.Raw(`<button type="submit" class="w-full rounded bg-forest-700 px-4 py-2 text-white">Logi sisse</button>`)
		h.Raw("</form></main></body></html>")
		return h.Err()
	})
}
