package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/domain"
	sitemail "github.com/almarpuit/site/internal/platform/mail"
	"github.com/almarpuit/site/internal/platform/requestctx"
	"github.com/almarpuit/site/internal/web/middleware"
)

const (
	maxContactName    = 200
	maxContactMessage = 5000
	// honeypotField is hidden from people and filled in by form bots.
	honeypotField = "website"
	sendTimeout   = 10 * time.Second
)

// Contact handles the contact form. A successful submission redirects back to
// the page so a reload does not resend the message.
func (h *Handlers) Contact(w http.ResponseWriter, r *http.Request) {
	logger := requestctx.Logger(r.Context())
	lang := middleware.Lang(r)

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := ContactForm{
		Name:    strings.TrimSpace(r.PostFormValue("name")),
		Email:   strings.TrimSpace(r.PostFormValue("email")),
		Message: strings.TrimSpace(r.PostFormValue("message")),
	}

	if strings.TrimSpace(r.PostFormValue(honeypotField)) != "" {
		logger.Info("contact form honeypot triggered")
		h.redirectSent(w, r, lang)
		return
	}

	if !validContact(form) {
		data := h.pageData(r)
		form.Status = ContactInvalid
		data.Contact = form
		h.render(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	settings := h.content.Settings(r.Context()).Current()
	msg := sitemail.Message{
		To:      settings.ContactTarget(),
		ReplyTo: form.Email,
		Subject: fmt.Sprintf("%s: %s", h.bundle.T(lang, "contact.mailSubject"), form.Name),
		Text:    fmt.Sprintf("Nimi: %s\nE-post: %s\nKeel: %s\n\n%s\n", form.Name, form.Email, lang, form.Message),
	}

	ctx, cancel := context.WithTimeout(r.Context(), sendTimeout)
	defer cancel()
	if err := h.mail.Send(ctx, msg); err != nil {
		logger.Error("contact form delivery failed", zap.Error(err))
		data := h.pageData(r)
		form.Status = ContactError
		data.Contact = form
		h.render(w, r, http.StatusBadGateway, data)
		return
	}

	logger.Info("contact form delivered", zap.String("locale", string(lang)))
	h.redirectSent(w, r, lang)
}

func (h *Handlers) redirectSent(w http.ResponseWriter, r *http.Request, lang domain.Locale) {
	target := "/?contact=" + ContactSent + "&hl=" + string(lang) + "#contact"
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func validContact(form ContactForm) bool {
	if form.Name == "" || utf8.RuneCountInString(form.Name) > maxContactName {
		return false
	}
	if form.Message == "" || utf8.RuneCountInString(form.Message) > maxContactMessage {
		return false
	}
	addr, err := mail.ParseAddress(form.Email)
	if err != nil || addr.Address != form.Email {
		return false
	}
	return true
}
