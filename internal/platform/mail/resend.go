package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/resend/resend-go/v3"
)

// ErrNotConfigured is returned when no API key or recipient is available.
var ErrNotConfigured = errors.New("mail: not configured")

// Message is a plain contact-form email.
type Message struct {
	To      string
	ReplyTo string
	Subject string
	Text    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type emailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendSender delivers mail through the Resend API.
type ResendSender struct {
	emails emailsAPI
	from   string
}

// NewResendSender constructs a sender. An empty API key yields ErrNotConfigured.
func NewResendSender(apiKey, from string) (*ResendSender, error) {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return nil, ErrNotConfigured
	}
	client := resend.NewClient(apiKey)
	return &ResendSender{emails: client.Emails, from: from}, nil
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNotConfigured
	}
	req := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		Html:    "<pre style=\"font-family:inherit;white-space:pre-wrap\">" + html.EscapeString(msg.Text) + "</pre>",
	}
	if msg.ReplyTo != "" {
		req.ReplyTo = msg.ReplyTo
	}
	if _, err := s.emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("mail: resend: %w", err)
	}
	return nil
}

// Discard drops every message. Used when mail is not configured.
type Discard struct{}

// Send implements Sender.
func (Discard) Send(context.Context, Message) error { return ErrNotConfigured }
