package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/resend/resend-go/v3"
	"github.com/stretchr/testify/require"
)

type fakeEmails struct {
	requests []*resend.SendEmailRequest
	err      error
}

func (f *fakeEmails) SendWithContext(_ context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error) {
	f.requests = append(f.requests, params)
	if f.err != nil {
		return nil, f.err
	}
	return &resend.SendEmailResponse{Id: "msg_1"}, nil
}

func TestResendSenderBuildsRequest(t *testing.T) {
	fake := &fakeEmails{}
	sender := &ResendSender{emails: fake, from: "site@almarpuit.ee"}

	err := sender.Send(context.Background(), Message{
		To:      "info@almarpuit.ee",
		ReplyTo: "client@example.com",
		Subject: "Kontaktivorm",
		Text:    "<b>hi</b>",
	})
	require.NoError(t, err)
	require.Len(t, fake.requests, 1)

	req := fake.requests[0]
	require.Equal(t, []string{"info@almarpuit.ee"}, req.To)
	require.Equal(t, "client@example.com", req.ReplyTo)
	require.Contains(t, req.Html, "&lt;b&gt;hi&lt;/b&gt;")
}

func TestResendSenderWrapsErrors(t *testing.T) {
	boom := errors.New("rate limited")
	sender := &ResendSender{emails: &fakeEmails{err: boom}, from: "site@almarpuit.ee"}
	err := sender.Send(context.Background(), Message{To: "info@almarpuit.ee"})
	require.ErrorIs(t, err, boom)
}

func TestSenderRequiresConfiguration(t *testing.T) {
	_, err := NewResendSender("", "site@almarpuit.ee")
	require.ErrorIs(t, err, ErrNotConfigured)

	sender := &ResendSender{emails: &fakeEmails{}, from: "x"}
	require.ErrorIs(t, sender.Send(context.Background(), Message{}), ErrNotConfigured)
	require.ErrorIs(t, Discard{}.Send(context.Background(), Message{}), ErrNotConfigured)
}
