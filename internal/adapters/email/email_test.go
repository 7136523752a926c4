package email

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"eventstream/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTemplateRenderer_RegistrationConfirmed(t *testing.T) {
	r := NewTemplateRenderer()

	subject, html, text, err := r.Render("registration_confirmed", &domain.RegistrationConfirmedEmailData{
		Email:          "ada@example.com",
		Name:           "Ada <admin>",
		EventTitle:     "Go Live",
		RegistrationID: "reg-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "You're registered: Go Live", subject)
	assert.Contains(t, html, "Ada &lt;admin&gt;")
	assert.Contains(t, html, "reg-1")
	assert.Contains(t, text, "Ada <admin>")
	assert.Contains(t, text, "is confirmed")

	subject, _, text, err = r.Render("registration_confirmed", &domain.RegistrationConfirmedEmailData{
		EventTitle:  "Go Live",
		Reactivated: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "You're back in: Go Live", subject)
	assert.Contains(t, text, "Hi there")
	assert.Contains(t, text, "active again")
}

func TestTemplateRenderer_UnknownTemplate(t *testing.T) {
	_, _, _, err := NewTemplateRenderer().Render("missing", nil)
	require.Error(t, err)
}

func TestSESMailer_Send(t *testing.T) {
	client := &fakeSES{}
	m := &sesMailer{
		client: client,
		source: MailerConfig{FromAddress: "noreply@example.com", FromName: "Events"}.sender(),
		logger: discardLogger(),
	}

	require.NoError(t, m.Send(context.Background(), "ada@example.com", "Hi", "<p>hi</p>", ""))
	require.NotNil(t, client.input)
	assert.Equal(t, "Events <noreply@example.com>", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"ada@example.com"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "<p>hi</p>", aws.ToString(client.input.Message.Body.Html.Data))
	assert.Nil(t, client.input.Message.Body.Text)
	assert.Equal(t, "UTF-8", aws.ToString(client.input.Message.Subject.Charset))

	client.err = errors.New("throttled")
	err := m.Send(context.Background(), "ada@example.com", "Hi", "", "hi")
	require.ErrorContains(t, err, "throttled")
}

func TestNewMailer_FallsBackToNoop(t *testing.T) {
	for _, provider := range []string{"", "noop", "carrier-pigeon"} {
		m := NewMailer(MailerConfig{Provider: provider}, discardLogger())
		_, ok := m.(*noopMailer)
		assert.True(t, ok, provider)
		require.NoError(t, m.Send(context.Background(), "a@example.com", "s", "h", "t"))
	}
}

func TestMailerConfig_Sender(t *testing.T) {
	assert.Equal(t, "noreply@example.com", MailerConfig{FromAddress: "noreply@example.com"}.sender())
	assert.Equal(t, "Events <noreply@example.com>", MailerConfig{FromAddress: "noreply@example.com", FromName: "Events"}.sender())
}

func TestNewMailer_SES(t *testing.T) {
	m := NewMailer(MailerConfig{Provider: "ses", FromAddress: "noreply@example.com", SES: SESConfig{Region: "eu-west-1"}}, discardLogger())
	sm, ok := m.(*sesMailer)
	require.True(t, ok)
	assert.Equal(t, "noreply@example.com", sm.source)
}
