package channels

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/mrz1836/postmark"

	"github.com/hl1221hl/thingsboard/pkg/notify"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailSender abstracts the transactional email provider behind the email
// channel.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams are the provider-independent parameters of one email.
type SendEmailParams struct {
	SendTo  string `json:"send_to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Tag     string `json:"tag,omitempty"`
}

// EmailConfig configures the Postmark-backed sender.
type EmailConfig struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN,required"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN,required"`
	SenderEmail          string `env:"NOTIFY_SENDER_EMAIL,required"`
}

type postmarkSender struct {
	client *postmark.Client
	config EmailConfig
}

// NewPostmarkSender creates a Postmark-backed email sender. All tokens are
// required so misconfiguration fails at startup, not at first send.
func NewPostmarkSender(cfg EmailConfig) (EmailSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

func (s *postmarkSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.config.SenderEmail,
		To:       params.SendTo,
		Subject:  params.Subject,
		TextBody: params.Body,
		Tag:      params.Tag,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}

// Email delivers notifications through an EmailSender. The subject comes
// from the email template's subject line, rendered with the same parameters
// as the body.
type Email struct {
	sender EmailSender
}

// NewEmail builds the email channel over the given sender.
func NewEmail(sender EmailSender) (*Email, error) {
	if sender == nil {
		return nil, fmt.Errorf("%w: email sender is required", ErrInvalidConfig)
	}
	return &Email{sender: sender}, nil
}

func (c *Email) DeliveryMethod() notify.DeliveryMethod {
	return notify.DeliveryMethodEmail
}

func (c *Email) Send(ctx context.Context, recipient notify.Recipient, text string, pctx *notify.ProcessingContext) error {
	if recipient.Email == "" {
		return ErrRecipientHasNoEmail
	}

	var subject string
	if tmpl, err := pctx.Template(ctx, notify.DeliveryMethodEmail); err == nil {
		subject = notify.RenderTemplate(tmpl.Subject, pctx.TemplateContext(recipient))
	}

	return c.sender.SendEmail(ctx, SendEmailParams{
		SendTo:  recipient.Email,
		Subject: subject,
		Body:    text,
		Tag:     pctx.Request.NotificationType,
	})
}
