package mailer

import (
	"context"
	"strings"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-errors"
	"github.com/mailjet/mailjet-apiv3-go/v4"
)

// MailjetConfig holds the Send API v3.1 credentials and sender identity.
type MailjetConfig struct {
	APIKey    string
	SecretKey string
	FromEmail string
	FromName  string
	// BaseURL overrides the API base, e.g. https://api.mailjet.com/v3.
	BaseURL string
}

// MailjetSender delivers email through the Mailjet Send API v3.1.
type MailjetSender struct {
	client *mailjet.Client
	from   mailjet.RecipientV31
	logger accounts.Logger
}

var _ accounts.EmailSender = (*MailjetSender)(nil)

func NewMailjetSender(cfg MailjetConfig, logger accounts.Logger) (*MailjetSender, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, ErrMissingCredentials
	}

	var client *mailjet.Client
	if cfg.BaseURL != "" {
		client = mailjet.NewMailjetClient(cfg.APIKey, cfg.SecretKey, strings.TrimRight(cfg.BaseURL, "/"))
	} else {
		client = mailjet.NewMailjetClient(cfg.APIKey, cfg.SecretKey)
	}

	if logger == nil {
		logger = accounts.ResolveLogger("mailer", nil, nil)
	}

	return &MailjetSender{
		client: client,
		from:   mailjet.RecipientV31{Email: cfg.FromEmail, Name: cfg.FromName},
		logger: logger,
	}, nil
}

// SendEmail sends a single HTML message. The Mailjet client has no context
// support, so ctx is only checked before the request goes out.
func (m *MailjetSender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	if strings.TrimSpace(to) == "" {
		return ErrMissingRecipient
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := m.from
	messages := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From:     &from,
		To:       &mailjet.RecipientsV31{{Email: to}},
		Subject:  subject,
		HTMLPart: htmlBody,
	}}}

	res, err := m.client.SendMailV31(&messages)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "mailjet send failed").
			WithTextCode("MAIL_DELIVERY_FAILED").
			WithMetadata(map[string]any{"subject": subject})
	}

	for _, r := range res.ResultsV31 {
		if !strings.EqualFold(r.Status, "success") {
			return ErrDeliveryFailed.Clone().WithMetadata(map[string]any{
				"status":  r.Status,
				"subject": subject,
			})
		}
	}

	m.logger.Debug("email sent", "subject", subject)
	return nil
}
