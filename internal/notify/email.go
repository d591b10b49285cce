// Package notify renders and delivers lead notification emails.
package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/lead-intake/pkg/logging"
)

const defaultFromName = "Lead Intake"

// EmailSender delivers one rendered message.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a rendered email ready for a transport.
type EmailMessage struct {
	To      string
	ToName  string
	ReplyTo string
	Subject string
	Body    string // plain text
	HTML    string
}

// sendGridAPI is the subset of *sendgrid.Client used here.
type sendGridAPI interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*sendGridResponse, error)
}

type sendGridResponse struct {
	StatusCode int
	Body       string
}

type sendGridClient struct {
	client *sendgrid.Client
}

func (c sendGridClient) SendWithContext(ctx context.Context, email *mail.SGMailV3) (*sendGridResponse, error) {
	resp, err := c.client.SendWithContext(ctx, email)
	if err != nil {
		return nil, err
	}
	return &sendGridResponse{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}

// SendGridSender sends emails through the SendGrid v3 API.
type SendGridSender struct {
	api       sendGridAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	return newSendGridSender(sendGridClient{client: sendgrid.NewSendClient(cfg.APIKey)}, cfg, logger)
}

func newSendGridSender(api sendGridAPI, cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		api:       api,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s == nil || s.api == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}

	html := msg.HTML
	if html == "" {
		html = msg.Body
	}
	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Body,
		html,
	)
	if msg.ReplyTo != "" {
		message.SetReplyTo(mail.NewEmail("", msg.ReplyTo))
	}

	resp, err := s.api.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("notify: sendgrid returned status %d", resp.StatusCode)
	}

	s.logger.Debug("email sent via sendgrid", "subject", msg.Subject, "status", resp.StatusCode)
	return nil
}

// StubEmailSender logs instead of sending. Used in development.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("stub email sender: would send email", "subject", msg.Subject, "html_bytes", len(msg.HTML))
	return nil
}

var (
	_ EmailSender = (*SendGridSender)(nil)
	_ EmailSender = (*StubEmailSender)(nil)
)
