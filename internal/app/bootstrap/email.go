package bootstrap

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/lead-intake/internal/config"
	"github.com/wolfman30/lead-intake/internal/notify"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

// BuildEmailSender selects the outbound email provider.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (notify.EmailSender, error) {
	if logger == nil {
		logger = logging.Default()
	}
	switch cfg.EmailProvider {
	case appconfig.EmailSendGrid:
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
		if sender == nil {
			return nil, errors.New("bootstrap: sendgrid selected without SENDGRID_API_KEY")
		}
		return sender, nil
	case appconfig.EmailSES:
		if awsCfg == nil {
			return nil, fmt.Errorf("%w: ses email sender", ErrAWSConfigRequired)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger), nil
	case appconfig.EmailStub, "":
		logger.Warn("email provider is stub; notifications are logged only")
		return notify.NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}
}
