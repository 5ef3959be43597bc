package emailprovider

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// SMTP implements domain.EmailProvider over a generic SMTP relay, for
// deployments without a SendGrid or SES account.
type SMTP struct {
	client   *mail.Client
	logger   logger.Logger
}

// NewSMTP builds an SMTP-backed EmailProvider.
func NewSMTP(host string, port int, username, password string, log logger.Logger) (*SMTP, error) {
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		mail.WithUsername(username),
		mail.WithPassword(password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build smtp client: %w", err)
	}
	return &SMTP{client: client, logger: log}, nil
}

// Send implements domain.EmailProvider.
func (s *SMTP) Send(ctx context.Context, email domain.OutboundEmail) (domain.SendResult, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(email.FromName, email.FromEmail); err != nil {
		return domain.SendResult{}, fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.AddToFormat(email.ToName, email.ToEmail); err != nil {
		return domain.SendResult{}, fmt.Errorf("invalid to address: %w", err)
	}
	if email.ReplyTo != "" {
		if err := msg.ReplyTo(email.ReplyTo); err != nil {
			return domain.SendResult{}, fmt.Errorf("invalid reply-to address: %w", err)
		}
	}
	msg.Subject(email.Subject)
	if email.BodyText != "" {
		msg.SetBodyString(mail.TypeTextPlain, email.BodyText)
	}
	msg.AddAlternativeString(mail.TypeTextHTML, email.BodyHTML)
	if email.MessageID != "" {
		msg.SetGenHeader(mail.HeaderMessageID, email.MessageID)
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.logger.WithError(err).Error("smtp send failed")
		return domain.SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}

	return domain.SendResult{ProviderMessageID: email.MessageID}, nil
}
