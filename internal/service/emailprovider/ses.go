package emailprovider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"

	"github.com/isg-automation/scheduler/internal/domain"
	"github.com/isg-automation/scheduler/pkg/logger"
)

// SES implements domain.EmailProvider over AWS Simple Email Service,
// selected when config.Config.EmailProvider is "ses".
type SES struct {
	client *ses.SES
	logger logger.Logger
}

// NewSES builds an SES-backed EmailProvider from an AWS session.
func NewSES(sess *session.Session, region string, log logger.Logger) *SES {
	client := ses.New(sess, aws.NewConfig().WithRegion(region))
	return &SES{client: client, logger: log}
}

// Send implements domain.EmailProvider via ses.SendRawEmail so the custom
// Message-ID header and any Reply-To header survive intact.
func (s *SES) Send(ctx context.Context, email domain.OutboundEmail) (domain.SendResult, error) {
	raw := buildRawMIME(email)

	input := &ses.SendRawEmailInput{
		Source:       aws.String(email.FromEmail),
		Destinations: aws.StringSlice([]string{email.ToEmail}),
		RawMessage:   &ses.RawMessage{Data: raw},
	}

	out, err := s.client.SendRawEmailWithContext(ctx, input)
	if err != nil {
		s.logger.WithError(err).Error("ses SendRawEmail failed")
		return domain.SendResult{}, fmt.Errorf("ses send failed: %w", err)
	}

	return domain.SendResult{ProviderMessageID: aws.StringValue(out.MessageId)}, nil
}

func buildRawMIME(email domain.OutboundEmail) []byte {
	from := email.FromEmail
	if email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", email.FromName, email.FromEmail)
	}
	to := email.ToEmail
	if email.ToName != "" {
		to = fmt.Sprintf("%s <%s>", email.ToName, email.ToEmail)
	}

	var b []byte
	writeHeader := func(name, value string) {
		if value == "" {
			return
		}
		b = append(b, []byte(fmt.Sprintf("%s: %s\r\n", name, value))...)
	}
	writeHeader("From", from)
	writeHeader("To", to)
	writeHeader("Subject", email.Subject)
	writeHeader("Reply-To", email.ReplyTo)
	writeHeader("Message-ID", email.MessageID)
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", "text/html; charset=UTF-8")
	b = append(b, []byte("\r\n")...)
	b = append(b, []byte(email.BodyHTML)...)
	return b
}
