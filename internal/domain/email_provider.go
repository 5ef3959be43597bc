package domain

import "context"

//go:generate mockgen -destination mocks/mock_email_provider.go -package mocks github.com/isg-automation/scheduler/internal/domain EmailProvider

// OutboundEmail is the fully-rendered, ready-to-dispatch message the
// sender (C5) hands to an EmailProvider after merge-field substitution,
// footer/signature injection, and tracking link rewriting.
type OutboundEmail struct {
	ToEmail    string
	ToName     string
	FromEmail  string
	FromName   string
	ReplyTo    string
	Subject    string
	BodyHTML   string
	BodyText   string
	MessageID  string // custom Message-ID header, set by the sender before dispatch
}

// SendResult is a provider's response to one send attempt.
type SendResult struct {
	ProviderMessageID string
}

// EmailProvider is the transactional email transport seam. Exactly one
// implementation is wired per deployment, selected by
// config.Config.EmailProvider ("sendgrid", "ses" or "smtp"), or the no-op
// provider whenever config.Config.DryRun() is true.
type EmailProvider interface {
	Send(ctx context.Context, email OutboundEmail) (SendResult, error)
}

// ProviderKind names which EmailProvider implementation is active, for
// logging and error classification (pkg/emailerror).
type ProviderKind string

const (
	ProviderSendGrid ProviderKind = "sendgrid"
	ProviderSES      ProviderKind = "ses"
	ProviderSMTP     ProviderKind = "smtp"
	ProviderNoop     ProviderKind = "noop" // dry-run mode, see Config.DryRun
)
