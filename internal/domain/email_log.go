package domain

import (
	"context"
	"fmt"
	"time"
)

// EmailLogStatus tracks a dispatched message through the provider's
// delivery lifecycle, per spec.md §3: "Queued -> Sent -> Delivered ->
// Opened -> Clicked, or Failed/Bounced".
type EmailLogStatus string

const (
	EmailLogQueued    EmailLogStatus = "Queued"
	EmailLogSent      EmailLogStatus = "Sent"
	EmailLogDelivered EmailLogStatus = "Delivered"
	EmailLogOpened    EmailLogStatus = "Opened"
	EmailLogClicked   EmailLogStatus = "Clicked"
	EmailLogFailed    EmailLogStatus = "Failed"
	EmailLogBounced   EmailLogStatus = "Bounced"
)

// engagedStatuses is the set the C1 evaluator and C4 verifier treat as
// "this recipient has already been emailed" / "already engaged with this
// template" for last_email_sent and template-level dedup purposes.
var engagedStatuses = map[EmailLogStatus]bool{
	EmailLogSent:      true,
	EmailLogDelivered: true,
	EmailLogOpened:    true,
	EmailLogClicked:   true,
}

// IsEngaged reports whether status counts toward "recently emailed" for
// dedup purposes (§4.4 step 7, §4.1 last_email_sent semantics).
func (s EmailLogStatus) IsEngaged() bool { return engagedStatuses[s] }

// EmailLog is the audit record for one dispatch attempt that reached the
// provider (spec.md §3).
type EmailLog struct {
	ID                string         `json:"id"`
	OwnerID           string         `json:"owner_id"`
	ScheduledEmailID  string         `json:"scheduled_email_id"`
	AccountID         string         `json:"account_id"`
	TemplateID        string         `json:"template_id"`
	ToEmail           string         `json:"to_email"`
	Subject           string         `json:"subject"` // final rendered
	BodyHTML          string         `json:"body_html,omitempty"`
	SendGridMessageID string         `json:"sendgrid_message_id,omitempty"`
	MessageID         string         `json:"message_id,omitempty"` // custom Message-ID header
	ReplyTo           string         `json:"reply_to,omitempty"`
	UseTrackingReplyTo bool          `json:"use_tracking_reply_to"`
	Status            EmailLogStatus `json:"status"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time     `json:"delivered_at,omitempty"`
	OpenCount         int            `json:"open_count"`
	ClickCount        int            `json:"click_count"`
	ReplyCount        int            `json:"reply_count"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

type dbEmailLog struct {
	ID                 string
	OwnerID            string
	ScheduledEmailID   string
	AccountID          string
	TemplateID         string
	ToEmail            string
	Subject            string
	BodyHTML           string
	SendGridMessageID  string
	MessageID          string
	ReplyTo            string
	UseTrackingReplyTo bool
	Status             string
	SentAt             *time.Time
	DeliveredAt        *time.Time
	OpenCount          int
	ClickCount         int
	ReplyCount         int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ScanEmailLog scans one row into an EmailLog.
func ScanEmailLog(scanner interface{ Scan(dest ...interface{}) error }) (*EmailLog, error) {
	var d dbEmailLog
	if err := scanner.Scan(
		&d.ID, &d.OwnerID, &d.ScheduledEmailID, &d.AccountID, &d.TemplateID, &d.ToEmail,
		&d.Subject, &d.BodyHTML, &d.SendGridMessageID, &d.MessageID, &d.ReplyTo, &d.UseTrackingReplyTo,
		&d.Status, &d.SentAt, &d.DeliveredAt, &d.OpenCount, &d.ClickCount, &d.ReplyCount,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &EmailLog{
		ID: d.ID, OwnerID: d.OwnerID, ScheduledEmailID: d.ScheduledEmailID, AccountID: d.AccountID,
		TemplateID: d.TemplateID, ToEmail: d.ToEmail, Subject: d.Subject, BodyHTML: d.BodyHTML,
		SendGridMessageID: d.SendGridMessageID, MessageID: d.MessageID, ReplyTo: d.ReplyTo,
		UseTrackingReplyTo: d.UseTrackingReplyTo, Status: EmailLogStatus(d.Status),
		SentAt: d.SentAt, DeliveredAt: d.DeliveredAt, OpenCount: d.OpenCount, ClickCount: d.ClickCount,
		ReplyCount: d.ReplyCount, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}, nil
}

// EmailLogRepository is the audit/dedup read-write surface used by the
// sender (C5, writes), the verifier (C4, template-level dedup reads),
// and the filter evaluator (C1, last_email_sent index).
type EmailLogRepository interface {
	Create(ctx context.Context, log *EmailLog) error
	UpdateStatus(ctx context.Context, id string, status EmailLogStatus, at time.Time) error
	IncrementOpen(ctx context.Context, id string) error
	IncrementClick(ctx context.Context, id string) error
	IncrementReply(ctx context.Context, id string) error

	// ExistsRecentForTemplate implements §4.4 step 7: an engaged-status
	// log for (templateID, toEmail case-insensitive) within the last
	// window.
	ExistsRecentForTemplate(ctx context.Context, templateID, toEmail string, window time.Duration) (bool, error)

	// LastEngagedAt returns the most recent engaged-status log timestamp
	// per account, for the C1 last_email_sent index (§4.1 compilation
	// strategy); ok is false when the account has never been emailed.
	LastEngagedAt(ctx context.Context, ownerID string, accountIDs []string) (map[string]time.Time, error)

	GetBySendGridMessageID(ctx context.Context, messageID string) (*EmailLog, error)

	// GetByMessageID looks up the log by the custom Message-ID header the
	// sender stamped on the outbound email, the value a reply's
	// In-Reply-To/References header threads back to (used by
	// internal/service/inboundsmtp to correlate inbound replies).
	GetByMessageID(ctx context.Context, messageID string) (*EmailLog, error)
}
