package domain

import (
	"context"
	"fmt"
	"time"
)

// ScheduledEmailStatus is the status FSM of a queue row (spec.md §3):
// created Pending → (verifier may clear requires_verification or
// Cancel) → (sender claims to Processing atomically) → Sent/Failed, or
// back to Pending on a retryable failure.
type ScheduledEmailStatus string

const (
	ScheduledEmailPending    ScheduledEmailStatus = "Pending"
	ScheduledEmailProcessing ScheduledEmailStatus = "Processing"
	ScheduledEmailSent       ScheduledEmailStatus = "Sent"
	ScheduledEmailFailed     ScheduledEmailStatus = "Failed"
	ScheduledEmailCancelled  ScheduledEmailStatus = "Cancelled"
)

// ImmediateQualificationValue is the sentinel qualification_value used
// by "immediate" (non-date-based) automations, per §3/§4.2.
const ImmediateQualificationValue = "immediate"

// TriggerFieldActivation is the trigger_field sentinel for immediate
// plans (§4.2: "trigger_field = activation").
const TriggerFieldActivation = "activation"

// ScheduledEmail is one row of the durable send queue (C3).
type ScheduledEmail struct {
	ID                 string               `json:"id"`
	OwnerID            string               `json:"owner_id"`
	AutomationID       *string              `json:"automation_id,omitempty"` // nullable for mass-email batches
	BatchID            *string              `json:"batch_id,omitempty"`
	AccountID          string               `json:"account_id"`
	TemplateID         string               `json:"template_id"`
	ToEmail            string               `json:"to_email"`
	ToName             string               `json:"to_name,omitempty"`
	FromEmail          string               `json:"from_email"`
	FromName           string               `json:"from_name,omitempty"`
	Subject            string               `json:"subject"` // snapshot at plan time
	ScheduledFor        time.Time            `json:"scheduled_for"` // UTC instant
	Status             ScheduledEmailStatus `json:"status"`
	RequiresVerification bool                `json:"requires_verification"`
	QualificationValue string               `json:"qualification_value"` // ISO date, or "immediate"
	TriggerField       string               `json:"trigger_field"`       // e.g. policy_expiration, activation
	NodeID             string               `json:"node_id"`
	Attempts           int                  `json:"attempts"`
	MaxAttempts        int                  `json:"max_attempts"`
	LastAttemptAt      *time.Time           `json:"last_attempt_at,omitempty"`
	ErrorMessage        string               `json:"error_message,omitempty"`
	EmailLogID         *string              `json:"email_log_id,omitempty"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// DedupKey is the uniqueness key spec.md §3 defines for de-duplication:
// (automation_id, account_id, template_id, qualification_value).
type DedupKey struct {
	AutomationID       string
	AccountID          string
	TemplateID         string
	QualificationValue string
}

// Key returns this row's DedupKey. AutomationID is "" for a batch-sourced
// row (no collision with automation-planned rows, which always carry a
// non-empty automation id).
func (s *ScheduledEmail) Key() DedupKey {
	automationID := ""
	if s.AutomationID != nil {
		automationID = *s.AutomationID
	}
	return DedupKey{
		AutomationID:       automationID,
		AccountID:          s.AccountID,
		TemplateID:         s.TemplateID,
		QualificationValue: s.QualificationValue,
	}
}

// IsRetryable reports whether markFailedOrRetry should return the row to
// Pending (attempts remain) rather than Failed (terminal).
func (s *ScheduledEmail) IsRetryable() bool {
	return s.Attempts < s.MaxAttempts
}

type dbScheduledEmail struct {
	ID                   string
	OwnerID              string
	AutomationID         *string
	BatchID              *string
	AccountID            string
	TemplateID           string
	ToEmail              string
	ToName               string
	FromEmail            string
	FromName             string
	Subject              string
	ScheduledFor         time.Time
	Status               string
	RequiresVerification bool
	QualificationValue   string
	TriggerField         string
	NodeID               string
	Attempts             int
	MaxAttempts          int
	LastAttemptAt        *time.Time
	ErrorMessage         string
	EmailLogID           *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ScanScheduledEmail scans one row into a ScheduledEmail.
func ScanScheduledEmail(scanner interface{ Scan(dest ...interface{}) error }) (*ScheduledEmail, error) {
	var d dbScheduledEmail
	if err := scanner.Scan(
		&d.ID, &d.OwnerID, &d.AutomationID, &d.BatchID, &d.AccountID, &d.TemplateID,
		&d.ToEmail, &d.ToName, &d.FromEmail, &d.FromName, &d.Subject, &d.ScheduledFor,
		&d.Status, &d.RequiresVerification, &d.QualificationValue, &d.TriggerField, &d.NodeID,
		&d.Attempts, &d.MaxAttempts, &d.LastAttemptAt, &d.ErrorMessage, &d.EmailLogID,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ScheduledEmail{
		ID: d.ID, OwnerID: d.OwnerID, AutomationID: d.AutomationID, BatchID: d.BatchID,
		AccountID: d.AccountID, TemplateID: d.TemplateID, ToEmail: d.ToEmail, ToName: d.ToName,
		FromEmail: d.FromEmail, FromName: d.FromName, Subject: d.Subject, ScheduledFor: d.ScheduledFor,
		Status: ScheduledEmailStatus(d.Status), RequiresVerification: d.RequiresVerification,
		QualificationValue: d.QualificationValue, TriggerField: d.TriggerField, NodeID: d.NodeID,
		Attempts: d.Attempts, MaxAttempts: d.MaxAttempts, LastAttemptAt: d.LastAttemptAt,
		ErrorMessage: d.ErrorMessage, EmailLogID: d.EmailLogID, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}, nil
}

// ScheduledEmailRepository is the C3 public contract, following
// internal/service/queue/worker.go's EmailQueueRepository idiom but
// extended with the Sent/Cancelled terminal states and verification
// flag this system requires.
type ScheduledEmailRepository interface {
	// InsertBatch atomically inserts rows (§4.2 step F, batches of 100),
	// skipping any row whose DedupKey already exists among
	// Pending/Processing rows for its automation. Returns the rows that
	// were actually inserted.
	InsertBatch(ctx context.Context, rows []*ScheduledEmail) ([]*ScheduledEmail, error)

	// ListDueForVerification returns Pending rows with
	// requires_verification=true and scheduled_for within the next
	// window [now, now+window], ordered by scheduled_for, capped at limit.
	ListDueForVerification(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*ScheduledEmail, error)

	// ListReadyToSend returns Pending rows with scheduled_for <= now and
	// requires_verification = false, ordered by scheduled_for, capped at
	// limit.
	ListReadyToSend(ctx context.Context, now time.Time, limit int) ([]*ScheduledEmail, error)

	// Claim atomically transitions Pending -> Processing, incrementing
	// attempts and setting last_attempt_at, returning true only if this
	// caller won the transition (single conditional UPDATE ... RETURNING,
	// never read-then-write).
	Claim(ctx context.Context, id string, now time.Time) (*ScheduledEmail, bool, error)

	MarkVerified(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string, reason string) error
	MarkSent(ctx context.Context, id string, emailLogID string) error
	// MarkFailedOrRetry reads (attempts, max_attempts) and transitions to
	// Pending (retry) or Failed (terminal) accordingly.
	MarkFailedOrRetry(ctx context.Context, id string, sendErr error) error
	// MarkFailed transitions a row straight to the terminal Failed status
	// regardless of remaining attempts budget, for a send error classified
	// as recipient-side (§4.5 step 9: non-retryable failures don't consume
	// the retry budget, they fail now).
	MarkFailed(ctx context.Context, id string, reason string) error

	CancelPendingForAutomation(ctx context.Context, automationID string, reason string) (int, error)

	// ExistingKeys returns which of the given DedupKeys already have a
	// Pending/Processing row for their automation, used by the planner to
	// seed its in-memory dedup set before inserting the first batch.
	ExistingKeys(ctx context.Context, automationID string, keys []DedupKey) (map[DedupKey]bool, error)

	// ListStuckProcessing returns rows stuck in Processing for longer than
	// threshold, for the reaper (§5/§9) to reset to Pending.
	ListStuckProcessing(ctx context.Context, threshold time.Duration, limit int) ([]*ScheduledEmail, error)
	ResetToPending(ctx context.Context, id string) error
}

// ErrScheduledEmailNotFound is returned when an id has no matching row.
type ErrScheduledEmailNotFound struct{ ID string }

func (e *ErrScheduledEmailNotFound) Error() string {
	return fmt.Sprintf("scheduled email %q not found", e.ID)
}
