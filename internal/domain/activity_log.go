package domain

import (
	"context"
	"time"
)

// ActivityEventKind enumerates the operator-visible events the sender
// and reactor record, per SPEC_FULL.md's supplemented "Activity log"
// feature (§9).
type ActivityEventKind string

const (
	ActivityEmailSent          ActivityEventKind = "email_sent"
	ActivityEmailFailed        ActivityEventKind = "email_failed"
	ActivityAutomationActivated ActivityEventKind = "automation_activated"
	ActivityAutomationPaused   ActivityEventKind = "automation_paused"
	ActivityRowCancelled       ActivityEventKind = "row_cancelled"
)

// ActivityLogEntry is one operator-visible event.
type ActivityLogEntry struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"owner_id"`
	AccountID string            `json:"account_id,omitempty"`
	Kind      ActivityEventKind `json:"kind"`
	Detail    string            `json:"detail,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ActivityLogRepository records operator-visible events. This is a
// minimal, write-mostly surface: the core does not read its own
// activity log back.
type ActivityLogRepository interface {
	RecordEvent(ctx context.Context, ownerID, accountID string, kind ActivityEventKind, detail string) error
}
