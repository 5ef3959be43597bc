package domain

import (
	"context"
	"time"
)

// MassEmailBatchStatus tracks a one-off mass-email batch's planning
// progress, separate from its member rows' individual FSM.
type MassEmailBatchStatus string

const (
	MassEmailBatchDraft     MassEmailBatchStatus = "Draft"
	MassEmailBatchScheduled MassEmailBatchStatus = "Scheduled"
	MassEmailBatchCompleted MassEmailBatchStatus = "Completed"
	MassEmailBatchCancelled MassEmailBatchStatus = "Cancelled"
)

// MassEmailBatch is a one-off send to an ad hoc list of accounts, sharing
// the scheduled_emails queue contract with automation-planned rows
// (SPEC_FULL.md §9 "Mass-email batches"). Authoring (selecting the
// account list) is out of scope per spec.md §1's Non-goals; this type
// models the entity and its relationship to the queue, which the
// uniqueness key and sender both need to reason about.
type MassEmailBatch struct {
	ID         string               `json:"id"`
	OwnerID    string               `json:"owner_id"`
	TemplateID string               `json:"template_id"`
	Status     MassEmailBatchStatus `json:"status"`
	ScheduledFor time.Time          `json:"scheduled_for"`
	TotalCount int                  `json:"total_count"`
	SentCount  int                  `json:"sent_count"`
	CreatedAt  time.Time            `json:"created_at"`
}

// MassEmailBatchRepository is the read/write surface for batch metadata.
// Member rows live in ScheduledEmailRepository keyed by BatchID.
type MassEmailBatchRepository interface {
	GetByID(ctx context.Context, id string) (*MassEmailBatch, error)
	Create(ctx context.Context, b *MassEmailBatch) error
	UpdateStatus(ctx context.Context, id string, status MassEmailBatchStatus) error
	IncrementSentCount(ctx context.Context, id string) error
}
