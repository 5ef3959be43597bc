package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/domain"
)

// ActivityLogPostgresRepository implements domain.ActivityLogRepository.
// Write-mostly: nothing in the pipeline reads activity_log back.
type ActivityLogPostgresRepository struct {
	db *sql.DB
}

// NewActivityLogRepository builds a Postgres-backed ActivityLogRepository.
func NewActivityLogRepository(db *sql.DB) *ActivityLogPostgresRepository {
	return &ActivityLogPostgresRepository{db: db}
}

func (r *ActivityLogPostgresRepository) RecordEvent(ctx context.Context, ownerID, accountID string, kind domain.ActivityEventKind, detail string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, owner_id, account_id, kind, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), ownerID, accountID, string(kind), detail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording activity log event %s for owner %s: %w", kind, ownerID, err)
	}
	return nil
}
