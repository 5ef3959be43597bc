package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/domain"
)

// MassEmailBatchPostgresRepository implements domain.MassEmailBatchRepository.
type MassEmailBatchPostgresRepository struct {
	db *sql.DB
}

// NewMassEmailBatchRepository builds a Postgres-backed MassEmailBatchRepository.
func NewMassEmailBatchRepository(db *sql.DB) *MassEmailBatchPostgresRepository {
	return &MassEmailBatchPostgresRepository{db: db}
}

const massEmailBatchColumns = `id, owner_id, template_id, status, scheduled_for, total_count, sent_count, created_at`

func (r *MassEmailBatchPostgresRepository) GetByID(ctx context.Context, id string) (*domain.MassEmailBatch, error) {
	var b domain.MassEmailBatch
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT `+massEmailBatchColumns+` FROM mass_email_batches WHERE id = $1`, id).
		Scan(&b.ID, &b.OwnerID, &b.TemplateID, &status, &b.ScheduledFor, &b.TotalCount, &b.SentCount, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.NewErrNotFound("mass_email_batch", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning mass email batch %s: %w", id, err)
	}
	b.Status = domain.MassEmailBatchStatus(status)
	return &b, nil
}

func (r *MassEmailBatchPostgresRepository) Create(ctx context.Context, b *domain.MassEmailBatch) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = domain.MassEmailBatchDraft
	}
	b.CreatedAt = time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mass_email_batches (`+massEmailBatchColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.OwnerID, b.TemplateID, string(b.Status), b.ScheduledFor, b.TotalCount, b.SentCount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting mass email batch: %w", err)
	}
	return nil
}

func (r *MassEmailBatchPostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.MassEmailBatchStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE mass_email_batches SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("updating mass email batch %s status: %w", id, err)
	}
	return checkAffected(res, id)
}

func (r *MassEmailBatchPostgresRepository) IncrementSentCount(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE mass_email_batches SET sent_count = sent_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("incrementing sent count for batch %s: %w", id, err)
	}
	return checkAffected(res, id)
}
