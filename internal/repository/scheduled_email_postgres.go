package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/domain"
)

// ScheduledEmailPostgresRepository implements domain.ScheduledEmailRepository,
// the C3 semantic queue. Claim is modeled as a single conditional UPDATE ...
// RETURNING statement rather than read-then-write, per SPEC_FULL §9
// "Atomic claim" and the teacher's EmailQueueRepository.MarkAsProcessing
// discipline.
type ScheduledEmailPostgresRepository struct {
	db *sql.DB
}

// NewScheduledEmailRepository builds a Postgres-backed ScheduledEmailRepository.
func NewScheduledEmailRepository(db *sql.DB) *ScheduledEmailPostgresRepository {
	return &ScheduledEmailPostgresRepository{db: db}
}

const scheduledEmailColumns = `id, owner_id, automation_id, batch_id, account_id, template_id, to_email,
	to_name, from_email, from_name, subject, scheduled_for, status, requires_verification,
	qualification_value, trigger_field, node_id, attempts, max_attempts, last_attempt_at,
	error_message, email_log_id, created_at, updated_at`

// InsertBatch inserts rows in a single transaction, returning them with
// their assigned ids/timestamps. Per §4.2 Step F, a caller that batches
// plan output in chunks of 100 should call this once per chunk; a failed
// batch here does not roll back any earlier, already-committed batch.
func (r *ScheduledEmailPostgresRepository) InsertBatch(ctx context.Context, rows []*domain.ScheduledEmail) ([]*domain.ScheduledEmail, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning batch insert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scheduled_emails (`+scheduledEmailColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		ON CONFLICT DO NOTHING`)
	if err != nil {
		return nil, fmt.Errorf("preparing batch insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := make([]*domain.ScheduledEmail, 0, len(rows))
	for _, row := range rows {
		if row.ID == "" {
			row.ID = uuid.NewString()
		}
		row.CreatedAt, row.UpdatedAt = now, now
		if row.Status == "" {
			row.Status = domain.ScheduledEmailPending
		}
		if row.MaxAttempts == 0 {
			row.MaxAttempts = 3
		}
		res, err := stmt.ExecContext(ctx,
			row.ID, row.OwnerID, row.AutomationID, row.BatchID, row.AccountID, row.TemplateID,
			row.ToEmail, row.ToName, row.FromEmail, row.FromName, row.Subject, row.ScheduledFor,
			string(row.Status), row.RequiresVerification, row.QualificationValue, row.TriggerField,
			row.NodeID, row.Attempts, row.MaxAttempts, row.LastAttemptAt, row.ErrorMessage,
			row.EmailLogID, row.CreatedAt, row.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("inserting scheduled email for account %s: %w", row.AccountID, err)
		}
		if affected, _ := res.RowsAffected(); affected > 0 {
			inserted = append(inserted, row)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing batch insert: %w", err)
	}
	return inserted, nil
}

// ListDueForVerification implements §4.3: Pending, requires_verification,
// now <= scheduled_for <= now+window, earliest first.
func (r *ScheduledEmailPostgresRepository) ListDueForVerification(ctx context.Context, now time.Time, window time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduledEmailColumns+` FROM scheduled_emails
		WHERE status = $1 AND requires_verification = true
			AND scheduled_for >= $2 AND scheduled_for <= $3
		ORDER BY scheduled_for ASC
		LIMIT $4`,
		string(domain.ScheduledEmailPending), now, now.Add(window), limit)
	if err != nil {
		return nil, fmt.Errorf("listing due-for-verification rows: %w", err)
	}
	defer rows.Close()
	return scanScheduledEmails(rows)
}

// ListReadyToSend implements §4.3: Pending, scheduled_for <= now,
// requires_verification false (or cleared by the verifier), earliest first.
func (r *ScheduledEmailPostgresRepository) ListReadyToSend(ctx context.Context, now time.Time, limit int) ([]*domain.ScheduledEmail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduledEmailColumns+` FROM scheduled_emails
		WHERE status = $1 AND scheduled_for <= $2 AND requires_verification = false
		ORDER BY scheduled_for ASC
		LIMIT $3`,
		string(domain.ScheduledEmailPending), now, limit)
	if err != nil {
		return nil, fmt.Errorf("listing ready-to-send rows: %w", err)
	}
	defer rows.Close()
	return scanScheduledEmails(rows)
}

// Claim atomically transitions Pending -> Processing, incrementing attempts
// and stamping last_attempt_at in the same statement. ok is false when the
// row was not Pending when the UPDATE ran (already claimed or terminal) —
// the caller silently skips, per §7 "Concurrent claim lost".
func (r *ScheduledEmailPostgresRepository) Claim(ctx context.Context, id string, now time.Time) (*domain.ScheduledEmail, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE scheduled_emails
		SET status = $1, attempts = attempts + 1, last_attempt_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING `+scheduledEmailColumns,
		string(domain.ScheduledEmailProcessing), now, id, string(domain.ScheduledEmailPending))

	claimed, err := domain.ScanScheduledEmail(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("claiming scheduled email %s: %w", id, err)
	}
	return claimed, true, nil
}

func (r *ScheduledEmailPostgresRepository) MarkVerified(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_emails SET requires_verification = false, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("marking scheduled email %s verified: %w", id, err)
	}
	return checkAffected(res, id)
}

func (r *ScheduledEmailPostgresRepository) Cancel(ctx context.Context, id string, reason string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_emails SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(domain.ScheduledEmailCancelled), reason, now, id)
	if err != nil {
		return fmt.Errorf("cancelling scheduled email %s: %w", id, err)
	}
	return checkAffected(res, id)
}

func (r *ScheduledEmailPostgresRepository) MarkSent(ctx context.Context, id string, emailLogID string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_emails SET status = $1, email_log_id = $2, updated_at = $3 WHERE id = $4`,
		string(domain.ScheduledEmailSent), emailLogID, now, id)
	if err != nil {
		return fmt.Errorf("marking scheduled email %s sent: %w", id, err)
	}
	return checkAffected(res, id)
}

// MarkFailedOrRetry reads the current (attempts, max_attempts) and chooses
// Pending (retry, attempts already incremented by Claim) or terminal
// Failed, per §4.3.
func (r *ScheduledEmailPostgresRepository) MarkFailedOrRetry(ctx context.Context, id string, sendErr error) error {
	now := time.Now().UTC()
	errMsg := ""
	if sendErr != nil {
		errMsg = sendErr.Error()
	}

	var attempts, maxAttempts int
	err := r.db.QueryRowContext(ctx, `SELECT attempts, max_attempts FROM scheduled_emails WHERE id = $1`, id).
		Scan(&attempts, &maxAttempts)
	if err == sql.ErrNoRows {
		return &domain.ErrScheduledEmailNotFound{ID: id}
	}
	if err != nil {
		return fmt.Errorf("reading attempts for scheduled email %s: %w", id, err)
	}

	nextStatus := domain.ScheduledEmailPending
	if attempts >= maxAttempts {
		nextStatus = domain.ScheduledEmailFailed
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_emails SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(nextStatus), errMsg, now, id)
	if err != nil {
		return fmt.Errorf("updating scheduled email %s after send failure: %w", id, err)
	}
	return checkAffected(res, id)
}

// MarkFailed transitions a row straight to Failed, used for send errors
// classified as non-retryable (bad recipient, rejected content) rather
// than run through the attempts-budget decision in MarkFailedOrRetry.
func (r *ScheduledEmailPostgresRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_emails SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4`,
		string(domain.ScheduledEmailFailed), reason, now, id)
	if err != nil {
		return fmt.Errorf("marking scheduled email %s failed: %w", id, err)
	}
	return checkAffected(res, id)
}

// CancelPendingForAutomation bulk-transitions every Pending row for an
// automation to Cancelled, per §4.6 deactivate().
func (r *ScheduledEmailPostgresRepository) CancelPendingForAutomation(ctx context.Context, automationID string, reason string) (int, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_emails SET status = $1, error_message = $2, updated_at = $3
		WHERE automation_id = $4 AND status = $5`,
		string(domain.ScheduledEmailCancelled), reason, now, automationID, string(domain.ScheduledEmailPending))
	if err != nil {
		return 0, fmt.Errorf("cancelling pending rows for automation %s: %w", automationID, err)
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}

// ExistingKeys reports which of the given dedup keys already have a
// Pending/Processing row for this automation, for the planner's Step D.6
// uniqueness check.
func (r *ScheduledEmailPostgresRepository) ExistingKeys(ctx context.Context, automationID string, keys []domain.DedupKey) (map[domain.DedupKey]bool, error) {
	out := make(map[domain.DedupKey]bool, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT account_id, template_id, qualification_value FROM scheduled_emails
		WHERE automation_id = $1 AND status IN ($2, $3)`,
		automationID, string(domain.ScheduledEmailPending), string(domain.ScheduledEmailProcessing))
	if err != nil {
		return nil, fmt.Errorf("loading existing dedup keys for automation %s: %w", automationID, err)
	}
	defer rows.Close()

	existing := make(map[domain.DedupKey]bool)
	for rows.Next() {
		var k domain.DedupKey
		k.AutomationID = automationID
		if err := rows.Scan(&k.AccountID, &k.TemplateID, &k.QualificationValue); err != nil {
			return nil, fmt.Errorf("scanning dedup key row: %w", err)
		}
		existing[k] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, k := range keys {
		out[k] = existing[k]
	}
	return out, nil
}

// ListStuckProcessing supports the reaper described in SPEC_FULL §5: rows
// that have sat in Processing longer than threshold are retry candidates
// again, the attempts counter already bounding total retries.
func (r *ScheduledEmailPostgresRepository) ListStuckProcessing(ctx context.Context, threshold time.Duration, limit int) ([]*domain.ScheduledEmail, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+scheduledEmailColumns+` FROM scheduled_emails
		WHERE status = $1 AND last_attempt_at IS NOT NULL AND last_attempt_at <= $2
		ORDER BY last_attempt_at ASC
		LIMIT $3`,
		string(domain.ScheduledEmailProcessing), cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stuck processing rows: %w", err)
	}
	defer rows.Close()
	return scanScheduledEmails(rows)
}

func (r *ScheduledEmailPostgresRepository) ResetToPending(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scheduled_emails SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		string(domain.ScheduledEmailPending), time.Now().UTC(), id, string(domain.ScheduledEmailProcessing))
	if err != nil {
		return fmt.Errorf("resetting stuck row %s to pending: %w", id, err)
	}
	return checkAffected(res, id)
}

func checkAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for %s: %w", id, err)
	}
	if affected == 0 {
		return &domain.ErrScheduledEmailNotFound{ID: id}
	}
	return nil
}

func scanScheduledEmails(rows *sql.Rows) ([]*domain.ScheduledEmail, error) {
	var out []*domain.ScheduledEmail
	for rows.Next() {
		row, err := domain.ScanScheduledEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning scheduled email row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
