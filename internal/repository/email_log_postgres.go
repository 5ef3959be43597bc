package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/domain"
)

// EmailLogPostgresRepository implements domain.EmailLogRepository.
type EmailLogPostgresRepository struct {
	db *sql.DB
}

// NewEmailLogRepository builds a Postgres-backed EmailLogRepository.
func NewEmailLogRepository(db *sql.DB) *EmailLogPostgresRepository {
	return &EmailLogPostgresRepository{db: db}
}

const emailLogColumns = `id, owner_id, scheduled_email_id, account_id, template_id, to_email, subject,
	body_html, sendgrid_message_id, message_id, reply_to, use_tracking_reply_to, status, sent_at,
	delivered_at, open_count, click_count, reply_count, created_at, updated_at`

func (r *EmailLogPostgresRepository) Create(ctx context.Context, log *domain.EmailLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	log.CreatedAt, log.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_logs (`+emailLogColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		log.ID, log.OwnerID, log.ScheduledEmailID, log.AccountID, log.TemplateID, log.ToEmail,
		log.Subject, log.BodyHTML, log.SendGridMessageID, log.MessageID, log.ReplyTo,
		log.UseTrackingReplyTo, string(log.Status), log.SentAt, log.DeliveredAt,
		log.OpenCount, log.ClickCount, log.ReplyCount, log.CreatedAt, log.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting email log: %w", err)
	}
	return nil
}

func (r *EmailLogPostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.EmailLogStatus, at time.Time) error {
	var res sql.Result
	var err error
	switch status {
	case domain.EmailLogSent:
		res, err = r.db.ExecContext(ctx, `UPDATE email_logs SET status=$1, sent_at=$2, updated_at=$2 WHERE id=$3`, string(status), at, id)
	case domain.EmailLogDelivered:
		res, err = r.db.ExecContext(ctx, `UPDATE email_logs SET status=$1, delivered_at=$2, updated_at=$2 WHERE id=$3`, string(status), at, id)
	default:
		res, err = r.db.ExecContext(ctx, `UPDATE email_logs SET status=$1, updated_at=$2 WHERE id=$3`, string(status), at, id)
	}
	if err != nil {
		return fmt.Errorf("updating email log %s status: %w", id, err)
	}
	return checkAffected(res, id)
}

func (r *EmailLogPostgresRepository) IncrementOpen(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE email_logs SET open_count = open_count + 1, updated_at=$1 WHERE id=$2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("incrementing open count for %s: %w", id, err)
	}
	return checkAffected(res, id)
}

func (r *EmailLogPostgresRepository) IncrementClick(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE email_logs SET click_count = click_count + 1, updated_at=$1 WHERE id=$2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("incrementing click count for %s: %w", id, err)
	}
	return checkAffected(res, id)
}

func (r *EmailLogPostgresRepository) IncrementReply(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE email_logs SET reply_count = reply_count + 1, updated_at=$1 WHERE id=$2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("incrementing reply count for %s: %w", id, err)
	}
	return checkAffected(res, id)
}

// ExistsRecentForTemplate implements §4.4 step 7 / §4.5 step 2: an
// engaged-status log for (templateID, toEmail case-insensitive) within the
// last window.
func (r *EmailLogPostgresRepository) ExistsRecentForTemplate(ctx context.Context, templateID, toEmail string, window time.Duration) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM email_logs
			WHERE template_id = $1 AND lower(to_email) = lower($2)
				AND status IN ($3, $4, $5, $6)
				AND created_at >= $7
		)`,
		templateID, toEmail,
		string(domain.EmailLogSent), string(domain.EmailLogDelivered), string(domain.EmailLogOpened), string(domain.EmailLogClicked),
		time.Now().UTC().Add(-window)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking recent template dedup: %w", err)
	}
	return exists, nil
}

// LastEngagedAt implements the C1 compilation-strategy map: the most
// recent engaged-status log timestamp per account.
func (r *EmailLogPostgresRepository) LastEngagedAt(ctx context.Context, ownerID string, accountIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(accountIDs))
	if len(accountIDs) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(accountIDs))
	args := make([]interface{}, 0, len(accountIDs)+5)
	args = append(args, ownerID, string(domain.EmailLogSent), string(domain.EmailLogDelivered), string(domain.EmailLogOpened), string(domain.EmailLogClicked))
	for i, id := range accountIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+6)
		args = append(args, id)
	}

	query := `
		SELECT account_id, MAX(COALESCE(sent_at, created_at)) FROM email_logs
		WHERE owner_id = $1 AND status IN ($2, $3, $4, $5) AND account_id IN (` + strings.Join(placeholders, ",") + `)
		GROUP BY account_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading last-engaged map: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var accountID string
		var at time.Time
		if err := rows.Scan(&accountID, &at); err != nil {
			return nil, fmt.Errorf("scanning last-engaged row: %w", err)
		}
		out[accountID] = at
	}
	return out, rows.Err()
}

func (r *EmailLogPostgresRepository) GetBySendGridMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+emailLogColumns+` FROM email_logs WHERE sendgrid_message_id = $1`, messageID)
	log, err := domain.ScanEmailLog(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewErrNotFound("email_log", messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning email log by sendgrid message id: %w", err)
	}
	return log, nil
}

func (r *EmailLogPostgresRepository) GetByMessageID(ctx context.Context, messageID string) (*domain.EmailLog, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+emailLogColumns+` FROM email_logs WHERE message_id = $1`, messageID)
	log, err := domain.ScanEmailLog(row)
	if err == sql.ErrNoRows {
		return nil, domain.NewErrNotFound("email_log", messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("scanning email log by message id: %w", err)
	}
	return log, nil
}
