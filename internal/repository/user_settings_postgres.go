package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/isg-automation/scheduler/internal/domain"
)

// UserSettingsPostgresRepository implements domain.UserSettingsRepository.
type UserSettingsPostgresRepository struct {
	db *sql.DB
}

// NewUserSettingsRepository builds a Postgres-backed UserSettingsRepository.
func NewUserSettingsRepository(db *sql.DB) *UserSettingsPostgresRepository {
	return &UserSettingsPostgresRepository{db: db}
}

const userSettingsColumns = `owner_id, from_email, from_name, reply_to_email, signature_html,
	agency_name, agency_address, agency_phone, agency_website, google_review_url,
	trial_starts_at, trial_ends_at, default_send_time, timezone, daily_send_limit, preferences`

func (r *UserSettingsPostgresRepository) GetByOwnerID(ctx context.Context, ownerID string) (*domain.UserSettings, error) {
	var s domain.UserSettings
	err := r.db.QueryRowContext(ctx, `SELECT `+userSettingsColumns+` FROM user_settings WHERE owner_id = $1`, ownerID).
		Scan(&s.OwnerID, &s.FromEmail, &s.FromName, &s.ReplyToEmail, &s.SignatureHTML,
			&s.AgencyName, &s.AgencyAddress, &s.AgencyPhone, &s.AgencyWebsite, &s.GoogleReviewURL,
			&s.TrialStartsAt, &s.TrialEndsAt, &s.DefaultSendTime, &s.Timezone, &s.DailySendLimit, &s.Preferences)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrUserSettingsNotFound{OwnerID: ownerID}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user settings for %s: %w", ownerID, err)
	}
	return &s, nil
}

// Upsert implements the owner_id-keyed insert-or-update the teacher's
// workspace settings repository uses (ON CONFLICT DO UPDATE).
func (r *UserSettingsPostgresRepository) Upsert(ctx context.Context, s *domain.UserSettings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (`+userSettingsColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (owner_id) DO UPDATE SET
			from_email=$2, from_name=$3, reply_to_email=$4, signature_html=$5,
			agency_name=$6, agency_address=$7, agency_phone=$8, agency_website=$9,
			google_review_url=$10, trial_starts_at=$11, trial_ends_at=$12,
			default_send_time=$13, timezone=$14, daily_send_limit=$15, preferences=$16`,
		s.OwnerID, s.FromEmail, s.FromName, s.ReplyToEmail, s.SignatureHTML,
		s.AgencyName, s.AgencyAddress, s.AgencyPhone, s.AgencyWebsite, s.GoogleReviewURL,
		s.TrialStartsAt, s.TrialEndsAt, s.DefaultSendTime, s.Timezone, s.DailySendLimit, s.Preferences)
	if err != nil {
		return fmt.Errorf("upserting user settings for %s: %w", s.OwnerID, err)
	}
	return nil
}
