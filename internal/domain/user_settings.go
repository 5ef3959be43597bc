package domain

import (
	"context"
	"database/sql/driver"
	"fmt"
)

// UserSettings is the per-owner sending identity and defaults (spec.md
// §3): from-identity, signature/agency block, trial window, default
// send cadence, preferences.
type UserSettings struct {
	OwnerID         string   `json:"owner_id" valid:"required,uuid"`
	FromEmail       string   `json:"from_email" valid:"required,email"`
	FromName        string   `json:"from_name,omitempty"`
	ReplyToEmail    string   `json:"reply_to_email,omitempty"`
	SignatureHTML   string   `json:"signature_html,omitempty"`
	AgencyName      string   `json:"agency_name,omitempty"`
	AgencyAddress   string   `json:"agency_address,omitempty"`
	AgencyPhone     string   `json:"agency_phone,omitempty"`
	AgencyWebsite   string   `json:"agency_website,omitempty"`
	GoogleReviewURL string   `json:"google_review_url,omitempty"`
	TrialStartsAt   *string  `json:"trial_starts_at,omitempty"`
	TrialEndsAt     *string  `json:"trial_ends_at,omitempty"`
	DefaultSendTime string   `json:"default_send_time,omitempty"` // "HH:MM"
	Timezone        string   `json:"timezone,omitempty"`          // IANA
	DailySendLimit  int      `json:"daily_send_limit,omitempty"`
	Preferences     Preferences `json:"preferences,omitempty"`
}

// Preferences is the free-form JSON preferences bag, stored as JSONB.
type Preferences map[string]interface{}

func (p Preferences) Value() (driver.Value, error) {
	return valueJSONColumn(map[string]interface{}(p))
}

func (p *Preferences) Scan(value interface{}) error {
	var m map[string]interface{}
	if err := scanJSONColumn(value, &m); err != nil {
		return err
	}
	*p = m
	return nil
}

// UserSettingsRepository is the read surface C5 (sender: signature and
// agency fields when composing a body) and C7 (merge-field engine: agency
// block) use; no caller enforces the daily send limit.
type UserSettingsRepository interface {
	GetByOwnerID(ctx context.Context, ownerID string) (*UserSettings, error)
	Upsert(ctx context.Context, s *UserSettings) error
}

// ErrUserSettingsNotFound is returned by GetByOwnerID.
type ErrUserSettingsNotFound struct{ OwnerID string }

func (e *ErrUserSettingsNotFound) Error() string {
	return fmt.Sprintf("user settings for owner %q not found", e.OwnerID)
}
