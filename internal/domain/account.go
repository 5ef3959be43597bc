package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
)

// EmailValidationStatus mirrors the one-of-four states spec.md §3 requires
// an Account to carry.
type EmailValidationStatus string

const (
	EmailValidationValid   EmailValidationStatus = "valid"
	EmailValidationInvalid EmailValidationStatus = "invalid"
	EmailValidationRisky   EmailValidationStatus = "risky"
	EmailValidationUnknown EmailValidationStatus = "unknown"
)

// Account is an end user's customer/account record — the recipient unit
// the filter DSL (C1) and planner (C2) operate over.
type Account struct {
	ID                   string                `json:"id" valid:"required,uuid"`
	OwnerID              string                `json:"owner_id" valid:"required,uuid"`
	FirstName            string                `json:"first_name"`
	LastName             string                `json:"last_name"`
	CompanyName          string                `json:"company_name,omitempty"`
	Email                string                `json:"email" valid:"required,email"`
	Phone                string                `json:"phone,omitempty"`
	Address              string                `json:"address,omitempty"`
	City                 string                `json:"city,omitempty"`
	State                string                `json:"state,omitempty"`
	PostalCode           string                `json:"postal_code,omitempty"`
	OptedOut             bool                  `json:"opted_out"`
	MarketingSubscribed  bool                  `json:"marketing_subscribed"`
	EmailValidationState EmailValidationStatus `json:"email_validation_state" valid:"in(valid|invalid|risky|unknown)"`
	SurveyOutcome        string                `json:"survey_outcome,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// Validate performs struct-tag validation only; the sendability invariant
// is checked separately by Sendable.
func (a *Account) Validate() error {
	if _, err := govalidator.ValidateStruct(a); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	return nil
}

// FullName renders "First Last", trimmed, falling back to the email's
// local part when both name fields are blank (used by the merge-field
// engine's {{full_name}}/{{recipient_name}} placeholders).
func (a *Account) FullName() string {
	name := strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
	if name != "" {
		return name
	}
	if at := strings.IndexByte(a.Email, '@'); at > 0 {
		return a.Email[:at]
	}
	return a.Email
}

// Sendable implements the invariant from spec.md §3: "only accounts with a
// syntactically valid email and validation = valid and not opted-out may
// be scheduled or sent to."
func (a *Account) Sendable() bool {
	if a.OptedOut {
		return false
	}
	if a.EmailValidationState != EmailValidationValid {
		return false
	}
	return govalidator.IsExistingEmail(a.Email) || govalidator.IsEmail(a.Email)
}

// GeocodeKey chooses the location string used for the C1 `location` rule,
// in the preference order spec.md §4.1 specifies. Returns "" when no
// usable key exists.
func (a *Account) GeocodeKey() string {
	zip := strings.TrimSpace(a.PostalCode)
	city := strings.TrimSpace(a.City)
	state := strings.TrimSpace(a.State)
	switch {
	case zip != "" && state != "":
		return fmt.Sprintf("%s, %s, USA", zip, state)
	case city != "" && state != "":
		return fmt.Sprintf("%s, %s, USA", city, state)
	case zip != "":
		return fmt.Sprintf("%s, USA", zip)
	default:
		return ""
	}
}

// StatusLabel derives the coarse lifecycle label the filter DSL's
// `account_status`/`customer_status` rule matches against, since accounts
// carry no standalone status column: opted-out and email-validation state
// are the two things that actually gate sendability, so they are the two
// things "status" means here.
func (a *Account) StatusLabel() string {
	if a.OptedOut {
		return "opted_out"
	}
	switch a.EmailValidationState {
	case EmailValidationValid:
		return "active"
	case EmailValidationInvalid:
		return "invalid"
	case EmailValidationRisky:
		return "risky"
	default:
		return "unknown"
	}
}

// dbAccount mirrors the teacher's dbContactList scanning shape: a plain
// struct scanned in column order, then converted to the public type.
type dbAccount struct {
	ID                   string
	OwnerID              string
	FirstName            string
	LastName             string
	CompanyName          string
	Email                string
	Phone                string
	Address              string
	City                 string
	State                string
	PostalCode           string
	OptedOut             bool
	MarketingSubscribed  bool
	EmailValidationState string
	SurveyOutcome        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ScanAccount scans one row into an Account, following
// internal/domain/contact_list.go's ScanContactList idiom.
func ScanAccount(scanner interface{ Scan(dest ...interface{}) error }) (*Account, error) {
	var d dbAccount
	if err := scanner.Scan(
		&d.ID, &d.OwnerID, &d.FirstName, &d.LastName, &d.CompanyName, &d.Email,
		&d.Phone, &d.Address, &d.City, &d.State, &d.PostalCode,
		&d.OptedOut, &d.MarketingSubscribed, &d.EmailValidationState, &d.SurveyOutcome,
		&d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &Account{
		ID: d.ID, OwnerID: d.OwnerID, FirstName: d.FirstName, LastName: d.LastName,
		CompanyName: d.CompanyName, Email: d.Email, Phone: d.Phone, Address: d.Address,
		City: d.City, State: d.State, PostalCode: d.PostalCode,
		OptedOut: d.OptedOut, MarketingSubscribed: d.MarketingSubscribed,
		EmailValidationState: EmailValidationStatus(d.EmailValidationState),
		SurveyOutcome:        d.SurveyOutcome,
		CreatedAt:            d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}, nil
}

// AccountRepository is the C1/C2/C4 read surface over the accounts table.
type AccountRepository interface {
	GetByID(ctx context.Context, ownerID, accountID string) (*Account, error)
	// ListCandidates returns accounts owned by ownerID, chunked by offset/limit
	// for the C6 accountOffset cursor. No filter is applied here; callers
	// match the filter in memory (see internal/service/filtereval).
	ListCandidates(ctx context.Context, ownerID string, offset, limit int) ([]*Account, error)
	CountCandidates(ctx context.Context, ownerID string) (int, error)
	Create(ctx context.Context, a *Account) error
	Update(ctx context.Context, a *Account) error
}

// ErrAccountNotFound is returned by AccountRepository.GetByID.
type ErrAccountNotFound struct{ ID string }

func (e *ErrAccountNotFound) Error() string { return fmt.Sprintf("account %q not found", e.ID) }
