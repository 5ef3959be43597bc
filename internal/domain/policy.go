package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/asaskevich/govalidator"
)

// PolicyStatus is the lifecycle state of an insurance policy. Only
// PolicyStatusActive may drive automation triggers (spec.md §3/§4.2).
type PolicyStatus string

const (
	PolicyStatusActive    PolicyStatus = "Active"
	PolicyStatusCancelled PolicyStatus = "Cancelled"
	PolicyStatusExpired   PolicyStatus = "Expired"
	PolicyStatusPending   PolicyStatus = "Pending"
)

// Policy is an insurance policy belonging to an Account. The trigger-date
// planner (C2) reads EffectiveDate/ExpirationDate to derive anniversaries,
// renewals and expirations; the filter DSL (C1) reads LOB/Status/TermLabel.
type Policy struct {
	ID             string       `json:"id" valid:"required,uuid"`
	AccountID      string       `json:"account_id" valid:"required,uuid"`
	OwnerID        string       `json:"owner_id" valid:"required,uuid"`
	PolicyNumber   string       `json:"policy_number"`
	LOB            string       `json:"lob" valid:"required"` // line of business, e.g. "auto", "home", "umbrella"
	Status         PolicyStatus `json:"status" valid:"required"`
	TermLabel      string       `json:"term_label,omitempty"` // e.g. "6-month", "annual"
	EffectiveDate  time.Time    `json:"effective_date" valid:"required"`
	ExpirationDate time.Time    `json:"expiration_date" valid:"required"`
	Premium        float64      `json:"premium,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Validate enforces struct-tag rules plus date ordering.
func (p *Policy) Validate() error {
	if _, err := govalidator.ValidateStruct(p); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}
	if !p.ExpirationDate.After(p.EffectiveDate) {
		return &ErrValidation{Field: "expiration_date", Message: "must be after effective_date"}
	}
	return nil
}

// IsActive reports whether the policy is in the one status the planner
// treats as trigger-eligible.
func (p *Policy) IsActive() bool {
	return p.Status == PolicyStatusActive
}

// TermDuration returns the policy term length (ExpirationDate minus
// EffectiveDate).
func (p *Policy) TermDuration() time.Duration {
	return p.ExpirationDate.Sub(p.EffectiveDate)
}

type dbPolicy struct {
	ID             string
	AccountID      string
	OwnerID        string
	PolicyNumber   string
	LOB            string
	Status         string
	TermLabel      string
	EffectiveDate  time.Time
	ExpirationDate time.Time
	Premium        float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ScanPolicy scans one row into a Policy, following ScanAccount's idiom.
func ScanPolicy(scanner interface{ Scan(dest ...interface{}) error }) (*Policy, error) {
	var d dbPolicy
	if err := scanner.Scan(
		&d.ID, &d.AccountID, &d.OwnerID, &d.PolicyNumber, &d.LOB, &d.Status, &d.TermLabel,
		&d.EffectiveDate, &d.ExpirationDate, &d.Premium, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &Policy{
		ID: d.ID, AccountID: d.AccountID, OwnerID: d.OwnerID, PolicyNumber: d.PolicyNumber,
		LOB: d.LOB, Status: PolicyStatus(d.Status), TermLabel: d.TermLabel,
		EffectiveDate: d.EffectiveDate, ExpirationDate: d.ExpirationDate, Premium: d.Premium,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt,
	}, nil
}

// PolicyRepository is the read surface the filter evaluator and planner
// use to find an account's policies (existential matching over LOB/status
// per §4.1, trigger-date derivation per §4.2).
type PolicyRepository interface {
	GetByID(ctx context.Context, ownerID, policyID string) (*Policy, error)
	ListByAccount(ctx context.Context, ownerID, accountID string) ([]*Policy, error)
	// ListActiveExpiringBefore pages through an owner's active policies
	// expiring before cutoff; the reactor's refresh does not call it.
	ListActiveExpiringBefore(ctx context.Context, ownerID string, cutoff time.Time, offset, limit int) ([]*Policy, error)
	Create(ctx context.Context, p *Policy) error
	Update(ctx context.Context, p *Policy) error
}

// ErrPolicyNotFound is returned by PolicyRepository.GetByID.
type ErrPolicyNotFound struct{ ID string }

func (e *ErrPolicyNotFound) Error() string { return fmt.Sprintf("policy %q not found", e.ID) }
