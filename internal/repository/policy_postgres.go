package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/domain"
)

// PolicyPostgresRepository implements domain.PolicyRepository.
type PolicyPostgresRepository struct {
	db *sql.DB
}

// NewPolicyRepository builds a Postgres-backed PolicyRepository.
func NewPolicyRepository(db *sql.DB) *PolicyPostgresRepository {
	return &PolicyPostgresRepository{db: db}
}

const policyColumns = `id, account_id, owner_id, policy_number, lob, status, term_label,
	effective_date, expiration_date, premium, created_at, updated_at`

func (r *PolicyPostgresRepository) GetByID(ctx context.Context, ownerID, policyID string) (*domain.Policy, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE owner_id = $1 AND id = $2`, ownerID, policyID)
	policy, err := domain.ScanPolicy(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrPolicyNotFound{ID: policyID}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning policy %s: %w", policyID, err)
	}
	return policy, nil
}

func (r *PolicyPostgresRepository) ListByAccount(ctx context.Context, ownerID, accountID string) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+policyColumns+` FROM policies WHERE owner_id = $1 AND account_id = $2 ORDER BY expiration_date ASC`,
		ownerID, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing policies for account %s: %w", accountID, err)
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func (r *PolicyPostgresRepository) ListActiveExpiringBefore(ctx context.Context, ownerID string, cutoff time.Time, offset, limit int) ([]*domain.Policy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+policyColumns+` FROM policies
		WHERE owner_id = $1 AND status = $2 AND expiration_date <= $3
		ORDER BY expiration_date ASC
		OFFSET $4 LIMIT $5`,
		ownerID, string(domain.PolicyStatusActive), cutoff, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing expiring policies: %w", err)
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func scanPolicies(rows *sql.Rows) ([]*domain.Policy, error) {
	var out []*domain.Policy
	for rows.Next() {
		p, err := domain.ScanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning policy row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PolicyPostgresRepository) Create(ctx context.Context, p *domain.Policy) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO policies (`+policyColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, p.AccountID, p.OwnerID, p.PolicyNumber, p.LOB, string(p.Status), p.TermLabel,
		p.EffectiveDate, p.ExpirationDate, p.Premium, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting policy: %w", err)
	}
	return nil
}

func (r *PolicyPostgresRepository) Update(ctx context.Context, p *domain.Policy) error {
	p.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE policies SET policy_number=$1, lob=$2, status=$3, term_label=$4,
			effective_date=$5, expiration_date=$6, premium=$7, updated_at=$8
		WHERE owner_id=$9 AND id=$10`,
		p.PolicyNumber, p.LOB, string(p.Status), p.TermLabel, p.EffectiveDate, p.ExpirationDate,
		p.Premium, p.UpdatedAt, p.OwnerID, p.ID)
	if err != nil {
		return fmt.Errorf("updating policy: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &domain.ErrPolicyNotFound{ID: p.ID}
	}
	return nil
}
