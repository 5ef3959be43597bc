package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/domain"
)

// AccountPostgresRepository implements domain.AccountRepository.
type AccountPostgresRepository struct {
	db *sql.DB
}

// NewAccountRepository builds a Postgres-backed AccountRepository.
func NewAccountRepository(db *sql.DB) *AccountPostgresRepository {
	return &AccountPostgresRepository{db: db}
}

const accountColumns = `id, owner_id, first_name, last_name, company_name, email, phone, address,
	city, state, postal_code, opted_out, marketing_subscribed, email_validation_state,
	survey_outcome, created_at, updated_at`

func (r *AccountPostgresRepository) GetByID(ctx context.Context, ownerID, accountID string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = $1 AND id = $2`,
		ownerID, accountID)
	account, err := domain.ScanAccount(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrAccountNotFound{ID: accountID}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account %s: %w", accountID, err)
	}
	return account, nil
}

// ListCandidates returns a chunk of an owner's accounts ordered for the C6
// accountOffset cursor. Built with squirrel rather than a literal string so
// the caller's own WHERE/ORDER BY stays declarative even though, today, the
// predicate is fixed to owner_id — the base candidate scan itself. The
// filter DSL's own rule predicates still run in-process via filtereval;
// squirrel's job here is only the SQL-pushable owner/pagination shape.
func (r *AccountPostgresRepository) ListCandidates(ctx context.Context, ownerID string, offset, limit int) ([]*domain.Account, error) {
	query, args, err := psql.Select(accountColumnList()...).
		From("accounts").
		Where("owner_id = ?", ownerID).
		OrderBy("created_at ASC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building candidate query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing candidate accounts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		account, err := domain.ScanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning candidate account: %w", err)
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (r *AccountPostgresRepository) CountCandidates(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

func (r *AccountPostgresRepository) Create(ctx context.Context, a *domain.Account) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		a.ID, a.OwnerID, a.FirstName, a.LastName, a.CompanyName, a.Email, a.Phone, a.Address,
		a.City, a.State, a.PostalCode, a.OptedOut, a.MarketingSubscribed, string(a.EmailValidationState),
		a.SurveyOutcome, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (r *AccountPostgresRepository) Update(ctx context.Context, a *domain.Account) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET first_name=$1, last_name=$2, company_name=$3, email=$4, phone=$5,
			address=$6, city=$7, state=$8, postal_code=$9, opted_out=$10, marketing_subscribed=$11,
			email_validation_state=$12, survey_outcome=$13, updated_at=$14
		WHERE owner_id=$15 AND id=$16`,
		a.FirstName, a.LastName, a.CompanyName, a.Email, a.Phone, a.Address, a.City, a.State,
		a.PostalCode, a.OptedOut, a.MarketingSubscribed, string(a.EmailValidationState),
		a.SurveyOutcome, a.UpdatedAt, a.OwnerID, a.ID)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &domain.ErrAccountNotFound{ID: a.ID}
	}
	return nil
}

// accountColumnList splits accountColumns into the slice form squirrel wants.
func accountColumnList() []string {
	return []string{
		"id", "owner_id", "first_name", "last_name", "company_name", "email", "phone", "address",
		"city", "state", "postal_code", "opted_out", "marketing_subscribed", "email_validation_state",
		"survey_outcome", "created_at", "updated_at",
	}
}
