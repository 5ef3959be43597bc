package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/isg-automation/scheduler/internal/domain"
)

// SenderDomainPostgresRepository implements domain.SenderDomainRepository.
type SenderDomainPostgresRepository struct {
	db *sql.DB
}

// NewSenderDomainRepository builds a Postgres-backed SenderDomainRepository.
func NewSenderDomainRepository(db *sql.DB) *SenderDomainPostgresRepository {
	return &SenderDomainPostgresRepository{db: db}
}

func (r *SenderDomainPostgresRepository) GetByOwnerID(ctx context.Context, ownerID string) (*domain.SenderDomain, error) {
	var d domain.SenderDomain
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, domain, verified, inbound_parse_enabled, inbound_subdomain
		FROM sender_domains WHERE owner_id = $1`, ownerID).
		Scan(&d.ID, &d.OwnerID, &d.Domain, &d.Verified, &d.InboundParseEnabled, &d.InboundSubdomain)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrSenderDomainNotFound{OwnerID: ownerID}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning sender domain for %s: %w", ownerID, err)
	}
	return &d, nil
}
