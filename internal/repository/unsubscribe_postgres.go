package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/isg-automation/scheduler/internal/domain"
)

// UnsubscribePostgresRepository implements domain.UnsubscribeRepository.
type UnsubscribePostgresRepository struct {
	db *sql.DB
}

// NewUnsubscribeRepository builds a Postgres-backed UnsubscribeRepository.
func NewUnsubscribeRepository(db *sql.DB) *UnsubscribePostgresRepository {
	return &UnsubscribePostgresRepository{db: db}
}

// Exists checks case-insensitively, per §4.4 step 5 / §4.5 step 1.
func (r *UnsubscribePostgresRepository) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM unsubscribes WHERE lower(email) = lower($1))`,
		domain.NormalizeEmail(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking unsubscribe status for %s: %w", email, err)
	}
	return exists, nil
}

func (r *UnsubscribePostgresRepository) Add(ctx context.Context, email, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO unsubscribes (email, reason, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET reason = $2`,
		domain.NormalizeEmail(email), reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("recording unsubscribe for %s: %w", email, err)
	}
	return nil
}
