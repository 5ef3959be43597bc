package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/domain"
)

// AutomationPostgresRepository implements domain.AutomationRepository.
type AutomationPostgresRepository struct {
	db *sql.DB
}

// NewAutomationRepository builds a Postgres-backed AutomationRepository.
func NewAutomationRepository(db *sql.DB) *AutomationPostgresRepository {
	return &AutomationPostgresRepository{db: db}
}

const automationColumns = `id, owner_id, name, status, send_time, timezone, filter, nodes, created_at, updated_at`

func (r *AutomationPostgresRepository) GetByID(ctx context.Context, id string) (*domain.Automation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+automationColumns+` FROM automations WHERE id = $1`, id)
	automation, err := domain.ScanAutomation(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrAutomationNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning automation %s: %w", id, err)
	}
	return automation, nil
}

func (r *AutomationPostgresRepository) ListActive(ctx context.Context, offset, limit int) ([]*domain.Automation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+automationColumns+` FROM automations
		WHERE status = $1
		ORDER BY created_at ASC
		OFFSET $2 LIMIT $3`,
		string(domain.AutomationStatusActive), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("listing active automations: %w", err)
	}
	defer rows.Close()

	var out []*domain.Automation
	for rows.Next() {
		a, err := domain.ScanAutomation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning automation row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AutomationPostgresRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM automations WHERE status = $1`, string(domain.AutomationStatusActive)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active automations: %w", err)
	}
	return count, nil
}

func (r *AutomationPostgresRepository) Create(ctx context.Context, a *domain.Automation) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	filterValue, err := a.Filter.Value()
	if err != nil {
		return fmt.Errorf("encoding filter: %w", err)
	}
	nodesValue, err := a.Nodes.Value()
	if err != nil {
		return fmt.Errorf("encoding nodes: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO automations (`+automationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.OwnerID, a.Name, string(a.Status), a.SendTime, a.Timezone,
		filterValue, nodesValue, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting automation: %w", err)
	}
	return nil
}

func (r *AutomationPostgresRepository) Update(ctx context.Context, a *domain.Automation) error {
	a.UpdatedAt = time.Now().UTC()
	filterValue, err := a.Filter.Value()
	if err != nil {
		return fmt.Errorf("encoding filter: %w", err)
	}
	nodesValue, err := a.Nodes.Value()
	if err != nil {
		return fmt.Errorf("encoding nodes: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE automations SET name=$1, status=$2, send_time=$3, timezone=$4, filter=$5, nodes=$6, updated_at=$7
		WHERE id=$8`,
		a.Name, string(a.Status), a.SendTime, a.Timezone, filterValue, nodesValue, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("updating automation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &domain.ErrAutomationNotFound{ID: a.ID}
	}
	return nil
}

func (r *AutomationPostgresRepository) UpdateStatus(ctx context.Context, id string, status domain.AutomationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE automations SET status=$1, updated_at=$2 WHERE id=$3`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating automation status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &domain.ErrAutomationNotFound{ID: id}
	}
	return nil
}
