package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isg-automation/scheduler/internal/domain"
)

// TemplatePostgresRepository implements domain.TemplateRepository.
type TemplatePostgresRepository struct {
	db *sql.DB
}

// NewTemplateRepository builds a Postgres-backed TemplateRepository.
func NewTemplateRepository(db *sql.DB) *TemplatePostgresRepository {
	return &TemplatePostgresRepository{db: db}
}

const templateColumns = `id, owner_id, default_key, subject, visual_editor_tree, body_html, body_text,
	from_email, from_name, created_at, updated_at`

func (r *TemplatePostgresRepository) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id)
	t, err := domain.ScanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrTemplateNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning template %s: %w", id, err)
	}
	return t, nil
}

func (r *TemplatePostgresRepository) GetByDefaultKey(ctx context.Context, ownerID, defaultKey string) (*domain.Template, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE owner_id = $1 AND default_key = $2`, ownerID, defaultKey)
	t, err := domain.ScanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, &domain.ErrTemplateNotFound{ID: defaultKey}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning template by key %s: %w", defaultKey, err)
	}
	return t, nil
}

func (r *TemplatePostgresRepository) Create(ctx context.Context, t *domain.Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	treeValue, err := t.VisualEditorTreeValue()
	if err != nil {
		return fmt.Errorf("encoding visual editor tree: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO templates (`+templateColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		t.ID, t.OwnerID, t.DefaultKey, t.Subject, treeValue, t.BodyHTML, t.BodyText,
		t.FromEmail, t.FromName, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting template: %w", err)
	}
	return nil
}

func (r *TemplatePostgresRepository) Update(ctx context.Context, t *domain.Template) error {
	t.UpdatedAt = time.Now().UTC()
	treeValue, err := t.VisualEditorTreeValue()
	if err != nil {
		return fmt.Errorf("encoding visual editor tree: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE templates SET default_key=$1, subject=$2, visual_editor_tree=$3, body_html=$4,
			body_text=$5, from_email=$6, from_name=$7, updated_at=$8
		WHERE id=$9`,
		t.DefaultKey, t.Subject, treeValue, t.BodyHTML, t.BodyText, t.FromEmail, t.FromName, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("updating template: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &domain.ErrTemplateNotFound{ID: t.ID}
	}
	return nil
}
