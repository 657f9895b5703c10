package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"raccordement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Config struct {
	Key         string
	Value       json.RawMessage
	Description *string
	UpdatedBy   *uuid.UUID
	UpdatedAt   time.Time
}

type EmailTemplate struct {
	ID        uuid.UUID
	Key       string
	Name      string
	Subject   string
	HTMLBody  string
	Variables []string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TemplateParams struct {
	Key       *string
	Name      *string
	Subject   *string
	HTMLBody  *string
	Variables []string
	IsActive  *bool
}

type Animation struct {
	ID        uuid.UUID
	Key       string
	Name      string
	Type      string
	Config    json.RawMessage
	IsActive  bool
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AnimationParams struct {
	Key       *string
	Name      *string
	Type      *string
	Config    []byte
	IsActive  *bool
	SortOrder *int
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ---- system configs ----

func (r *Repository) ListConfigs(ctx context.Context) ([]Config, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, description, updated_by, updated_at FROM rac_system_configs ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	defer rows.Close()

	out := make([]Config, 0)
	for rows.Next() {
		var c Config
		if err := rows.Scan(&c.Key, &c.Value, &c.Description, &c.UpdatedBy, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetConfig(ctx context.Context, key string) (Config, error) {
	var c Config
	err := r.pool.QueryRow(ctx, `SELECT key, value, description, updated_by, updated_at FROM rac_system_configs WHERE key = $1`, key).
		Scan(&c.Key, &c.Value, &c.Description, &c.UpdatedBy, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Config{}, apperr.NotFound("config not found")
	}
	if err != nil {
		return Config{}, fmt.Errorf("get config: %w", err)
	}
	return c, nil
}

func (r *Repository) UpsertConfig(ctx context.Context, key string, value []byte, description *string, updatedBy *uuid.UUID) (Config, error) {
	var c Config
	err := r.pool.QueryRow(ctx, `
		INSERT INTO rac_system_configs (key, value, description, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			description = COALESCE(EXCLUDED.description, rac_system_configs.description),
			updated_by = EXCLUDED.updated_by,
			updated_at = now()
		RETURNING key, value, description, updated_by, updated_at
	`, key, value, description, updatedBy).Scan(&c.Key, &c.Value, &c.Description, &c.UpdatedBy, &c.UpdatedAt)
	if err != nil {
		return Config{}, fmt.Errorf("upsert config: %w", err)
	}
	return c, nil
}

// ---- email templates ----

const templateColumns = `id, key, name, subject, html_body, variables, is_active, created_at, updated_at`

func scanTemplate(row pgx.Row) (EmailTemplate, error) {
	var t EmailTemplate
	err := row.Scan(&t.ID, &t.Key, &t.Name, &t.Subject, &t.HTMLBody, &t.Variables, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return EmailTemplate{}, apperr.NotFound("email template not found")
	}
	return t, err
}

func (r *Repository) ListTemplates(ctx context.Context) ([]EmailTemplate, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM rac_email_templates ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list email templates: %w", err)
	}
	defer rows.Close()

	out := make([]EmailTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan email template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTemplate(ctx context.Context, id uuid.UUID) (EmailTemplate, error) {
	return scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM rac_email_templates WHERE id = $1`, id))
}

func (r *Repository) GetTemplateByKey(ctx context.Context, key string) (EmailTemplate, error) {
	return scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM rac_email_templates WHERE key = $1`, key))
}

func (r *Repository) CreateTemplate(ctx context.Context, p TemplateParams) (EmailTemplate, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `
		INSERT INTO rac_email_templates (key, name, subject, html_body, variables, is_active)
		VALUES ($1, $2, $3, $4, COALESCE($5, '{}'::text[]), COALESCE($6, true))
		RETURNING `+templateColumns, p.Key, p.Name, p.Subject, p.HTMLBody, p.Variables, p.IsActive))
	if isUniqueViolation(err) {
		return EmailTemplate{}, apperr.Conflict("template key already exists")
	}
	return t, err
}

func (r *Repository) UpdateTemplate(ctx context.Context, id uuid.UUID, p TemplateParams) (EmailTemplate, error) {
	return scanTemplate(r.pool.QueryRow(ctx, `
		UPDATE rac_email_templates SET
			name = COALESCE($2, name),
			subject = COALESCE($3, subject),
			html_body = COALESCE($4, html_body),
			variables = COALESCE($5, variables),
			is_active = COALESCE($6, is_active),
			updated_at = now()
		WHERE id = $1
		RETURNING `+templateColumns, id, p.Name, p.Subject, p.HTMLBody, p.Variables, p.IsActive))
}

func (r *Repository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rac_email_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete email template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("email template not found")
	}
	return nil
}

// InsertTemplateIfMissing seeds a default without touching edited rows.
func (r *Repository) InsertTemplateIfMissing(ctx context.Context, key, name, subject, htmlBody string, variables []string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO rac_email_templates (key, name, subject, html_body, variables)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING
	`, key, name, subject, htmlBody, variables)
	if err != nil {
		return false, fmt.Errorf("seed email template %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ---- ui animations ----

const animationColumns = `id, key, name, type, config, is_active, sort_order, created_at, updated_at`

func scanAnimation(row pgx.Row) (Animation, error) {
	var a Animation
	err := row.Scan(&a.ID, &a.Key, &a.Name, &a.Type, &a.Config, &a.IsActive, &a.SortOrder, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Animation{}, apperr.NotFound("animation not found")
	}
	return a, err
}

func (r *Repository) ListAnimations(ctx context.Context, activeOnly bool) ([]Animation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+animationColumns+` FROM rac_ui_animations
		WHERE ($1 = false OR is_active)
		ORDER BY sort_order, key`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list animations: %w", err)
	}
	defer rows.Close()

	out := make([]Animation, 0)
	for rows.Next() {
		a, err := scanAnimation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan animation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) GetAnimation(ctx context.Context, id uuid.UUID) (Animation, error) {
	return scanAnimation(r.pool.QueryRow(ctx, `SELECT `+animationColumns+` FROM rac_ui_animations WHERE id = $1`, id))
}

func (r *Repository) CreateAnimation(ctx context.Context, p AnimationParams) (Animation, error) {
	a, err := scanAnimation(r.pool.QueryRow(ctx, `
		INSERT INTO rac_ui_animations (key, name, type, config, is_active, sort_order)
		VALUES ($1, $2, $3, COALESCE($4::jsonb, '{}'::jsonb), COALESCE($5, true), COALESCE($6, 0))
		RETURNING `+animationColumns, p.Key, p.Name, p.Type, p.Config, p.IsActive, p.SortOrder))
	if isUniqueViolation(err) {
		return Animation{}, apperr.Conflict("animation key already exists")
	}
	return a, err
}

func (r *Repository) UpdateAnimation(ctx context.Context, id uuid.UUID, p AnimationParams) (Animation, error) {
	return scanAnimation(r.pool.QueryRow(ctx, `
		UPDATE rac_ui_animations SET
			name = COALESCE($2, name),
			type = COALESCE($3, type),
			config = COALESCE($4::jsonb, config),
			is_active = COALESCE($5, is_active),
			sort_order = COALESCE($6, sort_order),
			updated_at = now()
		WHERE id = $1
		RETURNING `+animationColumns, id, p.Name, p.Type, p.Config, p.IsActive, p.SortOrder))
}

func (r *Repository) DeleteAnimation(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rac_ui_animations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete animation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("animation not found")
	}
	return nil
}

func (r *Repository) InsertAnimationIfMissing(ctx context.Context, key, name, kind string, config []byte, sortOrder int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO rac_ui_animations (key, name, type, config, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO NOTHING
	`, key, name, kind, config, sortOrder)
	if err != nil {
		return false, fmt.Errorf("seed animation %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}
