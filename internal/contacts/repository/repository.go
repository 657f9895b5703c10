package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/sanitize"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const contactColumns = `id, name, email, phone, subject, message, status, replied_at, replied_by, created_at, updated_at`

type Contact struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     *string
	Subject   string
	Message   string
	Status    string
	RepliedAt *time.Time
	RepliedBy *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CreateParams struct {
	Name    string
	Email   string
	Phone   *string
	Subject string
	Message string
}

type ListParams struct {
	Search *string
	Status *string
	Offset int
	Limit  int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanContact(row pgx.Row) (Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Subject, &c.Message, &c.Status,
		&c.RepliedAt, &c.RepliedBy, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, apperr.NotFound("contact message not found")
	}
	return c, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Contact, error) {
	c, err := scanContact(r.pool.QueryRow(ctx, `
		INSERT INTO rac_contacts (name, email, phone, subject, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+contactColumns,
		p.Name, p.Email, p.Phone, p.Subject, p.Message))
	if err != nil {
		return Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return c, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM rac_contacts WHERE id = $1`, id))
}

func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, status string) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `
		UPDATE rac_contacts SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+contactColumns, id, status))
}

func (r *Repository) MarkReplied(ctx context.Context, id, by uuid.UUID) (Contact, error) {
	return scanContact(r.pool.QueryRow(ctx, `
		UPDATE rac_contacts SET status = 'replied', replied_at = now(), replied_by = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+contactColumns, id, by))
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rac_contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("contact message not found")
	}
	return nil
}

var listWhere = fmt.Sprintf(`
	WHERE ($1::text IS NULL OR %s LIKE $1 OR lower(email) LIKE $1 OR %s LIKE $1)
	  AND ($2::text IS NULL OR status = $2)`,
	fmt.Sprintf(sanitize.AccentFoldSQL, "name"),
	fmt.Sprintf(sanitize.AccentFoldSQL, "subject"),
)

func (r *Repository) List(ctx context.Context, p ListParams) ([]Contact, int, error) {
	args := []any{p.Search, p.Status}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rac_contacts`+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+contactColumns+` FROM rac_contacts`+listWhere+
		` ORDER BY created_at DESC, id LIMIT $3 OFFSET $4`, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	items := make([]Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}
