package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raccordement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, first_name, last_name, phone, role, is_active, last_login_at, created_at, updated_at`

type User struct {
	ID          uuid.UUID
	Email       string
	FirstName   *string
	LastName    *string
	Phone       *string
	Role        string
	IsActive    bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateParams struct {
	Email        string
	PasswordHash string
	FirstName    *string
	LastName     *string
	Phone        *string
	Role         string
}

type UpdateParams struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

type ListParams struct {
	Search   *string
	Role     *string
	IsActive *bool
	Offset   int
	Limit    int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Phone, &u.Role, &u.IsActive, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found")
	}
	return u, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO rac_users (email, password_hash, first_name, last_name, phone, role)
		VALUES (lower($1), $2, $3, $4, $5, $6)
		RETURNING `+userColumns, p.Email, p.PasswordHash, p.FirstName, p.LastName, p.Phone, p.Role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, apperr.Conflict("email already in use")
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM rac_users WHERE id = $1`, id))
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE rac_users SET
			first_name = COALESCE($2, first_name),
			last_name = COALESCE($3, last_name),
			phone = COALESCE($4, phone),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id, p.FirstName, p.LastName, p.Phone))
}

func (r *Repository) SetRole(ctx context.Context, id uuid.UUID, role string) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE rac_users SET role = $2, updated_at = now() WHERE id = $1
		RETURNING `+userColumns, id, role))
}

func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `
		UPDATE rac_users SET is_active = $2, updated_at = now() WHERE id = $1
		RETURNING `+userColumns, id, active))
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rac_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

// CountActiveAdmins counts admins that can still sign in.
func (r *Repository) CountActiveAdmins(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rac_users WHERE role = 'admin' AND is_active`).Scan(&n)
	return n, err
}

const listWhere = `
	WHERE ($1::text IS NULL OR email ILIKE $1 OR first_name ILIKE $1 OR last_name ILIKE $1)
	  AND ($2::text IS NULL OR role = $2)
	  AND ($3::boolean IS NULL OR is_active = $3)`

func (r *Repository) List(ctx context.Context, p ListParams) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rac_users`+listWhere, p.Search, p.Role, p.IsActive).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM rac_users`+listWhere+`
		ORDER BY CASE role WHEN 'admin' THEN 0 WHEN 'manager' THEN 1 ELSE 2 END, email
		LIMIT $4 OFFSET $5`, p.Search, p.Role, p.IsActive, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// ListActiveByRoles returns active staff holding one of roles, used to fan
// out notifications.
func (r *Repository) ListActiveByRoles(ctx context.Context, roles []string) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM rac_users WHERE is_active AND role = ANY($1) ORDER BY email`, roles)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
