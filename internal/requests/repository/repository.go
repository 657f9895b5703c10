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
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrReferenceTaken is returned by Create when the generated reference
// collides with an existing one.
var ErrReferenceTaken = errors.New("reference already exists")

const requestColumns = `
	id, reference, lead_id, client_type, civility, first_name, last_name, email, phone,
	company_name, siret, address_street, address_postal_code, address_city,
	connection_type, power_kva, phase, desired_date, comments, amount_cents, currency,
	status, payment_status, assigned_to, scheduled_at, completed_at, canceled_at, notes,
	source, gclid, partner_key_id, created_at, updated_at`

type Request struct {
	ID                uuid.UUID
	Reference         string
	LeadID            *uuid.UUID
	ClientType        string
	Civility          *string
	FirstName         string
	LastName          string
	Email             string
	Phone             string
	CompanyName       *string
	Siret             *string
	AddressStreet     string
	AddressPostalCode string
	AddressCity       string
	ConnectionType    string
	PowerKVA          *float64
	Phase             *string
	DesiredDate       *time.Time
	Comments          *string
	AmountCents       int64
	Currency          string
	Status            string
	PaymentStatus     string
	AssignedTo        *uuid.UUID
	ScheduledAt       *time.Time
	CompletedAt       *time.Time
	CanceledAt        *time.Time
	Notes             *string
	Source            string
	Gclid             *string
	PartnerKeyID      *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CreateParams struct {
	Reference         string
	LeadID            *uuid.UUID
	ClientType        string
	Civility          *string
	FirstName         string
	LastName          string
	Email             string
	Phone             string
	CompanyName       *string
	Siret             *string
	AddressStreet     string
	AddressPostalCode string
	AddressCity       string
	ConnectionType    string
	PowerKVA          *float64
	Phase             *string
	DesiredDate       *time.Time
	Comments          *string
	AmountCents       int64
	AssignedTo        *uuid.UUID
	Notes             *string
	Source            string
	Gclid             *string
	PartnerKeyID      *uuid.UUID
}

// UpdateParams holds the editable fields; nil keeps the stored value.
type UpdateParams struct {
	Civility          *string
	FirstName         *string
	LastName          *string
	Email             *string
	Phone             *string
	CompanyName       *string
	Siret             *string
	AddressStreet     *string
	AddressPostalCode *string
	AddressCity       *string
	ConnectionType    *string
	PowerKVA          *float64
	Phase             *string
	DesiredDate       *time.Time
	Comments          *string
	Notes             *string
	AmountCents       *int64
}

type StatusParams struct {
	Status      string
	ScheduledAt *time.Time
	CompletedAt *time.Time
	CanceledAt  *time.Time
}

type ListParams struct {
	Search        *string
	Status        *string
	PaymentStatus *string
	AssignedTo    *uuid.UUID
	From          *time.Time
	To            *time.Time
	SortBy        string
	SortDesc      bool
	Offset        int
	Limit         int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	err := row.Scan(
		&r.ID, &r.Reference, &r.LeadID, &r.ClientType, &r.Civility, &r.FirstName, &r.LastName, &r.Email, &r.Phone,
		&r.CompanyName, &r.Siret, &r.AddressStreet, &r.AddressPostalCode, &r.AddressCity,
		&r.ConnectionType, &r.PowerKVA, &r.Phase, &r.DesiredDate, &r.Comments, &r.AmountCents, &r.Currency,
		&r.Status, &r.PaymentStatus, &r.AssignedTo, &r.ScheduledAt, &r.CompletedAt, &r.CanceledAt, &r.Notes,
		&r.Source, &r.Gclid, &r.PartnerKeyID, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, apperr.NotFound("service request not found")
	}
	return r, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, `
		INSERT INTO rac_service_requests (
			reference, lead_id, client_type, civility, first_name, last_name, email, phone,
			company_name, siret, address_street, address_postal_code, address_city,
			connection_type, power_kva, phase, desired_date, comments, amount_cents,
			assigned_to, status, notes, source, gclid, partner_key_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, lower($7), $8,
			$9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19,
			$20, CASE WHEN $20::uuid IS NULL THEN 'new' ELSE 'assigned' END, $21, $22, $23, $24
		)
		RETURNING `+requestColumns,
		p.Reference, p.LeadID, p.ClientType, p.Civility, p.FirstName, p.LastName, p.Email, p.Phone,
		p.CompanyName, p.Siret, p.AddressStreet, p.AddressPostalCode, p.AddressCity,
		p.ConnectionType, p.PowerKVA, p.Phase, p.DesiredDate, p.Comments, p.AmountCents,
		p.AssignedTo, p.Notes, p.Source, p.Gclid, p.PartnerKeyID,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "rac_service_requests_reference_key" {
			return Request{}, ErrReferenceTaken
		}
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "idx_rac_service_requests_lead" {
			return Request{}, apperr.Conflict("lead already converted")
		}
		return Request{}, fmt.Errorf("create service request: %w", err)
	}
	return req, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM rac_service_requests WHERE id = $1`, id))
}

func (r *Repository) GetByReference(ctx context.Context, reference string) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM rac_service_requests WHERE reference = upper($1)`, reference))
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		UPDATE rac_service_requests SET
			civility = COALESCE($2, civility),
			first_name = COALESCE($3, first_name),
			last_name = COALESCE($4, last_name),
			email = COALESCE(lower($5), email),
			phone = COALESCE($6, phone),
			company_name = COALESCE($7, company_name),
			siret = COALESCE($8, siret),
			address_street = COALESCE($9, address_street),
			address_postal_code = COALESCE($10, address_postal_code),
			address_city = COALESCE($11, address_city),
			connection_type = COALESCE($12, connection_type),
			power_kva = COALESCE($13, power_kva),
			phase = COALESCE($14, phase),
			desired_date = COALESCE($15, desired_date),
			comments = COALESCE($16, comments),
			notes = COALESCE($17, notes),
			amount_cents = COALESCE($18, amount_cents),
			updated_at = now()
		WHERE id = $1
		RETURNING `+requestColumns,
		id, p.Civility, p.FirstName, p.LastName, p.Email, p.Phone, p.CompanyName, p.Siret,
		p.AddressStreet, p.AddressPostalCode, p.AddressCity, p.ConnectionType, p.PowerKVA,
		p.Phase, p.DesiredDate, p.Comments, p.Notes, p.AmountCents,
	))
}

// SetStatus writes a status and its timestamps. Only scheduled_at keeps its
// previous value when p.ScheduledAt is nil.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, p StatusParams) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		UPDATE rac_service_requests SET
			status = $2,
			scheduled_at = COALESCE($3, scheduled_at),
			completed_at = $4,
			canceled_at = $5,
			updated_at = now()
		WHERE id = $1
		RETURNING `+requestColumns, id, p.Status, p.ScheduledAt, p.CompletedAt, p.CanceledAt))
}

func (r *Repository) Assign(ctx context.Context, id uuid.UUID, assignee *uuid.UUID) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		UPDATE rac_service_requests SET assigned_to = $2, updated_at = now() WHERE id = $1
		RETURNING `+requestColumns, id, assignee))
}

func (r *Repository) SetPaymentStatus(ctx context.Context, id uuid.UUID, status string) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		UPDATE rac_service_requests SET payment_status = $2, updated_at = now() WHERE id = $1
		RETURNING `+requestColumns, id, status))
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rac_service_requests WHERE id = $1`, id)
	if err != nil {
		return deleteError(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("service request not found")
	}
	return nil
}

// deleteError maps the payments foreign key to a conflict so payment
// history is never lost with its request.
func deleteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.Conflict("request has payments")
	}
	return fmt.Errorf("delete service request: %w", err)
}

var listWhere = fmt.Sprintf(`
	WHERE ($1::text IS NULL OR reference ILIKE $1 OR %s LIKE $1 OR %s LIKE $1 OR lower(email) LIKE $1 OR address_postal_code LIKE $1)
	  AND ($2::text IS NULL OR status = $2)
	  AND ($3::text IS NULL OR payment_status = $3)
	  AND ($4::uuid IS NULL OR assigned_to = $4)
	  AND ($5::timestamptz IS NULL OR created_at >= $5)
	  AND ($6::timestamptz IS NULL OR created_at < $6)`,
	fmt.Sprintf(sanitize.AccentFoldSQL, "first_name"),
	fmt.Sprintf(sanitize.AccentFoldSQL, "last_name"),
)

var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"reference":   "reference",
	"amount":      "amount_cents",
	"scheduledAt": "scheduled_at",
	"status":      "status",
}

func orderBy(sortBy string, desc bool) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		col, desc = "created_at", true
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir + " NULLS LAST, id"
}

func (r *Repository) List(ctx context.Context, p ListParams) ([]Request, int, error) {
	args := []any{p.Search, p.Status, p.PaymentStatus, p.AssignedTo, p.From, p.To}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rac_service_requests`+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count service requests: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM rac_service_requests`+listWhere+
		orderBy(p.SortBy, p.SortDesc)+` LIMIT $7 OFFSET $8`, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list service requests: %w", err)
	}
	defer rows.Close()

	items := make([]Request, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan service request: %w", err)
		}
		items = append(items, req)
	}
	return items, total, rows.Err()
}
