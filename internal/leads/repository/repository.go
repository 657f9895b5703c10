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

const leadColumns = `
	id, session_token, current_step, status, client_type, connection_type, civility,
	first_name, last_name, email, phone, company_name, siret,
	address_street, address_postal_code, address_city,
	power_kva, phase, desired_date, comments, consent, consent_at,
	source, utm_source, utm_medium, utm_campaign, gclid,
	assigned_to, service_request_id, notes, reminder_sent_at, last_activity_at,
	completed_at, created_at, updated_at`

type Lead struct {
	ID                uuid.UUID
	SessionToken      string
	CurrentStep       int
	Status            string
	ClientType        *string
	ConnectionType    *string
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
	PowerKVA          *float64
	Phase             *string
	DesiredDate       *time.Time
	Comments          *string
	Consent           bool
	ConsentAt         *time.Time
	Source            string
	UTMSource         *string
	UTMMedium         *string
	UTMCampaign       *string
	Gclid             *string
	AssignedTo        *uuid.UUID
	ServiceRequestID  *uuid.UUID
	Notes             *string
	ReminderSentAt    *time.Time
	LastActivityAt    time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CreateParams struct {
	SessionToken string
	Source       string
	UTMSource    *string
	UTMMedium    *string
	UTMCampaign  *string
	Gclid        *string
	Fields       FieldParams
}

// FieldParams are the funnel fields; nil keeps the stored value.
type FieldParams struct {
	ClientType        *string
	ConnectionType    *string
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
	PowerKVA          *float64
	Phase             *string
	DesiredDate       *time.Time
	Comments          *string
	Consent           *bool
}

type ListParams struct {
	Search     *string
	Status     *string
	AssignedTo *uuid.UUID
	From       *time.Time
	To         *time.Time
	SortBy     string
	SortDesc   bool
	Offset     int
	Limit      int
}

// Abandoned is a lead that was just marked abandoned.
type Abandoned struct {
	ID             uuid.UUID
	SessionToken   string
	Email          *string
	FirstName      *string
	ReminderSentAt *time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.SessionToken, &l.CurrentStep, &l.Status, &l.ClientType, &l.ConnectionType, &l.Civility,
		&l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.CompanyName, &l.Siret,
		&l.AddressStreet, &l.AddressPostalCode, &l.AddressCity,
		&l.PowerKVA, &l.Phase, &l.DesiredDate, &l.Comments, &l.Consent, &l.ConsentAt,
		&l.Source, &l.UTMSource, &l.UTMMedium, &l.UTMCampaign, &l.Gclid,
		&l.AssignedTo, &l.ServiceRequestID, &l.Notes, &l.ReminderSentAt, &l.LastActivityAt,
		&l.CompletedAt, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound("lead not found")
	}
	return l, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Lead, error) {
	f := p.Fields
	l, err := scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO rac_leads (
			session_token, source, utm_source, utm_medium, utm_campaign, gclid,
			client_type, connection_type, civility, first_name, last_name, email, phone,
			company_name, siret, address_street, address_postal_code, address_city,
			power_kva, phase, desired_date, comments, consent, consent_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, lower($12), $13,
			$14, $15, $16, $17, $18,
			$19, $20, $21, $22, COALESCE($23, false), CASE WHEN $23 THEN now() END
		)
		RETURNING `+leadColumns,
		p.SessionToken, p.Source, p.UTMSource, p.UTMMedium, p.UTMCampaign, p.Gclid,
		f.ClientType, f.ConnectionType, f.Civility, f.FirstName, f.LastName, f.Email, f.Phone,
		f.CompanyName, f.Siret, f.AddressStreet, f.AddressPostalCode, f.AddressCity,
		f.PowerKVA, f.Phase, f.DesiredDate, f.Comments, f.Consent,
	))
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}
	return l, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM rac_leads WHERE id = $1`, id))
}

func (r *Repository) GetBySessionToken(ctx context.Context, token string) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM rac_leads WHERE session_token = $1`, token))
}

// SaveStep merges funnel fields, advances current_step monotonically and
// reopens the funnel. Converted leads are never touched.
func (r *Repository) SaveStep(ctx context.Context, id uuid.UUID, step int, f FieldParams) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE rac_leads SET
			client_type = COALESCE($3, client_type),
			connection_type = COALESCE($4, connection_type),
			civility = COALESCE($5, civility),
			first_name = COALESCE($6, first_name),
			last_name = COALESCE($7, last_name),
			email = COALESCE(lower($8), email),
			phone = COALESCE($9, phone),
			company_name = COALESCE($10, company_name),
			siret = COALESCE($11, siret),
			address_street = COALESCE($12, address_street),
			address_postal_code = COALESCE($13, address_postal_code),
			address_city = COALESCE($14, address_city),
			power_kva = COALESCE($15, power_kva),
			phase = COALESCE($16, phase),
			desired_date = COALESCE($17, desired_date),
			comments = COALESCE($18, comments),
			consent = COALESCE($19, consent),
			consent_at = CASE WHEN $19 AND NOT consent THEN now() WHEN $19 = false THEN NULL ELSE consent_at END,
			current_step = GREATEST(current_step, $2),
			status = 'in_progress',
			last_activity_at = now(),
			updated_at = now()
		WHERE id = $1 AND status <> 'converted'
		RETURNING `+leadColumns,
		id, step, f.ClientType, f.ConnectionType, f.Civility, f.FirstName, f.LastName, f.Email, f.Phone,
		f.CompanyName, f.Siret, f.AddressStreet, f.AddressPostalCode, f.AddressCity,
		f.PowerKVA, f.Phase, f.DesiredDate, f.Comments, f.Consent,
	))
}

func (r *Repository) MarkConverted(ctx context.Context, id, requestID uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE rac_leads SET
			status = 'converted',
			service_request_id = $2,
			completed_at = COALESCE(completed_at, now()),
			last_activity_at = now(),
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns, id, requestID))
}

func (r *Repository) UpdateStaff(ctx context.Context, id uuid.UUID, status, notes *string) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE rac_leads SET
			status = COALESCE($2, status),
			notes = COALESCE($3, notes),
			completed_at = CASE WHEN $2 = 'completed' THEN COALESCE(completed_at, now()) ELSE completed_at END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns, id, status, notes))
}

func (r *Repository) Assign(ctx context.Context, id uuid.UUID, assignee *uuid.UUID) (Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `
		UPDATE rac_leads SET assigned_to = $2, updated_at = now() WHERE id = $1
		RETURNING `+leadColumns, id, assignee))
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rac_leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead not found")
	}
	return nil
}

var listWhere = fmt.Sprintf(`
	WHERE ($1::text IS NULL OR %s LIKE $1 OR %s LIKE $1 OR lower(email) LIKE $1 OR phone LIKE $1 OR address_postal_code LIKE $1)
	  AND ($2::text IS NULL OR status = $2)
	  AND ($3::uuid IS NULL OR assigned_to = $3)
	  AND ($4::timestamptz IS NULL OR created_at >= $4)
	  AND ($5::timestamptz IS NULL OR created_at < $5)`,
	fmt.Sprintf(sanitize.AccentFoldSQL, "first_name"),
	fmt.Sprintf(sanitize.AccentFoldSQL, "last_name"),
)

var sortColumns = map[string]string{
	"createdAt":      "created_at",
	"updatedAt":      "updated_at",
	"lastActivityAt": "last_activity_at",
	"currentStep":    "current_step",
	"status":         "status",
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
	return " ORDER BY " + col + " " + dir + ", id"
}

func (r *Repository) List(ctx context.Context, p ListParams) ([]Lead, int, error) {
	args := []any{p.Search, p.Status, p.AssignedTo, p.From, p.To}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rac_leads`+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+leadColumns+` FROM rac_leads`+listWhere+
		orderBy(p.SortBy, p.SortDesc)+` LIMIT $6 OFFSET $7`, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, total, rows.Err()
}

// MarkAbandoned flips open funnels idle since before cutoff to abandoned
// and returns them.
func (r *Repository) MarkAbandoned(ctx context.Context, cutoff time.Time) ([]Abandoned, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE rac_leads SET status = 'abandoned', updated_at = now()
		WHERE status IN ('new', 'in_progress') AND last_activity_at < $1
		RETURNING id, session_token, email, first_name, reminder_sent_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("mark abandoned leads: %w", err)
	}
	defer rows.Close()

	out := make([]Abandoned, 0)
	for rows.Next() {
		var a Abandoned
		if err := rows.Scan(&a.ID, &a.SessionToken, &a.Email, &a.FirstName, &a.ReminderSentAt); err != nil {
			return nil, fmt.Errorf("scan abandoned lead: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkReminderSent reports false when a reminder was already recorded.
func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE rac_leads SET reminder_sent_at = now() WHERE id = $1 AND reminder_sent_at IS NULL`, id)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
