package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"raccordement_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `
	p.id, p.request_id, p.reference, p.processor_payment_id, p.amount_cents, p.currency,
	p.status, p.failure_reason, p.receipt_email, p.paid_at, p.refunded_at,
	p.refunded_amount_cents, p.created_at, p.updated_at`

type Payment struct {
	ID                  uuid.UUID
	RequestID           uuid.UUID
	Reference           string
	ProcessorPaymentID  string
	AmountCents         int64
	Currency            string
	Status              string
	FailureReason       *string
	ReceiptEmail        *string
	PaidAt              *time.Time
	RefundedAt          *time.Time
	RefundedAmountCents int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type CreateParams struct {
	RequestID          uuid.UUID
	Reference          string
	ProcessorPaymentID string
	AmountCents        int64
	Currency           string
	ReceiptEmail       *string
}

// StatusParams moves a payment from one status to another.
type StatusParams struct {
	From                string
	To                  string
	FailureReason       *string
	At                  time.Time
	RefundedAmountCents *int64
}

type ListParams struct {
	Search    *string
	Status    *string
	RequestID *uuid.UUID
	From      *time.Time
	To        *time.Time
	SortBy    string
	SortDesc  bool
	Offset    int
	Limit     int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.RequestID, &p.Reference, &p.ProcessorPaymentID, &p.AmountCents, &p.Currency,
		&p.Status, &p.FailureReason, &p.ReceiptEmail, &p.PaidAt, &p.RefundedAt,
		&p.RefundedAmountCents, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, apperr.NotFound("payment not found")
	}
	return p, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Payment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO rac_payments AS p (request_id, reference, processor_payment_id, amount_cents, currency, receipt_email)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (processor_payment_id) DO UPDATE SET updated_at = p.updated_at
		RETURNING `+paymentColumns,
		p.RequestID, p.Reference, p.ProcessorPaymentID, p.AmountCents, p.Currency, p.ReceiptEmail,
	)
	pay, err := scanPayment(row)
	if err != nil {
		return Payment{}, fmt.Errorf("create payment: %w", err)
	}
	return pay, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM rac_payments p WHERE p.id = $1`, id))
}

func (r *Repository) GetByProcessorID(ctx context.Context, processorID string) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM rac_payments p WHERE p.processor_payment_id = $1`, processorID))
}

// LatestPending returns the newest pending payment of a request.
func (r *Repository) LatestPending(ctx context.Context, requestID uuid.UUID) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM rac_payments p
		WHERE p.request_id = $1 AND p.status = 'pending'
		ORDER BY p.created_at DESC LIMIT 1`, requestID))
}

// TransitionStatus applies p only if the payment still has status p.From.
// The boolean is false when another writer got there first.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, p StatusParams) (Payment, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE rac_payments p SET
			status = $3,
			failure_reason = CASE WHEN $3 IN ('failed', 'canceled') THEN $4 ELSE p.failure_reason END,
			paid_at = CASE WHEN $3 = 'paid' THEN $5 ELSE p.paid_at END,
			refunded_at = CASE WHEN $3 = 'refunded' THEN $5 ELSE p.refunded_at END,
			refunded_amount_cents = CASE WHEN $3 = 'refunded' THEN COALESCE($6, p.amount_cents) ELSE p.refunded_amount_cents END,
			updated_at = now()
		WHERE p.id = $1 AND p.status = $2
		RETURNING `+paymentColumns,
		id, p.From, p.To, p.FailureReason, p.At, p.RefundedAmountCents,
	)
	pay, err := scanPayment(row)
	if apperr.Is(err, apperr.KindNotFound) {
		current, getErr := r.GetByID(ctx, id)
		return current, false, getErr
	}
	if err != nil {
		return Payment{}, false, fmt.Errorf("update payment status: %w", err)
	}
	return pay, true, nil
}

var listWhere = `
	WHERE ($1::text IS NULL OR p.reference ILIKE $1 OR p.processor_payment_id ILIKE $1 OR lower(p.receipt_email) LIKE $1)
	  AND ($2::text IS NULL OR p.status = $2)
	  AND ($3::uuid IS NULL OR p.request_id = $3)
	  AND ($4::timestamptz IS NULL OR p.created_at >= $4)
	  AND ($5::timestamptz IS NULL OR p.created_at < $5)`

var sortColumns = map[string]string{
	"createdAt": "p.created_at",
	"paidAt":    "p.paid_at",
	"amount":    "p.amount_cents",
	"status":    "p.status",
	"reference": "p.reference",
}

func orderBy(sortBy string, desc bool) string {
	col, ok := sortColumns[sortBy]
	if !ok {
		col, desc = "p.created_at", true
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir + " NULLS LAST, p.id"
}

func (r *Repository) List(ctx context.Context, p ListParams) ([]Payment, int, error) {
	args := []any{p.Search, p.Status, p.RequestID, p.From, p.To}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rac_payments p`+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM rac_payments p`+listWhere+
		orderBy(p.SortBy, p.SortDesc)+` LIMIT $6 OFFSET $7`, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	items := make([]Payment, 0)
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan payment: %w", err)
		}
		items = append(items, pay)
	}
	return items, total, rows.Err()
}

// StalePending lists pending payments older than cutoff, for reconciliation.
func (r *Repository) StalePending(ctx context.Context, cutoff time.Time, limit int) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM rac_payments p
		WHERE p.status = 'pending' AND p.created_at < $1
		ORDER BY p.created_at LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale payments: %w", err)
	}
	defer rows.Close()

	items := make([]Payment, 0)
	for rows.Next() {
		pay, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, pay)
	}
	return items, rows.Err()
}
