// Package repository runs the aggregate queries behind the dashboard.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LeadCounts returns leads created since each cutoff.
func (r *Repository) LeadCounts(ctx context.Context, dayStart, weekStart time.Time) (int, int, error) {
	var today, week int
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE created_at >= $1),
			COUNT(*) FILTER (WHERE created_at >= $2)
		FROM rac_leads
		WHERE created_at >= LEAST($1::timestamptz, $2::timestamptz)`, dayStart, weekStart).Scan(&today, &week)
	if err != nil {
		return 0, 0, fmt.Errorf("lead counts: %w", err)
	}
	return today, week, nil
}

// Conversion returns leads created since the cutoff and how many of them
// became a service request.
func (r *Repository) Conversion(ctx context.Context, since time.Time) (int, int, error) {
	var total, converted int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'converted')
		FROM rac_leads
		WHERE created_at >= $1`, since).Scan(&total, &converted)
	if err != nil {
		return 0, 0, fmt.Errorf("lead conversion: %w", err)
	}
	return total, converted, nil
}

func (r *Repository) RequestsByStatus(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, `SELECT status, COUNT(*) FROM rac_service_requests GROUP BY status`)
}

func (r *Repository) PaymentsByStatus(ctx context.Context) (map[string]int, error) {
	return r.countBy(ctx, `SELECT status, COUNT(*) FROM rac_payments GROUP BY status`)
}

// RevenueSince sums captured payments net of refunds.
func (r *Repository) RevenueSince(ctx context.Context, since time.Time) (int64, error) {
	var cents int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents - refunded_amount_cents), 0)
		FROM rac_payments
		WHERE paid_at >= $1 AND status IN ('paid', 'refunded')`, since).Scan(&cents)
	if err != nil {
		return 0, fmt.Errorf("revenue: %w", err)
	}
	return cents, nil
}

// OpenTasks counts tasks not done. A non-nil assignee restricts the count.
func (r *Repository) OpenTasks(ctx context.Context, assignee *uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM rac_agent_tasks
		WHERE status <> 'done' AND ($1::uuid IS NULL OR assigned_to = $1)`, assignee).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("open tasks: %w", err)
	}
	return n, nil
}

func (r *Repository) countBy(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}
