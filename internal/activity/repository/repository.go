package repository

import (
	"context"
	"encoding/json"
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

type Log struct {
	ID         uuid.UUID
	ActorID    *uuid.UUID
	ActorEmail *string
	Action     string
	EntityType string
	EntityID   string
	Details    json.RawMessage
	IPAddress  *string
	CreatedAt  time.Time
}

type InsertParams struct {
	ActorID    *uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Details    []byte
	IPAddress  *string
}

type ListParams struct {
	EntityType *string
	EntityID   *string
	ActorID    *uuid.UUID
	Action     *string
	From       *time.Time
	To         *time.Time
	Offset     int
	Limit      int
}

const insertSQL = `
	INSERT INTO rac_activity_logs (actor_id, action, entity_type, entity_id, details, ip_address)
	VALUES ($1, $2, $3, $4, COALESCE($5::jsonb, '{}'::jsonb), $6)`

const listWhere = `
	WHERE ($1::text IS NULL OR a.entity_type = $1)
	  AND ($2::text IS NULL OR a.entity_id = $2)
	  AND ($3::uuid IS NULL OR a.actor_id = $3)
	  AND ($4::text IS NULL OR a.action = $4)
	  AND ($5::timestamptz IS NULL OR a.created_at >= $5)
	  AND ($6::timestamptz IS NULL OR a.created_at < $6)`

func (r *Repository) Insert(ctx context.Context, p InsertParams) error {
	if _, err := r.pool.Exec(ctx, insertSQL, p.ActorID, p.Action, p.EntityType, p.EntityID, p.Details, p.IPAddress); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context, p ListParams) ([]Log, int, error) {
	args := []any{p.EntityType, p.EntityID, p.ActorID, p.Action, p.From, p.To}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rac_activity_logs a`+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.actor_id, u.email, a.action, a.entity_type, COALESCE(a.entity_id, ''), a.details, a.ip_address, a.created_at
		FROM rac_activity_logs a
		LEFT JOIN rac_users u ON u.id = a.actor_id`+listWhere+`
		ORDER BY a.created_at DESC
		LIMIT $7 OFFSET $8`, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}
	defer rows.Close()

	items := make([]Log, 0)
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.ActorID, &l.ActorEmail, &l.Action, &l.EntityType, &l.EntityID, &l.Details, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan activity log: %w", err)
		}
		items = append(items, l)
	}
	return items, total, rows.Err()
}

// PurgeBefore deletes entries older than cutoff and returns how many went.
func (r *Repository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rac_activity_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge activity logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
