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

const taskColumns = `
	id, title, description, priority, status, due_at, assigned_to, created_by,
	lead_id, request_id, completed_at, created_at, updated_at`

type Task struct {
	ID          uuid.UUID
	Title       string
	Description *string
	Priority    string
	Status      string
	DueAt       *time.Time
	AssignedTo  *uuid.UUID
	CreatedBy   *uuid.UUID
	LeadID      *uuid.UUID
	RequestID   *uuid.UUID
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateParams struct {
	Title       string
	Description *string
	Priority    string
	DueAt       *time.Time
	AssignedTo  *uuid.UUID
	CreatedBy   uuid.UUID
	LeadID      *uuid.UUID
	RequestID   *uuid.UUID
}

// UpdateParams keeps stored values for nil fields. The Clear flags set a
// column back to NULL.
type UpdateParams struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *string
	DueAt       *time.Time
	ClearDueAt  bool
	AssignedTo  *uuid.UUID
	Unassign    bool
}

type ListParams struct {
	// Member restricts the list to tasks assigned to or created by a user.
	Member    *uuid.UUID
	Search    *string
	Status    *string
	Priority  *string
	LeadID    *uuid.UUID
	RequestID *uuid.UUID
	Overdue   bool
	Now       time.Time
	Offset    int
	Limit     int
}

// Overdue is a task past its due date that nobody was told about yet.
type Overdue struct {
	ID         uuid.UUID
	Title      string
	AssigneeID uuid.UUID
	DueAt      time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.DueAt, &t.AssignedTo,
		&t.CreatedBy, &t.LeadID, &t.RequestID, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, apperr.NotFound("task not found")
	}
	return t, err
}

func (r *Repository) Create(ctx context.Context, p CreateParams) (Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `
		INSERT INTO rac_agent_tasks (title, description, priority, due_at, assigned_to, created_by, lead_id, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+taskColumns,
		p.Title, p.Description, p.Priority, p.DueAt, p.AssignedTo, p.CreatedBy, p.LeadID, p.RequestID))
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM rac_agent_tasks WHERE id = $1`, id))
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, p UpdateParams) (Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `
		UPDATE rac_agent_tasks SET
			title = COALESCE($2, title),
			description = COALESCE($3, description),
			priority = COALESCE($4, priority),
			status = COALESCE($5, status),
			completed_at = CASE
				WHEN $5::text = 'done' AND status <> 'done' THEN now()
				WHEN $5::text IS NOT NULL AND $5::text <> 'done' THEN NULL
				ELSE completed_at END,
			due_at = CASE WHEN $7 THEN NULL ELSE COALESCE($6, due_at) END,
			overdue_notified_at = CASE WHEN $6::timestamptz IS NOT NULL OR $7 THEN NULL ELSE overdue_notified_at END,
			assigned_to = CASE WHEN $9 THEN NULL ELSE COALESCE($8, assigned_to) END,
			updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns,
		id, p.Title, p.Description, p.Priority, p.Status, p.DueAt, p.ClearDueAt, p.AssignedTo, p.Unassign))
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM rac_agent_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("task not found")
	}
	return nil
}

var listWhere = fmt.Sprintf(`
	WHERE ($1::uuid IS NULL OR assigned_to = $1 OR created_by = $1)
	  AND ($2::text IS NULL OR %s LIKE $2)
	  AND ($3::text IS NULL OR status = $3)
	  AND ($4::text IS NULL OR priority = $4)
	  AND ($5::uuid IS NULL OR lead_id = $5)
	  AND ($6::uuid IS NULL OR request_id = $6)
	  AND (NOT $7 OR (status <> 'done' AND due_at < $8))`,
	fmt.Sprintf(sanitize.AccentFoldSQL, "title"),
)

// Open tasks first, then by due date, most urgent first.
const listOrder = `
	ORDER BY (status = 'done'), due_at ASC NULLS LAST,
	CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'normal' THEN 2 ELSE 3 END,
	created_at DESC, id`

func (r *Repository) List(ctx context.Context, p ListParams) ([]Task, int, error) {
	args := []any{p.Member, p.Search, p.Status, p.Priority, p.LeadID, p.RequestID, p.Overdue, p.Now}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rac_agent_tasks`+listWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM rac_agent_tasks`+listWhere+listOrder+
		` LIMIT $9 OFFSET $10`, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}

// ClaimOverdue marks overdue assigned tasks as notified and returns them.
// Each task is returned once per due date.
func (r *Repository) ClaimOverdue(ctx context.Context, now time.Time, limit int) ([]Overdue, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE rac_agent_tasks SET overdue_notified_at = $1
		WHERE id IN (
			SELECT id FROM rac_agent_tasks
			WHERE status <> 'done' AND assigned_to IS NOT NULL
			  AND due_at < $1 AND overdue_notified_at IS NULL
			ORDER BY due_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, title, assigned_to, due_at`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("claim overdue tasks: %w", err)
	}
	defer rows.Close()

	var out []Overdue
	for rows.Next() {
		var o Overdue
		if err := rows.Scan(&o.ID, &o.Title, &o.AssigneeID, &o.DueAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
