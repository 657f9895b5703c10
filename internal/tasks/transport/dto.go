package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,min=2,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Priority    string     `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	DueAt       *time.Time `json:"dueAt"`
	AssignedTo  *uuid.UUID `json:"assignedTo"`
	LeadID      *uuid.UUID `json:"leadId"`
	RequestID   *uuid.UUID `json:"requestId"`
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=2,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Priority    *string    `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Status      *string    `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	DueAt       *time.Time `json:"dueAt"`
	ClearDueAt  bool       `json:"clearDueAt"`
	AssignedTo  *uuid.UUID `json:"assignedTo"`
	Unassign    bool       `json:"unassign"`
}

type ListRequest struct {
	Scope     string `form:"scope" validate:"omitempty,oneof=mine all"`
	Search    string `form:"search" validate:"max=100"`
	Status    string `form:"status" validate:"omitempty,oneof=todo in_progress done"`
	Priority  string `form:"priority" validate:"omitempty,oneof=low normal high urgent"`
	LeadID    string `form:"leadId" validate:"omitempty,uuid"`
	RequestID string `form:"requestId" validate:"omitempty,uuid"`
	Overdue   bool   `form:"overdue"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}

type TaskResponse struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"dueAt,omitempty"`
	Overdue     bool       `json:"overdue"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty"`
	LeadID      *uuid.UUID `json:"leadId,omitempty"`
	RequestID   *uuid.UUID `json:"requestId,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type ListResponse struct {
	Items      []TaskResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
