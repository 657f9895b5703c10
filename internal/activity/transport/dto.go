package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ListRequest struct {
	EntityType string     `form:"entityType" validate:"omitempty,max=50"`
	EntityID   string     `form:"entityId" validate:"omitempty,max=100"`
	ActorID    *uuid.UUID `form:"actorId"`
	Action     string     `form:"action" validate:"omitempty,max=100"`
	DateFrom   *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo     *time.Time `form:"dateTo" time_format:"2006-01-02"`
	Page       int        `form:"page"`
	PageSize   int        `form:"pageSize"`
}

type LogResponse struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    *uuid.UUID      `json:"actorId,omitempty"`
	ActorEmail *string         `json:"actorEmail,omitempty"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Details    json.RawMessage `json:"details"`
	IPAddress  *string         `json:"ipAddress,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type ListResponse struct {
	Items      []LogResponse `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}
