package transport

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ConfigResponse struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Description *string         `json:"description,omitempty"`
	UpdatedBy   *uuid.UUID      `json:"updatedBy,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type SetConfigRequest struct {
	Value       json.RawMessage `json:"value" validate:"required"`
	Description *string         `json:"description" validate:"omitempty,max=255"`
}

type TemplateResponse struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	HTMLBody  string    `json:"htmlBody"`
	Variables []string  `json:"variables"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateTemplateRequest struct {
	Key       string   `json:"key" validate:"required,min=2,max=64,lowercase"`
	Name      string   `json:"name" validate:"required,max=120"`
	Subject   string   `json:"subject" validate:"required,max=255"`
	HTMLBody  string   `json:"htmlBody" validate:"required,max=100000"`
	Variables []string `json:"variables" validate:"omitempty,dive,max=64"`
	IsActive  *bool    `json:"isActive"`
}

type UpdateTemplateRequest struct {
	Name      *string  `json:"name" validate:"omitempty,max=120"`
	Subject   *string  `json:"subject" validate:"omitempty,max=255"`
	HTMLBody  *string  `json:"htmlBody" validate:"omitempty,max=100000"`
	Variables []string `json:"variables" validate:"omitempty,dive,max=64"`
	IsActive  *bool    `json:"isActive"`
}

type PreviewRequest struct {
	Variables map[string]string `json:"variables"`
}

type PreviewResponse struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

type AnimationResponse struct {
	ID        uuid.UUID       `json:"id"`
	Key       string          `json:"key"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Config    json.RawMessage `json:"config"`
	IsActive  bool            `json:"isActive"`
	SortOrder int             `json:"sortOrder"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// PublicAnimationResponse is what the public site receives.
type PublicAnimationResponse struct {
	Key    string          `json:"key"`
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

type CreateAnimationRequest struct {
	Key       string          `json:"key" validate:"required,min=2,max=64"`
	Name      string          `json:"name" validate:"required,max=120"`
	Type      string          `json:"type" validate:"required,oneof=fade slide zoom bounce confetti lottie custom"`
	Config    json.RawMessage `json:"config"`
	IsActive  *bool           `json:"isActive"`
	SortOrder *int            `json:"sortOrder" validate:"omitempty,min=0,max=1000"`
}

type UpdateAnimationRequest struct {
	Name      *string         `json:"name" validate:"omitempty,max=120"`
	Type      *string         `json:"type" validate:"omitempty,oneof=fade slide zoom bounce confetti lottie custom"`
	Config    json.RawMessage `json:"config"`
	IsActive  *bool           `json:"isActive"`
	SortOrder *int            `json:"sortOrder" validate:"omitempty,min=0,max=1000"`
}
