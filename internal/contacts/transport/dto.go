package transport

import (
	"time"

	"github.com/google/uuid"
)

type CreateContactRequest struct {
	Name    string  `json:"name" validate:"required,min=2,max=120"`
	Email   string  `json:"email" validate:"required,email,max=254"`
	Phone   *string `json:"phone" validate:"omitempty,max=30"`
	Subject string  `json:"subject" validate:"required,min=2,max=200"`
	Message string  `json:"message" validate:"required,min=10,max=5000"`
	// Website is a honeypot field hidden from humans.
	Website string `json:"website" validate:"max=0"`
}

type ListRequest struct {
	Search   string `form:"search" validate:"max=100"`
	Status   string `form:"status" validate:"omitempty,oneof=new read replied archived"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new read replied archived"`
}

type ReplyRequest struct {
	Message string `json:"message" validate:"required,min=2,max=10000"`
}

type ContactResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     *string    `json:"phone,omitempty"`
	Subject   string     `json:"subject"`
	Message   string     `json:"message"`
	Status    string     `json:"status"`
	RepliedAt *time.Time `json:"repliedAt,omitempty"`
	RepliedBy *uuid.UUID `json:"repliedBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type ListResponse struct {
	Items      []ContactResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

// AcceptedResponse is what the public form gets back.
type AcceptedResponse struct {
	Received bool `json:"received"`
}
