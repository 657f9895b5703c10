package transport

import (
	"time"

	"github.com/google/uuid"
)

type ListRequest struct {
	Search   string `form:"search" validate:"max=100"`
	Role     string `form:"role" validate:"omitempty,oneof=admin manager agent"`
	IsActive *bool  `form:"isActive"`
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
}

type CreateUserRequest struct {
	Email     string  `json:"email" validate:"required,email,max=254"`
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
	Role      string  `json:"role" validate:"required,oneof=admin manager agent"`
}

type UpdateUserRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=30"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin manager agent"`
}

type UserResponse struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FirstName   *string    `json:"firstName,omitempty"`
	LastName    *string    `json:"lastName,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	Role        string     `json:"role"`
	Permissions []string   `json:"permissions"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type ListResponse struct {
	Items      []UserResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}
