package transport

import (
	"time"

	"github.com/google/uuid"
)

type Address struct {
	Street     string `json:"street" validate:"required,max=200"`
	PostalCode string `json:"postalCode" validate:"required,frpostalcode"`
	City       string `json:"city" validate:"required,max=100"`
}

type Project struct {
	PowerKVA    *float64 `json:"powerKva,omitempty" validate:"omitempty,gt=0,lte=250"`
	Phase       *string  `json:"phase,omitempty" validate:"omitempty,oneof=monophase triphase"`
	DesiredDate *string  `json:"desiredDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Comments    *string  `json:"comments,omitempty" validate:"omitempty,max=2000"`
}

// CreateRequest is the customer snapshot a service request is built from.
type CreateRequest struct {
	ClientType     string     `json:"clientType" validate:"required,oneof=particulier professionnel"`
	Civility       *string    `json:"civility" validate:"omitempty,oneof=M Mme"`
	FirstName      string     `json:"firstName" validate:"required,max=100"`
	LastName       string     `json:"lastName" validate:"required,max=100"`
	Email          string     `json:"email" validate:"required,email,max=254"`
	Phone          string     `json:"phone" validate:"required,max=30"`
	CompanyName    *string    `json:"companyName" validate:"omitempty,max=200"`
	Siret          *string    `json:"siret" validate:"omitempty,siret"`
	Address        Address    `json:"address" validate:"required"`
	ConnectionType string     `json:"connectionType" validate:"required,oneof=nouveau_raccordement augmentation_puissance raccordement_provisoire deplacement_compteur raccordement_collectif"`
	Project        Project    `json:"project"`
	Notes          *string    `json:"notes" validate:"omitempty,max=5000"`
	AssignedTo     *uuid.UUID `json:"assignedTo"`
}

type UpdateRequest struct {
	Civility       *string  `json:"civility" validate:"omitempty,oneof=M Mme"`
	FirstName      *string  `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName       *string  `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email          *string  `json:"email" validate:"omitempty,email,max=254"`
	Phone          *string  `json:"phone" validate:"omitempty,max=30"`
	CompanyName    *string  `json:"companyName" validate:"omitempty,max=200"`
	Siret          *string  `json:"siret" validate:"omitempty,siret"`
	Street         *string  `json:"street" validate:"omitempty,min=1,max=200"`
	PostalCode     *string  `json:"postalCode" validate:"omitempty,frpostalcode"`
	City           *string  `json:"city" validate:"omitempty,min=1,max=100"`
	ConnectionType *string  `json:"connectionType" validate:"omitempty,oneof=nouveau_raccordement augmentation_puissance raccordement_provisoire deplacement_compteur raccordement_collectif"`
	Project        *Project `json:"project"`
	Notes          *string  `json:"notes" validate:"omitempty,max=5000"`
	AmountCents    *int64   `json:"amountCents" validate:"omitempty,min=100,max=1000000"`
}

type StatusRequest struct {
	Status      string     `json:"status" validate:"required,oneof=new assigned validated in_progress scheduled completed canceled"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	Comment     *string    `json:"comment" validate:"omitempty,max=1000"`
}

type AssignRequest struct {
	AssigneeID *uuid.UUID `json:"assigneeId"`
}

type ListRequest struct {
	Search        string `form:"search" validate:"max=100"`
	Status        string `form:"status" validate:"omitempty,oneof=new assigned validated in_progress scheduled completed canceled"`
	PaymentStatus string `form:"paymentStatus" validate:"omitempty,oneof=pending paid failed canceled refunded"`
	AssignedTo    string `form:"assignedTo" validate:"omitempty,uuid"`
	DateFrom      string `form:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo        string `form:"dateTo" validate:"omitempty,datetime=2006-01-02"`
	SortBy        string `form:"sortBy" validate:"omitempty,oneof=createdAt updatedAt reference amount scheduledAt status"`
	SortOrder     string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page          int    `form:"page"`
	PageSize      int    `form:"pageSize"`
}

type TrackRequest struct {
	Email string `form:"email" validate:"required,email"`
}

type AddressResponse struct {
	Street     string `json:"street"`
	PostalCode string `json:"postalCode"`
	City       string `json:"city"`
}

type ProjectResponse struct {
	PowerKVA    *float64 `json:"powerKva,omitempty"`
	Phase       *string  `json:"phase,omitempty"`
	DesiredDate *string  `json:"desiredDate,omitempty"`
	Comments    *string  `json:"comments,omitempty"`
}

type RequestResponse struct {
	ID             uuid.UUID       `json:"id"`
	Reference      string          `json:"reference"`
	LeadID         *uuid.UUID      `json:"leadId,omitempty"`
	ClientType     string          `json:"clientType"`
	Civility       *string         `json:"civility,omitempty"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	CompanyName    *string         `json:"companyName,omitempty"`
	Siret          *string         `json:"siret,omitempty"`
	Address        AddressResponse `json:"address"`
	ConnectionType string          `json:"connectionType"`
	Project        ProjectResponse `json:"project"`
	AmountCents    int64           `json:"amountCents"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	StatusLabel    string          `json:"statusLabel"`
	PaymentStatus  string          `json:"paymentStatus"`
	AssignedTo     *uuid.UUID      `json:"assignedTo,omitempty"`
	ScheduledAt    *time.Time      `json:"scheduledAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
	CanceledAt     *time.Time      `json:"canceledAt,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	Source         string          `json:"source"`
	Gclid          *string         `json:"gclid,omitempty"`
	PartnerKeyID   *uuid.UUID      `json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type ListResponse struct {
	Items      []RequestResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

// TrackingResponse is the customer-facing view of a request.
type TrackingResponse struct {
	Reference      string     `json:"reference"`
	Status         string     `json:"status"`
	StatusLabel    string     `json:"statusLabel"`
	PaymentStatus  string     `json:"paymentStatus"`
	ConnectionType string     `json:"connectionType"`
	AmountCents    int64      `json:"amountCents"`
	Currency       string     `json:"currency"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}
