package transport

import (
	"time"

	"github.com/google/uuid"
)

// StepData carries the fields of any funnel step. Which fields a step
// requires is checked by the service.
type StepData struct {
	ClientType     *string  `json:"clientType" validate:"omitempty,oneof=particulier professionnel"`
	ConnectionType *string  `json:"connectionType" validate:"omitempty,oneof=nouveau_raccordement augmentation_puissance raccordement_provisoire deplacement_compteur raccordement_collectif"`
	Civility       *string  `json:"civility" validate:"omitempty,oneof=M Mme"`
	FirstName      *string  `json:"firstName" validate:"omitempty,max=100"`
	LastName       *string  `json:"lastName" validate:"omitempty,max=100"`
	Email          *string  `json:"email" validate:"omitempty,email,max=254"`
	Phone          *string  `json:"phone" validate:"omitempty,max=30"`
	CompanyName    *string  `json:"companyName" validate:"omitempty,max=200"`
	Siret          *string  `json:"siret" validate:"omitempty,siret"`
	Street         *string  `json:"street" validate:"omitempty,max=200"`
	PostalCode     *string  `json:"postalCode" validate:"omitempty,frpostalcode"`
	City           *string  `json:"city" validate:"omitempty,max=100"`
	PowerKVA       *float64 `json:"powerKva" validate:"omitempty,gt=0,lte=250"`
	Phase          *string  `json:"phase" validate:"omitempty,oneof=monophase triphase"`
	DesiredDate    *string  `json:"desiredDate" validate:"omitempty,datetime=2006-01-02"`
	Comments       *string  `json:"comments" validate:"omitempty,max=2000"`
	Consent        *bool    `json:"consent"`
}

type StartRequest struct {
	StepData
	Source      string  `json:"source" validate:"omitempty,max=50"`
	UTMSource   *string `json:"utmSource" validate:"omitempty,max=100"`
	UTMMedium   *string `json:"utmMedium" validate:"omitempty,max=100"`
	UTMCampaign *string `json:"utmCampaign" validate:"omitempty,max=100"`
	Gclid       *string `json:"gclid" validate:"omitempty,max=200"`
}

type StartResponse struct {
	SessionToken string     `json:"sessionToken"`
	Lead         FunnelLead `json:"lead"`
}

// FunnelLead is what the public funnel sees when resuming.
type FunnelLead struct {
	CurrentStep    int       `json:"currentStep"`
	Status         string    `json:"status"`
	ClientType     *string   `json:"clientType,omitempty"`
	ConnectionType *string   `json:"connectionType,omitempty"`
	Civility       *string   `json:"civility,omitempty"`
	FirstName      *string   `json:"firstName,omitempty"`
	LastName       *string   `json:"lastName,omitempty"`
	Email          *string   `json:"email,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	CompanyName    *string   `json:"companyName,omitempty"`
	Siret          *string   `json:"siret,omitempty"`
	Street         *string   `json:"street,omitempty"`
	PostalCode     *string   `json:"postalCode,omitempty"`
	City           *string   `json:"city,omitempty"`
	PowerKVA       *float64  `json:"powerKva,omitempty"`
	Phase          *string   `json:"phase,omitempty"`
	DesiredDate    *string   `json:"desiredDate,omitempty"`
	Comments       *string   `json:"comments,omitempty"`
	Consent        bool      `json:"consent"`
	Reference      *string   `json:"reference,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type CompleteResponse struct {
	RequestID   uuid.UUID `json:"requestId"`
	Reference   string    `json:"reference"`
	AmountCents int64     `json:"amountCents"`
	Currency    string    `json:"currency"`
}

type PresignRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=100"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,gt=0"`
}

type PresignResponse struct {
	UploadURL string    `json:"uploadUrl"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AddDocumentRequest struct {
	Kind        string `json:"kind" validate:"required,oneof=plan identity kbis invoice other"`
	FileKey     string `json:"fileKey" validate:"required,max=500"`
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required,max=100"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,gt=0"`
}

type DocumentResponse struct {
	ID          uuid.UUID  `json:"id"`
	Kind        string     `json:"kind"`
	FileName    string     `json:"fileName"`
	ContentType string     `json:"contentType"`
	SizeBytes   int64      `json:"sizeBytes"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type ListRequest struct {
	Search     string `form:"search" validate:"max=100"`
	Status     string `form:"status" validate:"omitempty,oneof=new in_progress completed converted abandoned"`
	AssignedTo string `form:"assignedTo" validate:"omitempty,uuid"`
	DateFrom   string `form:"dateFrom" validate:"omitempty,datetime=2006-01-02"`
	DateTo     string `form:"dateTo" validate:"omitempty,datetime=2006-01-02"`
	SortBy     string `form:"sortBy" validate:"omitempty,oneof=createdAt updatedAt lastActivityAt currentStep status"`
	SortOrder  string `form:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
}

type UpdateLeadRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=new in_progress completed abandoned"`
	Notes  *string `json:"notes" validate:"omitempty,max=5000"`
}

type AssignRequest struct {
	AssigneeID *uuid.UUID `json:"assigneeId"`
}

type LeadResponse struct {
	ID               uuid.UUID  `json:"id"`
	CurrentStep      int        `json:"currentStep"`
	Status           string     `json:"status"`
	ClientType       *string    `json:"clientType,omitempty"`
	ConnectionType   *string    `json:"connectionType,omitempty"`
	Civility         *string    `json:"civility,omitempty"`
	FirstName        *string    `json:"firstName,omitempty"`
	LastName         *string    `json:"lastName,omitempty"`
	Email            *string    `json:"email,omitempty"`
	Phone            *string    `json:"phone,omitempty"`
	CompanyName      *string    `json:"companyName,omitempty"`
	Siret            *string    `json:"siret,omitempty"`
	Street           *string    `json:"street,omitempty"`
	PostalCode       *string    `json:"postalCode,omitempty"`
	City             *string    `json:"city,omitempty"`
	PowerKVA         *float64   `json:"powerKva,omitempty"`
	Phase            *string    `json:"phase,omitempty"`
	DesiredDate      *string    `json:"desiredDate,omitempty"`
	Comments         *string    `json:"comments,omitempty"`
	Consent          bool       `json:"consent"`
	ConsentAt        *time.Time `json:"consentAt,omitempty"`
	Source           string     `json:"source"`
	UTMSource        *string    `json:"utmSource,omitempty"`
	UTMMedium        *string    `json:"utmMedium,omitempty"`
	UTMCampaign      *string    `json:"utmCampaign,omitempty"`
	Gclid            *string    `json:"gclid,omitempty"`
	AssignedTo       *uuid.UUID `json:"assignedTo,omitempty"`
	ServiceRequestID *uuid.UUID `json:"serviceRequestId,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	ReminderSentAt   *time.Time `json:"reminderSentAt,omitempty"`
	LastActivityAt   time.Time  `json:"lastActivityAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type ListResponse struct {
	Items      []LeadResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalPages int            `json:"totalPages"`
}

type SummaryResponse struct {
	Summary   string `json:"summary"`
	Generated bool   `json:"generated"`
}
