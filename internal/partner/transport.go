package partner

import (
	"time"

	leadstransport "raccordement_backend/internal/leads/transport"

	"github.com/google/uuid"
)

type SubmitLeadRequest struct {
	leadstransport.StepData
	UTMSource   *string `json:"utmSource" validate:"omitempty,max=100"`
	UTMCampaign *string `json:"utmCampaign" validate:"omitempty,max=100"`
}

type LeadResponse struct {
	SessionToken string `json:"sessionToken"`
	CurrentStep  int    `json:"currentStep"`
	Status       string `json:"status"`
}

// SubmitRequest carries a complete request. Consent must be true.
type SubmitRequest struct {
	ClientType     string   `json:"clientType" validate:"required,oneof=particulier professionnel"`
	ConnectionType string   `json:"connectionType" validate:"required,oneof=nouveau_raccordement augmentation_puissance raccordement_provisoire deplacement_compteur raccordement_collectif"`
	Civility       *string  `json:"civility" validate:"omitempty,oneof=M Mme"`
	FirstName      string   `json:"firstName" validate:"required,max=100"`
	LastName       string   `json:"lastName" validate:"required,max=100"`
	Email          string   `json:"email" validate:"required,email,max=254"`
	Phone          string   `json:"phone" validate:"required,max=30"`
	CompanyName    *string  `json:"companyName" validate:"omitempty,max=200"`
	Siret          *string  `json:"siret" validate:"omitempty,siret"`
	Street         string   `json:"street" validate:"required,max=200"`
	PostalCode     string   `json:"postalCode" validate:"required,frpostalcode"`
	City           string   `json:"city" validate:"required,max=100"`
	PowerKVA       *float64 `json:"powerKva" validate:"omitempty,gt=0,lte=250"`
	Phase          *string  `json:"phase" validate:"omitempty,oneof=monophase triphase"`
	DesiredDate    *string  `json:"desiredDate" validate:"omitempty,datetime=2006-01-02"`
	Comments       *string  `json:"comments" validate:"omitempty,max=2000"`
	Consent        bool     `json:"consent" validate:"required"`
	UTMSource      *string  `json:"utmSource" validate:"omitempty,max=100"`
	UTMCampaign    *string  `json:"utmCampaign" validate:"omitempty,max=100"`
}

func (r SubmitRequest) stepData() leadstransport.StepData {
	consent := r.Consent
	return leadstransport.StepData{
		ClientType:     &r.ClientType,
		ConnectionType: &r.ConnectionType,
		Civility:       r.Civility,
		FirstName:      &r.FirstName,
		LastName:       &r.LastName,
		Email:          &r.Email,
		Phone:          &r.Phone,
		CompanyName:    r.CompanyName,
		Siret:          r.Siret,
		Street:         &r.Street,
		PostalCode:     &r.PostalCode,
		City:           &r.City,
		PowerKVA:       r.PowerKVA,
		Phase:          r.Phase,
		DesiredDate:    r.DesiredDate,
		Comments:       r.Comments,
		Consent:        &consent,
	}
}

// RequestView is what a partner sees of a request it submitted.
type RequestView struct {
	Reference     string     `json:"reference"`
	Status        string     `json:"status"`
	StatusLabel   string     `json:"statusLabel"`
	PaymentStatus string     `json:"paymentStatus"`
	AmountCents   int64      `json:"amountCents"`
	Currency      string     `json:"currency"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

type APIKeyResponse struct {
	ID         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"keyPrefix"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
}

type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}
