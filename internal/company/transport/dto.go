package transport

// Company is what the public form needs to prefill a professional request.
type Company struct {
	SIREN         string `json:"siren"`
	SIRET         string `json:"siret,omitempty"`
	Name          string `json:"name"`
	LegalForm     string `json:"legalForm,omitempty"`
	LegalFormCode string `json:"legalFormCode,omitempty"`
	NAFCode       string `json:"nafCode,omitempty"`
	Address       string `json:"address,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	City          string `json:"city,omitempty"`
	Active        bool   `json:"active"`
}
