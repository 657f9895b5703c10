package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	StatusNew        = "new"
	StatusAssigned   = "assigned"
	StatusValidated  = "validated"
	StatusInProgress = "in_progress"
	StatusScheduled  = "scheduled"
	StatusCompleted  = "completed"
	StatusCanceled   = "canceled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentCanceled = "canceled"
	PaymentRefunded = "refunded"
)

const (
	SourceWebsite = "website"
	SourcePartner = "partner"
	SourceManual  = "manual"
)

var transitions = map[string][]string{
	StatusNew:        {StatusAssigned, StatusValidated, StatusCanceled},
	StatusAssigned:   {StatusValidated, StatusInProgress, StatusCanceled},
	StatusValidated:  {StatusAssigned, StatusInProgress, StatusCanceled},
	StatusInProgress: {StatusScheduled, StatusCanceled},
	StatusScheduled:  {StatusInProgress, StatusCompleted, StatusCanceled},
}

// CanTransition reports whether a request in status from may move to to.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status change is possible.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCanceled
}

var statusLabels = map[string]string{
	StatusNew:        "Demande reçue",
	StatusAssigned:   "Prise en charge par un conseiller",
	StatusValidated:  "Dossier validé",
	StatusInProgress: "Dossier en cours de traitement",
	StatusScheduled:  "Intervention planifiée",
	StatusCompleted:  "Raccordement terminé",
	StatusCanceled:   "Demande annulée",
}

// StatusLabel is the French wording shown to customers.
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

var connectionLabels = map[string]string{
	"nouveau_raccordement":    "Nouveau raccordement",
	"augmentation_puissance":  "Augmentation de puissance",
	"raccordement_provisoire": "Raccordement provisoire",
	"deplacement_compteur":    "Déplacement de compteur",
	"raccordement_collectif":  "Raccordement collectif",
}

func ConnectionLabel(connectionType string) string {
	if label, ok := connectionLabels[connectionType]; ok {
		return label
	}
	return connectionType
}

// Ambiguous characters (0/O, 1/I) are left out so references read well
// over the phone.
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReference returns a reference such as RAC-2026-7K3Q9P.
func NewReference(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		suffix[i] = referenceAlphabet[n.Int64()]
	}
	return fmt.Sprintf("RAC-%d-%s", now.Year(), suffix), nil
}
