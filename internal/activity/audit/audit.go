// Package audit is the contract other modules use to write the activity trail.
package audit

import (
	"context"

	"github.com/google/uuid"
)

// Entity types used across modules.
const (
	EntityLead        = "lead"
	EntityRequest     = "service_request"
	EntityPayment     = "payment"
	EntityUser        = "user"
	EntityContact     = "contact"
	EntityTask        = "task"
	EntityConfig      = "system_config"
	EntityTemplate    = "email_template"
	EntityAnimation   = "ui_animation"
	EntityPartnerKey  = "partner_key"
	EntityExportKey   = "export_key"
	EntityNotifyEmail = "notification_email"
)

// Entry is one audit record. A nil ActorID means the system or a webhook.
type Entry struct {
	ActorID    *uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	IPAddress  string
}

// Recorder is how other modules write to the trail. Implementations log
// failures instead of returning them.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
