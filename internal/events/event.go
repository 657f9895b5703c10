package events

import (
	"time"

	"raccordement_backend/platform/events"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Auth / users
// =============================================================================

// PasswordResetRequested is published when a staff member asks for a reset link.
type PasswordResetRequested struct {
	BaseEvent
	UserID     uuid.UUID `json:"userId"`
	Email      string    `json:"email"`
	ResetToken string    `json:"resetToken"`
}

func (e PasswordResetRequested) EventName() string { return "auth.password.reset_requested" }

// UserInvited is published when an admin creates a staff account. The token
// lets the new user choose a password.
type UserInvited struct {
	BaseEvent
	UserID     uuid.UUID `json:"userId"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	Role       string    `json:"role"`
	SetupToken string    `json:"setupToken"`
}

func (e UserInvited) EventName() string { return "users.user.invited" }

// =============================================================================
// Leads
// =============================================================================

type LeadCreated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Source string    `json:"source"`
}

func (e LeadCreated) EventName() string { return "leads.lead.created" }

// LeadUpdated is published each time the funnel saves a step.
type LeadUpdated struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	Step        int       `json:"step"`
	CurrentStep int       `json:"currentStep"`
	Status      string    `json:"status"`
}

func (e LeadUpdated) EventName() string { return "leads.lead.updated" }

type LeadConverted struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	RequestID uuid.UUID `json:"requestId"`
	Reference string    `json:"reference"`
}

func (e LeadConverted) EventName() string { return "leads.lead.converted" }

type LeadAssigned struct {
	BaseEvent
	LeadID     uuid.UUID  `json:"leadId"`
	AssigneeID *uuid.UUID `json:"assigneeId,omitempty"`
	AssignedBy uuid.UUID  `json:"assignedBy"`
}

func (e LeadAssigned) EventName() string { return "leads.lead.assigned" }

// LeadAbandoned is published by the scheduler for funnels left unfinished.
type LeadAbandoned struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	SessionToken string    `json:"sessionToken"`
}

func (e LeadAbandoned) EventName() string { return "leads.lead.abandoned" }

// =============================================================================
// Service requests
// =============================================================================

type RequestCreated struct {
	BaseEvent
	RequestID   uuid.UUID `json:"requestId"`
	Reference   string    `json:"reference"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	AmountCents int64     `json:"amountCents"`
	Source      string    `json:"source"`
}

func (e RequestCreated) EventName() string { return "requests.request.created" }

type RequestStatusChanged struct {
	BaseEvent
	RequestID   uuid.UUID  `json:"requestId"`
	Reference   string     `json:"reference"`
	OldStatus   string     `json:"oldStatus"`
	NewStatus   string     `json:"newStatus"`
	ActorID     *uuid.UUID `json:"actorId,omitempty"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

func (e RequestStatusChanged) EventName() string { return "requests.status.changed" }

type RequestAssigned struct {
	BaseEvent
	RequestID  uuid.UUID  `json:"requestId"`
	Reference  string     `json:"reference"`
	AssigneeID *uuid.UUID `json:"assigneeId,omitempty"`
	AssignedBy uuid.UUID  `json:"assignedBy"`
}

func (e RequestAssigned) EventName() string { return "requests.request.assigned" }

// =============================================================================
// Payments
// =============================================================================

// PaymentStatusChanged is published once per effective payment transition.
type PaymentStatusChanged struct {
	BaseEvent
	PaymentID   uuid.UUID `json:"paymentId"`
	RequestID   uuid.UUID `json:"requestId"`
	Reference   string    `json:"reference"`
	OldStatus   string    `json:"oldStatus"`
	NewStatus   string    `json:"newStatus"`
	AmountCents int64     `json:"amountCents"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	Reason      string    `json:"reason,omitempty"`
}

func (e PaymentStatusChanged) EventName() string { return "payments.status.changed" }

// =============================================================================
// Contacts / tasks
// =============================================================================

type ContactReceived struct {
	BaseEvent
	ContactID uuid.UUID `json:"contactId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
}

func (e ContactReceived) EventName() string { return "contacts.contact.received" }

type TaskAssigned struct {
	BaseEvent
	TaskID     uuid.UUID  `json:"taskId"`
	Title      string     `json:"title"`
	AssigneeID uuid.UUID  `json:"assigneeId"`
	AssignedBy uuid.UUID  `json:"assignedBy"`
	DueAt      *time.Time `json:"dueAt,omitempty"`
}

func (e TaskAssigned) EventName() string { return "tasks.task.assigned" }

// TaskOverdue is published by the scheduler once per overdue task.
type TaskOverdue struct {
	BaseEvent
	TaskID     uuid.UUID `json:"taskId"`
	Title      string    `json:"title"`
	AssigneeID uuid.UUID `json:"assigneeId"`
	DueAt      time.Time `json:"dueAt"`
}

func (e TaskOverdue) EventName() string { return "tasks.task.overdue" }

// =============================================================================
// Notification outbox
// =============================================================================

// NotificationOutboxDue is published by the scheduler worker when an outbox
// record should be delivered.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
