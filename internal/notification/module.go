// Package notification reacts to domain events: it stores in-app
// notifications for staff, pushes live updates over WebSocket and queues
// transactional emails in an outbox the scheduler drains.
package notification

import (
	"context"
	"strings"
	"time"

	"raccordement_backend/internal/email"
	"raccordement_backend/internal/events"
	apphttp "raccordement_backend/internal/http"
	notifhandler "raccordement_backend/internal/notification/handler"
	"raccordement_backend/internal/notification/inapp"
	"raccordement_backend/internal/notification/outbox"
	"raccordement_backend/internal/notification/ws"
	usersrepo "raccordement_backend/internal/users/repository"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Staff resolves who should hear about an event.
type Staff interface {
	StaffByRoles(ctx context.Context, roleList ...string) ([]usersrepo.User, error)
	EmailOf(ctx context.Context, id uuid.UUID) (string, error)
}

// AlertRecipients lists the addresses configured for internal alerts.
type AlertRecipients interface {
	NotificationEmails(ctx context.Context) []string
}

// Receipts renders the PDF attached to payment confirmations.
type Receipts interface {
	Receipt(ctx context.Context, paymentID uuid.UUID) ([]byte, string, error)
}

type OutboxStore interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (outbox.Record, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSucceeded(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError string) error
	ScheduleRetry(ctx context.Context, id uuid.UUID, runAt time.Time, lastError string) error
}

type InAppSender interface {
	Send(ctx context.Context, p inapp.SendParams) error
}

// Live pushes events to connected dashboards.
type Live interface {
	SendToUser(userID uuid.UUID, msgType string, data any)
	Broadcast(msgType string, data any)
	BroadcastToRole(role, msgType string, data any)
}

// Deps wires the module. Relay stands in for Hub in processes without
// sockets.
type Deps struct {
	Pool     *pgxpool.Pool
	Sender   email.Sender
	Hub      *ws.Hub
	Relay    *ws.Publisher
	Staff    Staff
	Alerts   AlertRecipients
	Receipts Receipts
	Config   config.NotificationConfig
	Logger   *logger.Logger
}

type Module struct {
	sender   email.Sender
	outbox   OutboxStore
	inApp    InAppSender
	live     Live
	hub      *ws.Hub
	staff    Staff
	alerts   AlertRecipients
	receipts Receipts
	cfg      config.NotificationConfig
	log      *logger.Logger

	inAppHandler *notifhandler.HTTPHandler
}

func New(d Deps) *Module {
	var live Live
	var pusher inapp.Pusher
	switch {
	case d.Hub != nil:
		live, pusher = d.Hub, d.Hub
	case d.Relay != nil:
		live, pusher = d.Relay, d.Relay
	}
	inAppSvc := inapp.NewService(inapp.NewRepository(d.Pool), pusher, d.Logger)
	return &Module{
		sender:       d.Sender,
		outbox:       outbox.New(d.Pool),
		inApp:        inAppSvc,
		live:         live,
		hub:          d.Hub,
		staff:        d.Staff,
		alerts:       d.Alerts,
		receipts:     d.Receipts,
		cfg:          d.Config,
		log:          d.Logger,
		inAppHandler: notifhandler.NewHTTPHandler(inAppSvc),
	}
}

func (m *Module) Name() string { return "notification" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.inAppHandler.RegisterRoutes(ctx.Protected.Group("/notifications"))
	if m.hub != nil {
		ctx.V1.GET("/ws", m.hub.Handler())
	}
}

// RegisterHandlers subscribes to every event that produces a notification.
func (m *Module) RegisterHandlers(bus events.Bus) {
	for _, e := range []events.Event{
		events.PasswordResetRequested{},
		events.UserInvited{},
		events.LeadCreated{},
		events.LeadUpdated{},
		events.LeadConverted{},
		events.LeadAssigned{},
		events.LeadAbandoned{},
		events.RequestCreated{},
		events.RequestStatusChanged{},
		events.RequestAssigned{},
		events.PaymentStatusChanged{},
		events.ContactReceived{},
		events.TaskAssigned{},
		events.TaskOverdue{},
		events.NotificationOutboxDue{},
	} {
		bus.Subscribe(e.EventName(), m)
	}
	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the matching handler.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.PasswordResetRequested:
		return m.handlePasswordReset(ctx, e)
	case events.UserInvited:
		return m.handleUserInvited(ctx, e)
	case events.LeadCreated:
		m.broadcast("lead.created", e)
		return nil
	case events.LeadUpdated:
		m.broadcast("lead.updated", e)
		return nil
	case events.LeadConverted:
		m.broadcast("lead.converted", e)
		return nil
	case events.LeadAssigned:
		return m.handleLeadAssigned(ctx, e)
	case events.LeadAbandoned:
		return m.handleLeadAbandoned(ctx, e)
	case events.RequestCreated:
		return m.handleRequestCreated(ctx, e)
	case events.RequestStatusChanged:
		return m.handleRequestStatusChanged(ctx, e)
	case events.RequestAssigned:
		return m.handleRequestAssigned(ctx, e)
	case events.PaymentStatusChanged:
		return m.handlePaymentStatusChanged(ctx, e)
	case events.ContactReceived:
		return m.handleContactReceived(ctx, e)
	case events.TaskAssigned:
		return m.handleTaskAssigned(ctx, e)
	case events.TaskOverdue:
		return m.handleTaskOverdue(ctx, e)
	case events.NotificationOutboxDue:
		return m.Deliver(ctx, e.OutboxID)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) appURL(path string) string {
	return strings.TrimRight(m.cfg.GetAppBaseURL(), "/") + path
}

func (m *Module) publicURL(path string) string {
	return strings.TrimRight(m.cfg.GetPublicSiteURL(), "/") + path
}

func (m *Module) broadcast(msgType string, data any) {
	if m.live != nil {
		m.live.Broadcast(msgType, data)
	}
}

var _ apphttp.Module = (*Module)(nil)
