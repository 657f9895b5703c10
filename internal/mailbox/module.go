// Package mailbox lets staff browse the customer-service mailbox.
package mailbox

import (
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/internal/mailbox/handler"
	"raccordement_backend/internal/mailbox/imapclient"
	"raccordement_backend/internal/mailbox/service"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
}

func NewModule(cfg config.MailboxConfig, val *validator.Validator, log *logger.Logger) *Module {
	var backend service.Backend
	if cfg.IsIMAPEnabled() {
		backend = imapclient.New(imapclient.Config{
			Host:     cfg.GetIMAPHost(),
			Port:     cfg.GetIMAPPort(),
			Username: cfg.GetIMAPUsername(),
			Password: cfg.GetIMAPPassword(),
		})
	} else {
		log.Info("IMAP not configured, mailbox serves demo data")
	}
	return &Module{handler: handler.New(service.New(backend, log), val)}
}

func (m *Module) Name() string { return "mailbox" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Manager.Group("/mailbox"))
}

var _ apphttp.Module = (*Module)(nil)
