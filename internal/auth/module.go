// Package auth provides staff authentication: sign-in, token refresh,
// password reset and the signed-in user's own profile.
package auth

import (
	"raccordement_backend/internal/auth/handler"
	"raccordement_backend/internal/auth/password"
	"raccordement_backend/internal/auth/repository"
	"raccordement_backend/internal/auth/service"
	"raccordement_backend/internal/events"
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is what the auth module reads from the application config.
type Config interface {
	config.AuthServiceConfig
	config.CookieConfig
}

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(pool *pgxpool.Pool, cfg Config, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	_ = val.RegisterValidation("strongpassword", password.ValidateStrong)

	repo := repository.New(pool)
	svc := service.New(repo, cfg, eventBus, log)
	return &Module{
		handler: handler.New(svc, cfg, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "auth"
}

// Service is exposed for the users module, which issues invitation tokens.
func (m *Module) Service() *service.Service {
	return m.service
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterRoutes(authGroup)

	ctx.Protected.GET("/users/me", m.handler.GetMe)
	ctx.Protected.PATCH("/users/me", m.handler.UpdateMe)
	ctx.Protected.POST("/users/me/password", m.handler.ChangePassword)
}

var _ apphttp.Module = (*Module)(nil)
