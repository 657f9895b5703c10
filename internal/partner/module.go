package partner

import (
	apphttp "raccordement_backend/internal/http"
	"raccordement_backend/platform/config"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type Deps struct {
	Pool      *pgxpool.Pool
	Redis     *redis.Client
	Leads     Leads
	Requests  Requests
	Payments  Payments
	Config    config.PartnerConfig
	Validator *validator.Validator
	Logger    *logger.Logger
}

type Module struct {
	handler *Handler
	keys    KeyStore
	limiter *httpkit.KeyedRateLimiter
	quota   Quota
	log     *logger.Logger
}

func NewModule(d Deps) *Module {
	repo := NewRepository(d.Pool)
	var quota Quota
	if d.Redis != nil && d.Config.GetPartnerDailyQuota() > 0 {
		quota = NewRedisQuota(d.Redis, d.Config.GetPartnerDailyQuota())
	}
	return &Module{
		handler: NewHandler(repo, NewService(d.Leads, d.Requests, d.Payments, d.Logger), d.Validator, d.Logger),
		keys:    repo,
		limiter: httpkit.NewKeyedRateLimiter(rate.Limit(d.Config.GetPartnerRatePerSecond()), d.Config.GetPartnerBurst(), d.Logger),
		quota:   quota,
		log:     d.Logger,
	}
}

func (m *Module) Name() string {
	return "partner"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	api := ctx.Partner
	api.Use(APIKeyAuthMiddleware(m.keys), m.limiter.RateLimitBy(rateLimitKey), QuotaMiddleware(m.quota, m.log))
	api.POST("/leads", m.handler.SubmitLead)
	api.POST("/requests", m.handler.SubmitRequest)
	api.GET("/requests/:reference", m.handler.GetRequest)
	api.POST("/requests/:reference/payment-link", m.handler.PaymentLink)

	admin := ctx.Admin.Group("/partner-keys")
	admin.GET("", m.handler.HandleListAPIKeys)
	admin.POST("", m.handler.HandleCreateAPIKey)
	admin.DELETE("/:id", m.handler.HandleRevokeAPIKey)
}

var _ apphttp.Module = (*Module)(nil)
