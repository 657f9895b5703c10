package service

import (
	"context"
	"encoding/json"
	"regexp"
	"sync"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/email"
	"raccordement_backend/internal/settings/repository"
	"raccordement_backend/internal/settings/seed"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	"github.com/google/uuid"
)

// Known configuration keys.
const (
	KeyServicePriceCents  = "service_price_cents"
	KeyNotificationEmails = "notification_emails"
	KeyCompanyName        = "company_name"

	DefaultServicePriceCents int64 = 12900
	defaultCompanyName             = "Raccordement Électrique"

	configCacheTTL = 30 * time.Second
)

var configKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// Store is the persistence the settings service needs.
type Store interface {
	ListConfigs(ctx context.Context) ([]repository.Config, error)
	GetConfig(ctx context.Context, key string) (repository.Config, error)
	UpsertConfig(ctx context.Context, key string, value []byte, description *string, updatedBy *uuid.UUID) (repository.Config, error)

	ListTemplates(ctx context.Context) ([]repository.EmailTemplate, error)
	GetTemplate(ctx context.Context, id uuid.UUID) (repository.EmailTemplate, error)
	GetTemplateByKey(ctx context.Context, key string) (repository.EmailTemplate, error)
	CreateTemplate(ctx context.Context, p repository.TemplateParams) (repository.EmailTemplate, error)
	UpdateTemplate(ctx context.Context, id uuid.UUID, p repository.TemplateParams) (repository.EmailTemplate, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	InsertTemplateIfMissing(ctx context.Context, key, name, subject, htmlBody string, variables []string) (bool, error)

	ListAnimations(ctx context.Context, activeOnly bool) ([]repository.Animation, error)
	GetAnimation(ctx context.Context, id uuid.UUID) (repository.Animation, error)
	CreateAnimation(ctx context.Context, p repository.AnimationParams) (repository.Animation, error)
	UpdateAnimation(ctx context.Context, id uuid.UUID, p repository.AnimationParams) (repository.Animation, error)
	DeleteAnimation(ctx context.Context, id uuid.UUID) error
	InsertAnimationIfMissing(ctx context.Context, key, name, kind string, config []byte, sortOrder int) (bool, error)
}

// UserEmails resolves the address used for template test sends.
type UserEmails interface {
	EmailOf(ctx context.Context, id uuid.UUID) (string, error)
}

type cachedConfig struct {
	value   json.RawMessage
	fetched time.Time
}

type Service struct {
	store     Store
	defaults  seed.Defaults
	transport email.Transport
	users     UserEmails
	audit     audit.Recorder
	val       *validator.Validator
	log       *logger.Logger

	mu    sync.RWMutex
	cache map[string]cachedConfig
	now   func() time.Time
}

func New(store Store, defaults seed.Defaults, transport email.Transport, users UserEmails, recorder audit.Recorder, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{
		store:     store,
		defaults:  defaults,
		transport: transport,
		users:     users,
		audit:     recorder,
		val:       val,
		log:       log,
		cache:     map[string]cachedConfig{},
		now:       time.Now,
	}
}

// Seed inserts the default templates and animations that do not exist yet.
func (s *Service) Seed(ctx context.Context) error {
	for _, t := range s.defaults.EmailTemplates {
		inserted, err := s.store.InsertTemplateIfMissing(ctx, t.Key, t.Name, t.Subject, t.HTMLBody, email.Variables(t.Subject, t.HTMLBody))
		if err != nil {
			return err
		}
		if inserted {
			s.log.Info("email template seeded", "key", t.Key)
		}
	}
	for _, a := range s.defaults.Animations {
		cfg, err := json.Marshal(a.Config)
		if err != nil {
			return err
		}
		if _, err := s.store.InsertAnimationIfMissing(ctx, a.Key, a.Name, a.Type, cfg, a.SortOrder); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, action, entityType, entityID string, details map[string]any) {
	s.audit.Record(ctx, audit.Entry{Action: action, EntityType: entityType, EntityID: entityID, Details: details})
}
