// Package service validates identifiers and caches registry lookups.
package service

import (
	"context"
	"strings"
	"time"

	"raccordement_backend/internal/company/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/validator"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	cacheTTL  = 24 * time.Hour
	cacheSize = 4096
)

// Registry is the upstream company directory.
type Registry interface {
	Lookup(ctx context.Context, identifier string) (*transport.Company, error)
}

type cacheEntry struct {
	company   *transport.Company
	expiresAt time.Time
}

type Service struct {
	registry Registry
	log      *logger.Logger
	now      func() time.Time
	cache    *lru.Cache[string, cacheEntry]
}

func New(registry Registry, log *logger.Logger) *Service {
	return newService(registry, log, cacheSize)
}

func newService(registry Registry, log *logger.Logger, size int) *Service {
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		panic("company cache: " + err.Error())
	}
	return &Service{
		registry: registry,
		log:      log,
		now:      time.Now,
		cache:    cache,
	}
}

// Normalize strips spaces and dots users type in SIRET numbers.
func Normalize(identifier string) string {
	return strings.NewReplacer(" ", "", ".", "", "-", "").Replace(strings.TrimSpace(identifier))
}

// Lookup resolves a SIREN (9 digits) or SIRET (14 digits). Identifiers
// failing the checksum never reach the registry.
func (s *Service) Lookup(ctx context.Context, raw string) (*transport.Company, error) {
	identifier := Normalize(raw)
	switch len(identifier) {
	case 9:
		if !validator.ValidSIREN(identifier) {
			return nil, apperr.Validation("invalid SIREN")
		}
	case 14:
		if !validator.ValidSIRET(identifier) {
			return nil, apperr.Validation("invalid SIRET")
		}
	default:
		return nil, apperr.Validation("identifier must be a SIREN (9 digits) or a SIRET (14 digits)")
	}

	if company, ok := s.fromCache(identifier); ok {
		if company == nil {
			return nil, apperr.NotFound("company not found")
		}
		return company, nil
	}

	company, err := s.registry.Lookup(ctx, identifier)
	if err != nil {
		return nil, apperr.Unavailable("company registry unavailable", err)
	}
	s.store(identifier, company)
	if company == nil {
		return nil, apperr.NotFound("company not found")
	}
	s.log.Debug("company resolved", "identifier", identifier, "active", company.Active)
	return company, nil
}

// fromCache drops the entry once it has expired. Least recently used
// entries are evicted when the cache is full.
func (s *Service) fromCache(key string) (*transport.Company, bool) {
	entry, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	if s.now().After(entry.expiresAt) {
		s.cache.Remove(key)
		return nil, false
	}
	return entry.company, true
}

func (s *Service) store(key string, company *transport.Company) {
	s.cache.Add(key, cacheEntry{company: company, expiresAt: s.now().Add(cacheTTL)})
}
