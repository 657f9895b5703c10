package service

import (
	"context"
	"encoding/json"
	"strings"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/settings/transport"
	"raccordement_backend/platform/apperr"

	"github.com/google/uuid"
)

func (s *Service) ListConfigs(ctx context.Context) ([]transport.ConfigResponse, error) {
	configs, err := s.store.ListConfigs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]transport.ConfigResponse, 0, len(configs))
	for _, c := range configs {
		out = append(out, transport.ConfigResponse{
			Key:         c.Key,
			Value:       c.Value,
			Description: c.Description,
			UpdatedBy:   c.UpdatedBy,
			UpdatedAt:   c.UpdatedAt,
		})
	}
	return out, nil
}

// SetConfig validates known keys before storing them.
func (s *Service) SetConfig(ctx context.Context, actorID uuid.UUID, key string, req transport.SetConfigRequest) (transport.ConfigResponse, error) {
	if !configKeyPattern.MatchString(key) {
		return transport.ConfigResponse{}, apperr.Validation("invalid config key")
	}
	if !json.Valid(req.Value) {
		return transport.ConfigResponse{}, apperr.Validation("value must be valid JSON")
	}
	value, err := s.normalizeConfigValue(key, req.Value)
	if err != nil {
		return transport.ConfigResponse{}, err
	}

	c, err := s.store.UpsertConfig(ctx, key, value, req.Description, &actorID)
	if err != nil {
		return transport.ConfigResponse{}, err
	}

	s.mu.Lock()
	delete(s.cache, key)
	s.mu.Unlock()

	s.record(ctx, "config.updated", audit.EntityConfig, key, map[string]any{"value": json.RawMessage(value)})
	return transport.ConfigResponse{Key: c.Key, Value: c.Value, Description: c.Description, UpdatedBy: c.UpdatedBy, UpdatedAt: c.UpdatedAt}, nil
}

func (s *Service) normalizeConfigValue(key string, raw json.RawMessage) ([]byte, error) {
	switch key {
	case KeyServicePriceCents:
		var cents int64
		if err := json.Unmarshal(raw, &cents); err != nil || cents < 100 || cents > 1_000_000 {
			return nil, apperr.Validation("service_price_cents must be an integer between 100 and 1000000")
		}
		return json.Marshal(cents)
	case KeyNotificationEmails:
		var emails []string
		if err := json.Unmarshal(raw, &emails); err != nil {
			return nil, apperr.Validation("notification_emails must be a list of addresses")
		}
		clean := make([]string, 0, len(emails))
		for _, e := range emails {
			e = strings.ToLower(strings.TrimSpace(e))
			if e == "" {
				continue
			}
			if err := s.val.Var(e, "email"); err != nil {
				return nil, apperr.Validation("invalid address: " + e)
			}
			clean = append(clean, e)
		}
		return json.Marshal(clean)
	case KeyCompanyName:
		var name string
		if err := json.Unmarshal(raw, &name); err != nil || strings.TrimSpace(name) == "" || len(name) > 120 {
			return nil, apperr.Validation("company_name must be a non-empty string")
		}
		return json.Marshal(strings.TrimSpace(name))
	}
	return raw, nil
}

// configValue reads key through a short-lived cache. Missing keys and
// storage errors yield nil so callers fall back to their default.
func (s *Service) configValue(ctx context.Context, key string) json.RawMessage {
	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Sub(cached.fetched) < configCacheTTL {
		return cached.value
	}

	c, err := s.store.GetConfig(ctx, key)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			s.log.Warn("config read failed, using default", "key", key, "error", err)
			return nil
		}
	}

	s.mu.Lock()
	s.cache[key] = cachedConfig{value: c.Value, fetched: s.now()}
	s.mu.Unlock()
	return c.Value
}

// ServicePriceCents is the price charged for a connection request.
func (s *Service) ServicePriceCents(ctx context.Context) int64 {
	var cents int64
	if raw := s.configValue(ctx, KeyServicePriceCents); raw != nil && json.Unmarshal(raw, &cents) == nil && cents > 0 {
		return cents
	}
	return DefaultServicePriceCents
}

// NotificationEmails lists the internal alert recipients.
func (s *Service) NotificationEmails(ctx context.Context) []string {
	var emails []string
	if raw := s.configValue(ctx, KeyNotificationEmails); raw != nil {
		_ = json.Unmarshal(raw, &emails)
	}
	return emails
}

// CompanyName is the brand shown in emails and receipts.
func (s *Service) CompanyName(ctx context.Context) string {
	var name string
	if raw := s.configValue(ctx, KeyCompanyName); raw != nil && json.Unmarshal(raw, &name) == nil && name != "" {
		return name
	}
	return defaultCompanyName
}
