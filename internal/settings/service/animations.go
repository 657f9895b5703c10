package service

import (
	"context"
	"encoding/json"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/settings/repository"
	"raccordement_backend/internal/settings/transport"
	"raccordement_backend/platform/apperr"

	"github.com/google/uuid"
)

func toAnimationResponse(a repository.Animation) transport.AnimationResponse {
	return transport.AnimationResponse{
		ID:        a.ID,
		Key:       a.Key,
		Name:      a.Name,
		Type:      a.Type,
		Config:    a.Config,
		IsActive:  a.IsActive,
		SortOrder: a.SortOrder,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// animationConfig accepts only a JSON object; nil means unchanged.
func animationConfig(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, apperr.Validation("config must be a JSON object")
	}
	return raw, nil
}

func (s *Service) ListAnimations(ctx context.Context) ([]transport.AnimationResponse, error) {
	items, err := s.store.ListAnimations(ctx, false)
	if err != nil {
		return nil, err
	}
	out := make([]transport.AnimationResponse, 0, len(items))
	for _, a := range items {
		out = append(out, toAnimationResponse(a))
	}
	return out, nil
}

// PublicAnimations lists active animations for the public site.
func (s *Service) PublicAnimations(ctx context.Context) ([]transport.PublicAnimationResponse, error) {
	items, err := s.store.ListAnimations(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]transport.PublicAnimationResponse, 0, len(items))
	for _, a := range items {
		out = append(out, transport.PublicAnimationResponse{Key: a.Key, Type: a.Type, Config: a.Config})
	}
	return out, nil
}

func (s *Service) GetAnimation(ctx context.Context, id uuid.UUID) (transport.AnimationResponse, error) {
	a, err := s.store.GetAnimation(ctx, id)
	if err != nil {
		return transport.AnimationResponse{}, err
	}
	return toAnimationResponse(a), nil
}

func (s *Service) CreateAnimation(ctx context.Context, req transport.CreateAnimationRequest) (transport.AnimationResponse, error) {
	cfg, err := animationConfig(req.Config)
	if err != nil {
		return transport.AnimationResponse{}, err
	}
	a, err := s.store.CreateAnimation(ctx, repository.AnimationParams{
		Key:       &req.Key,
		Name:      &req.Name,
		Type:      &req.Type,
		Config:    cfg,
		IsActive:  req.IsActive,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return transport.AnimationResponse{}, err
	}
	s.record(ctx, "animation.created", audit.EntityAnimation, a.ID.String(), map[string]any{"key": a.Key})
	return toAnimationResponse(a), nil
}

func (s *Service) UpdateAnimation(ctx context.Context, id uuid.UUID, req transport.UpdateAnimationRequest) (transport.AnimationResponse, error) {
	cfg, err := animationConfig(req.Config)
	if err != nil {
		return transport.AnimationResponse{}, err
	}
	a, err := s.store.UpdateAnimation(ctx, id, repository.AnimationParams{
		Name:      req.Name,
		Type:      req.Type,
		Config:    cfg,
		IsActive:  req.IsActive,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return transport.AnimationResponse{}, err
	}
	s.record(ctx, "animation.updated", audit.EntityAnimation, id.String(), nil)
	return toAnimationResponse(a), nil
}

func (s *Service) DeleteAnimation(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteAnimation(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "animation.deleted", audit.EntityAnimation, id.String(), nil)
	return nil
}
