package service

import (
	"context"
	"encoding/json"
	"time"

	"raccordement_backend/internal/activity/audit"
	"raccordement_backend/internal/activity/repository"
	"raccordement_backend/internal/activity/transport"
	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
)

// Store is the persistence the service needs.
type Store interface {
	Insert(ctx context.Context, p repository.InsertParams) error
	List(ctx context.Context, p repository.ListParams) ([]repository.Log, int, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Service struct {
	store Store
	log   *logger.Logger
}

func New(store Store, log *logger.Logger) *Service {
	return &Service{store: store, log: log}
}

// Record writes entry. The actor and IP default to the request's when unset.
// Failures are logged and swallowed.
func (s *Service) Record(ctx context.Context, entry audit.Entry) {
	if entry.ActorID == nil {
		if actor, ok := httpkit.ActorFromContext(ctx); ok {
			entry.ActorID = &actor
		}
	}
	if entry.IPAddress == "" {
		entry.IPAddress = httpkit.ClientIPFromContext(ctx)
	}

	var details []byte
	if len(entry.Details) > 0 {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			s.log.Warn("activity details not serialisable", "action", entry.Action, "error", err)
		} else {
			details = b
		}
	}

	var ip *string
	if entry.IPAddress != "" {
		ip = &entry.IPAddress
	}

	err := s.store.Insert(ctx, repository.InsertParams{
		ActorID:    entry.ActorID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    details,
		IPAddress:  ip,
	})
	if err != nil {
		s.log.WithContext(ctx).Error("failed to record activity", "action", entry.Action, "entityType", entry.EntityType, "entityId", entry.EntityID, "error", err)
	}
}

func (s *Service) List(ctx context.Context, req transport.ListRequest) (transport.ListResponse, error) {
	page, pageSize := req.Page, req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	items, total, err := s.store.List(ctx, repository.ListParams{
		EntityType: nonEmpty(req.EntityType),
		EntityID:   nonEmpty(req.EntityID),
		ActorID:    req.ActorID,
		Action:     nonEmpty(req.Action),
		From:       req.DateFrom,
		To:         req.DateTo,
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
	})
	if err != nil {
		return transport.ListResponse{}, err
	}

	resp := transport.ListResponse{
		Items:      make([]transport.LogResponse, 0, len(items)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	for _, l := range items {
		resp.Items = append(resp.Items, transport.LogResponse{
			ID:         l.ID,
			ActorID:    l.ActorID,
			ActorEmail: l.ActorEmail,
			Action:     l.Action,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			Details:    l.Details,
			IPAddress:  l.IPAddress,
			CreatedAt:  l.CreatedAt,
		})
	}
	return resp, nil
}

// Purge removes entries older than retention.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	deleted, err := s.store.PurgeBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("activity logs purged", "deleted", deleted, "retention", retention.String())
	}
	return deleted, nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ audit.Recorder = (*Service)(nil)
