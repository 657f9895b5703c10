package inapp

import (
	"context"

	"raccordement_backend/platform/logger"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, p CreateParams) (Notification, error)
	List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]Notification, int, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID, id uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// Pusher delivers a live message to a connected user.
type Pusher interface {
	SendToUser(userID uuid.UUID, msgType string, data any)
}

type Service struct {
	store  Store
	pusher Pusher
	log    *logger.Logger
}

func NewService(store Store, pusher Pusher, log *logger.Logger) *Service {
	return &Service{store: store, pusher: pusher, log: log}
}

type SendParams struct {
	UserID       uuid.UUID
	Kind         string
	Title        string
	Content      string
	ResourceType string
	ResourceID   string
}

// Send persists the notification and pushes it to the user's open sockets.
func (s *Service) Send(ctx context.Context, p SendParams) error {
	params := CreateParams{UserID: p.UserID, Kind: p.Kind, Title: p.Title, Content: p.Content}
	if p.ResourceType != "" {
		params.ResourceType = &p.ResourceType
	}
	if p.ResourceID != "" {
		params.ResourceID = &p.ResourceID
	}

	n, err := s.store.Create(ctx, params)
	if err != nil {
		s.log.Error("failed to persist in-app notification", "error", err, "userId", p.UserID)
		return err
	}
	if s.pusher != nil {
		s.pusher.SendToUser(p.UserID, "notification", n)
	}
	return nil
}

type Page struct {
	Items       []Notification `json:"items"`
	Total       int            `json:"total"`
	Page        int            `json:"page"`
	PageSize    int            `json:"pageSize"`
	TotalPages  int            `json:"totalPages"`
	UnreadCount int            `json:"unreadCount"`
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	items, total, err := s.store.List(ctx, userID, unreadOnly, pageSize, (page-1)*pageSize)
	if err != nil {
		return Page{}, err
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Items:       items,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
		TotalPages:  (total + pageSize - 1) / pageSize,
		UnreadCount: unread,
	}, nil
}

func (s *Service) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.store.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	return s.store.Delete(ctx, userID, id)
}
