// Package service serves the mailbox browser, falling back to a demo
// mailbox when IMAP is unavailable.
package service

import (
	"context"
	"errors"
	"strings"

	"raccordement_backend/internal/mailbox/imapclient"
	"raccordement_backend/internal/mailbox/transport"
	"raccordement_backend/platform/apperr"
	"raccordement_backend/platform/logger"
)

const (
	defaultFolder = "INBOX"
	defaultLimit  = 50
	maxLimit      = 200
)

// Backend reads a real mailbox.
type Backend interface {
	Folders(ctx context.Context) ([]transport.Folder, error)
	Messages(ctx context.Context, folder string, limit int) ([]transport.MessageSummary, error)
	Message(ctx context.Context, folder string, uid int) (transport.Message, error)
}

type Service struct {
	backend Backend
	log     *logger.Logger
}

// New accepts a nil backend, in which case every call is simulated.
func New(backend Backend, log *logger.Logger) *Service {
	return &Service{backend: backend, log: log}
}

func (s *Service) Folders(ctx context.Context) transport.FoldersResponse {
	if s.backend != nil {
		folders, err := s.backend.Folders(ctx)
		if err == nil {
			return transport.FoldersResponse{Folders: folders}
		}
		s.log.Warn("imap folders failed, serving demo mailbox", "error", err)
	}
	return transport.FoldersResponse{Folders: simulatedFolders, Simulated: true}
}

func (s *Service) Messages(ctx context.Context, req transport.ListRequest) transport.MessagesResponse {
	folder := normalizeFolder(req.Folder)
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if s.backend != nil {
		msgs, err := s.backend.Messages(ctx, folder, limit)
		if err == nil {
			if msgs == nil {
				msgs = []transport.MessageSummary{}
			}
			return transport.MessagesResponse{Folder: folder, Messages: msgs}
		}
		s.log.Warn("imap messages failed, serving demo mailbox", "folder", folder, "error", err)
	}

	demo := simulatedMessages(folder)
	out := make([]transport.MessageSummary, 0, len(demo))
	for _, m := range demo {
		if len(out) == limit {
			break
		}
		out = append(out, m.MessageSummary)
	}
	return transport.MessagesResponse{Folder: folder, Messages: out, Simulated: true}
}

// Message returns a NotFound error when the uid does not exist, in either
// the real or the demo mailbox.
func (s *Service) Message(ctx context.Context, folder string, uid int) (transport.MessageResponse, error) {
	folder = normalizeFolder(folder)
	if uid <= 0 {
		return transport.MessageResponse{}, apperr.Validation("invalid message uid")
	}

	if s.backend != nil {
		msg, err := s.backend.Message(ctx, folder, uid)
		switch {
		case err == nil:
			return transport.MessageResponse{Folder: folder, Message: msg}, nil
		case errors.Is(err, imapclient.ErrNotFound):
			return transport.MessageResponse{}, apperr.NotFound("message not found")
		}
		s.log.Warn("imap message failed, serving demo mailbox", "folder", folder, "uid", uid, "error", err)
	}

	for _, m := range simulatedMessages(folder) {
		if m.UID == uid {
			return transport.MessageResponse{Folder: folder, Message: m, Simulated: true}, nil
		}
	}
	return transport.MessageResponse{}, apperr.NotFound("message not found")
}

func normalizeFolder(folder string) string {
	folder = strings.TrimSpace(folder)
	if folder == "" || strings.EqualFold(folder, defaultFolder) {
		return defaultFolder
	}
	return folder
}
