package service

import (
	"context"
	"errors"
	"strings"

	"raccordement_backend/internal/adapters/storage"
	"raccordement_backend/internal/leads/repository"
	"raccordement_backend/internal/leads/transport"
	"raccordement_backend/platform/apperr"

	"github.com/google/uuid"
)

func leadFolder(id uuid.UUID) string { return "leads/" + id.String() }

// PresignDocument returns an upload URL for a funnel attachment.
func (s *Service) PresignDocument(ctx context.Context, sessionToken string, req transport.PresignRequest) (transport.PresignResponse, error) {
	l, err := s.store.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		return transport.PresignResponse{}, err
	}
	if err := storage.ValidateContentType(req.ContentType); err != nil {
		return transport.PresignResponse{}, apperr.Validation(err.Error())
	}
	if err := storage.ValidateFileSize(req.SizeBytes, s.docs.MaxFileSize); err != nil {
		return transport.PresignResponse{}, apperr.Validation(err.Error())
	}

	url, err := s.docs.Store.PresignUpload(ctx, s.docs.Bucket, leadFolder(l.ID), req.FileName)
	if err != nil {
		return transport.PresignResponse{}, storageError(err)
	}
	return transport.PresignResponse{UploadURL: url.URL, FileKey: url.FileKey, ExpiresAt: url.ExpiresAt}, nil
}

// AddDocument records an uploaded file once the object is in the bucket.
func (s *Service) AddDocument(ctx context.Context, sessionToken string, req transport.AddDocumentRequest) (transport.DocumentResponse, error) {
	l, err := s.store.GetBySessionToken(ctx, sessionToken)
	if err != nil {
		return transport.DocumentResponse{}, err
	}
	if !strings.HasPrefix(req.FileKey, leadFolder(l.ID)+"/") {
		return transport.DocumentResponse{}, apperr.Forbidden("file does not belong to this request")
	}

	info, err := s.docs.Store.Stat(ctx, s.docs.Bucket, req.FileKey)
	if err != nil {
		return transport.DocumentResponse{}, storageError(err)
	}
	if err := storage.ValidateFileSize(info.Size, s.docs.MaxFileSize); err != nil {
		return transport.DocumentResponse{}, apperr.Validation(err.Error())
	}
	contentType := storage.NormalizeContentType(info.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.NormalizeContentType(req.ContentType)
	}
	if err := storage.ValidateContentType(contentType); err != nil {
		return transport.DocumentResponse{}, apperr.Validation(err.Error())
	}

	doc, err := s.store.CreateDocument(ctx, repository.CreateDocumentParams{
		LeadID:      l.ID,
		Kind:        req.Kind,
		FileKey:     req.FileKey,
		FileName:    req.FileName,
		ContentType: contentType,
		SizeBytes:   info.Size,
	})
	if err != nil {
		return transport.DocumentResponse{}, err
	}
	s.record(ctx, nil, "lead.document_added", l.ID, map[string]any{"kind": req.Kind})
	return documentResponse(doc), nil
}

// ListDocuments is the staff view, with short-lived download links.
func (s *Service) ListDocuments(ctx context.Context, id uuid.UUID) ([]transport.DocumentResponse, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]transport.DocumentResponse, 0, len(docs))
	for _, d := range docs {
		resp := documentResponse(d)
		url, err := s.docs.Store.PresignDownload(ctx, s.docs.Bucket, d.FileKey, d.FileName)
		if err != nil {
			s.log.Warn("presign lead document failed", "leadId", id, "documentId", d.ID, "error", err)
		} else {
			expires := url.ExpiresAt
			resp.DownloadURL = url.URL
			resp.ExpiresAt = &expires
		}
		out = append(out, resp)
	}
	return out, nil
}

func documentResponse(d repository.Document) transport.DocumentResponse {
	return transport.DocumentResponse{
		ID:          d.ID,
		Kind:        d.Kind,
		FileName:    d.FileName,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		CreatedAt:   d.CreatedAt,
	}
}

func storageError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("uploaded file not found")
	}
	if errors.Is(err, storage.ErrDisabled) {
		return apperr.Unavailable("document uploads are not available", err)
	}
	return apperr.Unavailable("document storage is unreachable", err)
}
