package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID          uuid.UUID
	LeadID      uuid.UUID
	Kind        string
	FileKey     string
	FileName    string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}

type CreateDocumentParams struct {
	LeadID      uuid.UUID
	Kind        string
	FileKey     string
	FileName    string
	ContentType string
	SizeBytes   int64
}

func (r *Repository) CreateDocument(ctx context.Context, p CreateDocumentParams) (Document, error) {
	var d Document
	err := r.pool.QueryRow(ctx, `
		INSERT INTO rac_lead_documents (lead_id, kind, file_key, file_name, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, lead_id, kind, file_key, file_name, content_type, size_bytes, created_at`,
		p.LeadID, p.Kind, p.FileKey, p.FileName, p.ContentType, p.SizeBytes,
	).Scan(&d.ID, &d.LeadID, &d.Kind, &d.FileKey, &d.FileName, &d.ContentType, &d.SizeBytes, &d.CreatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("create lead document: %w", err)
	}
	return d, nil
}

func (r *Repository) ListDocuments(ctx context.Context, leadID uuid.UUID) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, kind, file_key, file_name, content_type, size_bytes, created_at
		FROM rac_lead_documents WHERE lead_id = $1 ORDER BY created_at`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list lead documents: %w", err)
	}
	defer rows.Close()

	docs := make([]Document, 0)
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.LeadID, &d.Kind, &d.FileKey, &d.FileName, &d.ContentType, &d.SizeBytes, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
