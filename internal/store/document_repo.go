package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anthropics/debate-arena/internal/domain"
)

// Document is a pre-extracted text document available for debates.
// Ingestion and text extraction happen upstream; the engine only reads.
type Document struct {
	ID            string
	Title         string
	Content       string
	CreatedAtUnix int64
}

// DocumentRepo handles persistence for Document records.
type DocumentRepo struct{}

// Create inserts a document.
func (r *DocumentRepo) Create(ctx context.Context, db *sql.DB, d Document) error {
	const q = `INSERT INTO documents (document_id, title, content, created_at_unix) VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q, d.ID, d.Title, d.Content, d.CreatedAtUnix)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by ID.
func (r *DocumentRepo) GetByID(ctx context.Context, db *sql.DB, documentID string) (*Document, error) {
	const q = `SELECT document_id, title, content, created_at_unix FROM documents WHERE document_id = ?`

	row := db.QueryRowContext(ctx, q, documentID)

	var d Document
	err := row.Scan(&d.ID, &d.Title, &d.Content, &d.CreatedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrDocumentUnavailable
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &d, nil
}
