// Package docstore serves budget-capped document excerpts for prompts.
// Document ingestion, extraction, and chunking happen upstream; this store
// only reads pre-extracted text.
package docstore

import (
	"context"
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/anthropics/debate-arena/internal/domain"
	"github.com/anthropics/debate-arena/internal/prompt"
	"github.com/anthropics/debate-arena/internal/store"
)

// Store reads documents and produces excerpts that fit a token budget.
type Store struct {
	DB   *sql.DB
	Repo *store.DocumentRepo
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db, Repo: &store.DocumentRepo{}}
}

// Put registers a pre-extracted document and returns its generated ID.
func (s *Store) Put(ctx context.Context, title, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", domain.NewArenaError(domain.ErrDocumentUnavailable.Code, "document content is empty")
	}
	doc := store.Document{
		ID:            uuid.NewString(),
		Title:         title,
		Content:       content,
		CreatedAtUnix: time.Now().Unix(),
	}
	if err := s.Repo.Create(ctx, s.DB, doc); err != nil {
		return "", err
	}
	return doc.ID, nil
}

// Exists reports whether a document is available for debates.
func (s *Store) Exists(ctx context.Context, documentID string) error {
	_, err := s.Repo.GetByID(ctx, s.DB, documentID)
	return err
}

// GetExcerpt returns an excerpt of the document that fits the given token
// budget. Truncation happens on a rune boundary so the prompt never carries
// a torn UTF-8 sequence.
func (s *Store) GetExcerpt(ctx context.Context, documentID string, tokenBudget int) (string, error) {
	doc, err := s.Repo.GetByID(ctx, s.DB, documentID)
	if err != nil {
		return "", err
	}

	content := doc.Content
	if prompt.EstimateTokens(content) <= tokenBudget {
		return content, nil
	}

	limit := tokenBudget * prompt.BytesPerToken
	if limit < 0 {
		limit = 0
	}
	for limit > 0 && !utf8.RuneStart(content[limit]) {
		limit--
	}
	return content[:limit], nil
}
