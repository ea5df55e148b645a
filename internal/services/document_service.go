// Package services – DocumentService
//
// This file implements DocumentService, which manages uploaded documents and
// their chunks. Uploading or updating a document (re)chunks its content into
// fixed-size slices, each stored with a placeholder embedding. The document
// row and its chunks are always written in one transaction.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
	"github.com/tbourn/go-rag-chat-backend/internal/search"
	"github.com/tbourn/go-rag-chat-backend/internal/utils"
)

// DocumentService implements the document use-cases.
type DocumentService struct {
	DB *gorm.DB
	// ChunkSize is the chunk length in characters. Zero means
	// search.DefaultChunkSize.
	ChunkSize int
}

func validateDocument(name, content string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrMissingName
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyDocument
	}
	return name, nil
}

// buildChunks slices content and attaches a placeholder embedding to each
// chunk. Indices are assigned by the repository on insert.
func (s *DocumentService) buildChunks(content string) []domain.DocumentChunk {
	var out []domain.DocumentChunk
	for text := range search.Chunks(content, s.ChunkSize) {
		out = append(out, domain.DocumentChunk{
			ChunkText: text,
			Embedding: domain.Embedding(search.PlaceholderEmbedding(text)),
		})
	}
	return out
}

// Upload stores a new document and its chunks. It returns the document and
// how many chunks were written.
func (s *DocumentService) Upload(ctx context.Context, name, content string) (*domain.Document, int, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Upload", trace.WithAttributes(attribute.Int("document.bytes", len(content))))
	defer span.End()

	name, err := validateDocument(name, content)
	if err != nil {
		return nil, 0, err
	}

	chunks := s.buildChunks(content)
	var doc *domain.Document
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := repo.CreateDocument(ctx, tx, name, content)
		if err != nil {
			return err
		}
		doc = d
		return repo.ReplaceChunks(ctx, tx, d.ID, chunks)
	})
	if err != nil {
		return nil, 0, err
	}
	span.SetAttributes(attribute.String("document.id", doc.ID), attribute.Int("document.chunks", len(chunks)))
	return doc, len(chunks), nil
}

// Update replaces name and content of a document and re-chunks it. Old
// chunks are removed in the same transaction.
func (s *DocumentService) Update(ctx context.Context, id, name, content string) (*domain.Document, int, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Update", trace.WithAttributes(attribute.String("document.id", id)))
	defer span.End()

	name, err := validateDocument(name, content)
	if err != nil {
		return nil, 0, err
	}

	chunks := s.buildChunks(content)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.UpdateDocument(ctx, tx, id, name, content); err != nil {
			return err
		}
		return repo.ReplaceChunks(ctx, tx, id, chunks)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, ErrDocumentNotFound
		}
		return nil, 0, err
	}

	doc, err := repo.GetDocument(ctx, s.DB, id)
	if err != nil {
		return nil, 0, err
	}
	return doc, len(chunks), nil
}

// Get returns a document with its chunks in chunk_index order.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, []domain.DocumentChunk, error) {
	doc, err := repo.GetDocument(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrDocumentNotFound
		}
		return nil, nil, err
	}
	chunks, err := repo.ListChunks(ctx, s.DB, id)
	if err != nil {
		return nil, nil, err
	}
	return doc, chunks, nil
}

// ListPage returns a page of documents (most recent first) and the total.
func (s *DocumentService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Document, int64, error) {
	page, pageSize = utils.NormalizePage(page, pageSize)
	total, err := repo.CountDocuments(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Document{}, 0, nil
	}
	items, err := repo.ListDocumentsPage(ctx, s.DB, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// Delete removes a document with its chunks and conversation links.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	if err := repo.DeleteDocument(ctx, s.DB, id); err != nil {
		if isNotFound(err) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}
