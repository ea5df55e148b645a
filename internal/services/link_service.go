// Package services – LinkService
//
// This file implements LinkService, which governs which documents a
// conversation may retrieve context from. It enforces that both sides exist
// and that a pair is linked at most once; service-level errors
// (ErrConversationNotFound, ErrDocumentNotFound, ErrAlreadyLinked,
// ErrNotLinked) are returned for predictable cases so handlers can map them
// to HTTP results consistently.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
)

// LinkService implements the conversation/document association use-cases.
type LinkService struct {
	DB *gorm.DB
}

// Link associates documentID with conversationID.
//
// Semantics and validation:
//   - The conversation must exist; otherwise ErrConversationNotFound.
//   - The document must exist; otherwise ErrDocumentNotFound.
//   - A pair may be linked once; a second attempt yields ErrAlreadyLinked.
//
// The checks and the insert run in one transaction.
func (s *LinkService) Link(ctx context.Context, conversationID, documentID string) (*domain.ConversationDocument, error) {
	var out *domain.ConversationDocument
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if ok, err := repo.ConversationExists(ctx, tx, conversationID); err != nil {
			return err
		} else if !ok {
			return ErrConversationNotFound
		}
		if _, err := repo.GetDocument(ctx, tx, documentID); err != nil {
			if isNotFound(err) {
				return ErrDocumentNotFound
			}
			return err
		}
		l, err := repo.LinkDocument(ctx, tx, conversationID, documentID)
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return ErrAlreadyLinked
			}
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Unlink removes the association. It returns ErrNotLinked when the pair was
// not linked.
func (s *LinkService) Unlink(ctx context.Context, conversationID, documentID string) error {
	if err := repo.UnlinkDocument(ctx, s.DB, conversationID, documentID); err != nil {
		if isNotFound(err) {
			return ErrNotLinked
		}
		return err
	}
	return nil
}

// List returns the documents linked to the conversation, in the order
// retrieval visits them.
func (s *LinkService) List(ctx context.Context, conversationID string) ([]domain.Document, error) {
	ok, err := repo.ConversationExists(ctx, s.DB, conversationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConversationNotFound
	}
	docs, err := repo.ListLinkedDocuments(ctx, s.DB, conversationID)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}
