// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ConversationDocument association.
//
// Linked documents are always enumerated in document creation order (then
// id), which gives retrieval a stable order.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
)

// LinkDocument associates a document with a conversation. It returns
// ErrDuplicate if the pair is already linked.
func LinkDocument(ctx context.Context, db *gorm.DB, conversationID, documentID string) (*domain.ConversationDocument, error) {
	l := &domain.ConversationDocument{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		DocumentID:     documentID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return l, nil
}

// UnlinkDocument removes the association. It returns ErrNotFound when the
// pair was not linked.
func UnlinkDocument(ctx context.Context, db *gorm.DB, conversationID, documentID string) error {
	res := db.WithContext(ctx).
		Where("conversation_id = ? AND document_id = ?", conversationID, documentID).
		Delete(&domain.ConversationDocument{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListLinkedDocumentIDs returns the IDs of documents linked to the
// conversation.
func ListLinkedDocumentIDs(ctx context.Context, db *gorm.DB, conversationID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Table("conversation_documents AS cd").
		Joins("JOIN documents AS d ON d.id = cd.document_id").
		Where("cd.conversation_id = ?", conversationID).
		Order("d.created_at ASC, d.id ASC").
		Pluck("d.id", &ids).Error
	return ids, err
}

// ListLinkedDocuments returns the documents linked to the conversation.
func ListLinkedDocuments(ctx context.Context, db *gorm.DB, conversationID string) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Joins("JOIN conversation_documents AS cd ON cd.document_id = documents.id").
		Where("cd.conversation_id = ?", conversationID).
		Order("documents.created_at ASC, documents.id ASC").
		Find(&out).Error
	return out, err
}
