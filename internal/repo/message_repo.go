// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
//
// Messages are always read in ascending sequence order; sequence is the only
// ordering key of a transcript.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
)

// CreateMessage inserts a new message row at the given sequence. A sequence
// already used in the conversation is rejected by the unique index.
func CreateMessage(ctx context.Context, db *gorm.DB, conversationID, role, content string, sequence int) (*domain.Message, error) {
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Sequence:       sequence,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns every message of a conversation in sequence order.
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sequence ASC").
		Find(&out).Error
	return out, err
}

// ListMessagesBefore returns the messages whose sequence is lower than
// sequence, in sequence order.
func ListMessagesBefore(ctx context.Context, db *gorm.DB, conversationID string, sequence int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND sequence < ?", conversationID, sequence).
		Order("sequence ASC").
		Find(&out).Error
	return out, err
}

// MaxSequence returns the highest sequence in the conversation, or 0 when it
// has no messages.
func MaxSequence(ctx context.Context, db *gorm.DB, conversationID string) (int, error) {
	var seq int
	err := db.WithContext(ctx).
		Raw("SELECT COALESCE(MAX(sequence), 0) FROM messages WHERE conversation_id = ?", conversationID).
		Row().
		Scan(&seq)
	return seq, err
}

// DeleteMessagesUpTo removes every message with sequence <= cutoff and
// reports how many rows were deleted.
func DeleteMessagesUpTo(ctx context.Context, db *gorm.DB, conversationID string, cutoff int) (int64, error) {
	res := db.WithContext(ctx).
		Where("conversation_id = ? AND sequence <= ?", conversationID, cutoff).
		Delete(&domain.Message{})
	return res.RowsAffected, res.Error
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice in sequence order.
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("sequence ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
