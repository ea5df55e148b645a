// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
)

// ConversationsStats returns the total number of conversations and the most
// recent CreatedAt among them. When there are none, count is 0 and latest is
// nil.
func ConversationsStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	return latestStats(db.WithContext(ctx).Model(&domain.Conversation{}))
}

// MessagesStats returns the number of messages in a conversation and the most
// recent CreatedAt among them. A summarization rewrites history and inserts a
// fresh summary row, so either value changes whenever the transcript does.
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID string) (count int64, latest *time.Time, err error) {
	return latestStats(db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID))
}

// DocumentsStats returns the number of documents and the most recent
// CreatedAt among them.
func DocumentsStats(ctx context.Context, db *gorm.DB) (count int64, latest *time.Time, err error) {
	return latestStats(db.WithContext(ctx).Model(&domain.Document{}))
}

func latestStats(q *gorm.DB) (int64, *time.Time, error) {
	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err := q.Session(&gorm.Session{}).Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
