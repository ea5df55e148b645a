// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed turn,
// keyed by (conversation_id, key). It enables safe retries of
// POST /conversations/{id}/messages by returning the originally produced
// response without calling the model again. Response holds the encoded body,
// so a replay survives summarization deleting the assistant message.
type Idempotency struct {
	ID             string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ConversationID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_conversation_key,priority:1"`
	Key            string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_conversation_key,priority:2"`
	MessageID      string    `gorm:"type:TEXT NOT NULL"`
	Status         int       `gorm:"type:INTEGER NOT NULL"`
	Response       []byte    `gorm:"type:BLOB"`
	CreatedAt      time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt      time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
