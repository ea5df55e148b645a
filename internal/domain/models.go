// Package domain defines the persistence models for conversations, messages,
// documents and their chunks. These types are mapped with GORM and form the
// core data layer of the assistant backend.
package domain

import (
	"time"
)

// Conversation modes.
const (
	ModeOpen = "open"
	ModeRAG  = "rag"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Conversation is a chat session with an ordered transcript and a mode.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Mode: "open" (plain chat) or "rag" (replies grounded in linked documents).
//   - CreatedAt: creation timestamp managed by GORM.
type Conversation struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Mode      string    `json:"mode"       gorm:"type:varchar(10);not null;default:'open';check:mode IN ('open','rag')"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// Message is a single utterance within a conversation.
//
// Sequence is assigned by the engine (never by the caller) and is unique per
// conversation; it defines both display order and model-context order.
type Message struct {
	ID             string    `json:"-"          gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"-"          gorm:"type:char(36);not null;uniqueIndex:ux_conversation_sequence,priority:1"`
	Role           string    `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content        string    `json:"content"    gorm:"type:text;not null"`
	Sequence       int       `json:"sequence"   gorm:"not null;uniqueIndex:ux_conversation_sequence,priority:2"`
	CreatedAt      time.Time `json:"created_at"`

	// Conversation is the owner. Messages are cascade-deleted with it.
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Document is an uploaded text that conversations may draw retrieval context from.
type Document struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string { return "documents" }

// DocumentChunk is a fixed-size contiguous slice of a document's content.
// Chunks ordered by ChunkIndex concatenate back to the document content.
//
// Embedding is a placeholder vector kept for forward compatibility; retrieval
// never consults it.
type DocumentChunk struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	DocumentID string    `json:"document_id" gorm:"type:char(36);not null;uniqueIndex:ux_document_chunk,priority:1"`
	ChunkIndex int       `json:"chunk_index" gorm:"not null;uniqueIndex:ux_document_chunk,priority:2"`
	ChunkText  string    `json:"chunk_text"  gorm:"type:text;not null"`
	Embedding  Embedding `json:"embedding"   gorm:"type:text"`

	Document Document `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for DocumentChunk.
func (DocumentChunk) TableName() string { return "document_chunks" }

// ConversationDocument links a conversation to a document it may retrieve
// context from. It carries no ordering or weight.
type ConversationDocument struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"type:char(36);not null;uniqueIndex:ux_conversation_document,priority:1"`
	DocumentID     string    `json:"document_id"     gorm:"type:char(36);not null;index;uniqueIndex:ux_conversation_document,priority:2"`
	CreatedAt      time.Time `json:"created_at"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Document     Document     `json:"-" gorm:"foreignKey:DocumentID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ConversationDocument.
func (ConversationDocument) TableName() string { return "conversation_documents" }
