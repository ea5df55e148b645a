// Package services – MessageService
//
// This file implements MessageService, which continues an existing
// conversation with a new user turn and pages through its transcript.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include conversation identifiers and pagination parameters where applicable.
package services

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
	"github.com/tbourn/go-rag-chat-backend/internal/utils"
)

// MessageService coordinates user turns on existing conversations.
type MessageService struct {
	DB     *gorm.DB
	Engine *Engine

	// MaxMessageRunes caps user turns by rune length. Zero disables the check.
	MaxMessageRunes int
}

// Continue validates content, verifies the conversation exists and runs one
// turn through the engine.
func (s *MessageService) Continue(ctx context.Context, conversationID, content string) (*TurnResult, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Continue",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	msg, err := normalizeMessage(content, s.MaxMessageRunes)
	if err != nil {
		return nil, err
	}

	conv, err := repo.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return s.Engine.Turn(ctx, conv, msg)
}

// Get fetches a single message of a conversation.
func (s *MessageService) Get(ctx context.Context, conversationID, messageID string) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if m.ConversationID != conversationID {
		return nil, ErrMessageNotFound
	}
	return m, nil
}

// ListPage returns paginated messages for a conversation in sequence order.
func (s *MessageService) ListPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	page, pageSize = utils.NormalizePage(page, pageSize)

	ok, err := repo.ConversationExists(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, ErrConversationNotFound
	}

	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}
