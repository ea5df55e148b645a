// Package services – ConversationService
//
// This file implements ConversationService, which owns the conversation
// lifecycle: starting a conversation with its first turn, reading it back with
// its transcript, listing with pagination and deleting with all owned rows.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
	"github.com/tbourn/go-rag-chat-backend/internal/utils"
)

// ConversationService provides conversation-level operations.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Engine runs the first turn of a new conversation.
	Engine *Engine
	// MaxMessageRunes caps user turns by rune length. Zero disables the check.
	MaxMessageRunes int
}

// NormalizeMode lower-cases and trims mode. An empty mode means open.
// Unknown modes yield ErrInvalidMode.
func NormalizeMode(mode string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	switch m {
	case "":
		return domain.ModeOpen, nil
	case domain.ModeOpen, domain.ModeRAG:
		return m, nil
	default:
		return "", ErrInvalidMode
	}
}

// normalizeMessage trims a user turn and validates it against limit.
func normalizeMessage(content string, limit int) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyMessage
	}
	if limit > 0 && utf8.RuneCountInString(content) > limit {
		return "", ErrTooLong
	}
	return content, nil
}

// Start creates a conversation in the given mode and runs its first turn.
//
// Validation happens before anything is written. Once the conversation is
// created it is returned even when the turn fails, so callers can still
// report its id.
func (s *ConversationService) Start(ctx context.Context, mode, firstMessage string) (*domain.Conversation, *TurnResult, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Start", trace.WithAttributes(attribute.String("conversation.mode", mode)))
	defer span.End()

	mode, err := NormalizeMode(mode)
	if err != nil {
		return nil, nil, err
	}
	msg, err := normalizeMessage(firstMessage, s.MaxMessageRunes)
	if err != nil {
		return nil, nil, err
	}

	conv, err := repo.CreateConversation(ctx, s.DB, mode)
	if err != nil {
		return nil, nil, err
	}
	span.SetAttributes(attribute.String("conversation.id", conv.ID))

	res, err := s.Engine.Turn(ctx, conv, msg)
	if err != nil {
		return conv, nil, err
	}
	return conv, res, nil
}

// Get returns a conversation together with its transcript in sequence order.
func (s *ConversationService) Get(ctx context.Context, id string) (*domain.Conversation, []domain.Message, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("conversation.id", id)))
	defer span.End()

	conv, err := repo.GetConversation(ctx, s.DB, id)
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrConversationNotFound
		}
		return nil, nil, err
	}
	msgs, err := repo.ListMessages(ctx, s.DB, id)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

// ListPage returns a page of conversations (most recent first) and the total.
func (s *ConversationService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Conversation, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	page, pageSize = utils.NormalizePage(page, pageSize)
	total, err := repo.CountConversations(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}
	items, err := repo.ListConversationsPage(ctx, s.DB, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// Delete removes a conversation and everything it owns. It waits for any
// in-flight turn on the conversation to finish first.
func (s *ConversationService) Delete(ctx context.Context, id string) error {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Delete", trace.WithAttributes(attribute.String("conversation.id", id)))
	defer span.End()

	if s.Engine != nil {
		unlock, err := s.Engine.locker().Lock(ctx, id)
		if err != nil {
			return err
		}
		defer unlock()
	}

	if err := repo.DeleteConversation(ctx, s.DB, id); err != nil {
		if isNotFound(err) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}
