// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses
// and idempotent replays).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/http/middleware"
	"github.com/tbourn/go-rag-chat-backend/internal/services"
	"github.com/tbourn/go-rag-chat-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ConversationService defines conversation lifecycle operations consumed by
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConversationService interface {
	// Start creates a conversation and runs its first turn. The conversation
	// is returned even when the turn fails.
	Start(ctx context.Context, mode, firstMessage string) (*domain.Conversation, *services.TurnResult, error)
	// Get returns a conversation with its messages in sequence order.
	Get(ctx context.Context, id string) (*domain.Conversation, []domain.Message, error)
	// ListPage returns a page of conversations and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Conversation, int64, error)
	// Delete removes a conversation and everything it owns.
	Delete(ctx context.Context, id string) error
}

// MessageService defines the turn pipeline and message reads.
type MessageService interface {
	// Continue runs one turn: persist the user message, maybe summarize,
	// call the model and persist its reply.
	Continue(ctx context.Context, conversationID, content string) (*services.TurnResult, error)
	// Get returns one message of a conversation.
	Get(ctx context.Context, conversationID, messageID string) (*domain.Message, error)
	// ListPage returns a page of messages in sequence order and the total count.
	ListPage(ctx context.Context, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
}

// DocumentService defines document upload and maintenance operations.
type DocumentService interface {
	Upload(ctx context.Context, name, content string) (*domain.Document, int, error)
	Update(ctx context.Context, id, name, content string) (*domain.Document, int, error)
	Get(ctx context.Context, id string) (*domain.Document, []domain.DocumentChunk, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Document, int64, error)
	Delete(ctx context.Context, id string) error
}

// LinkService defines which documents a conversation may retrieve from.
type LinkService interface {
	Link(ctx context.Context, conversationID, documentID string) (*domain.ConversationDocument, error)
	Unlink(ctx context.Context, conversationID, documentID string) error
	List(ctx context.Context, conversationID string) ([]domain.Document, error)
}

//
// Handler wiring
//

// DefaultIdempotencyTTL is how long a recorded reply can be replayed when
// Handlers.IdempotencyTTL is zero.
const DefaultIdempotencyTTL = 24 * time.Hour

// Handlers groups HTTP endpoints for conversations, messages, documents and
// conversation/document links. It depends on abstract service interfaces to
// keep transport concerns separate from business logic.
type Handlers struct {
	convSvc ConversationService
	msgSvc  MessageService
	docSvc  DocumentService
	linkSvc LinkService

	// DB enables weak ETags on list endpoints and idempotent replays of
	// message posts. Both are skipped when nil.
	DB *gorm.DB
	// IdempotencyTTL bounds how long an Idempotency-Key replays its reply.
	IdempotencyTTL time.Duration
}

// New constructs and returns a Handlers instance bound to the given services.
func New(conv ConversationService, msg MessageService, docs DocumentService, links LinkService) *Handlers {
	return &Handlers{convSvc: conv, msgSvc: msg, docSvc: docs, linkSvc: links}
}

func (h *Handlers) idempotencyTTL() time.Duration {
	if h.IdempotencyTTL > 0 {
		return h.IdempotencyTTL
	}
	return DefaultIdempotencyTTL
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// StatusResponse is a minimal acknowledgement body.
type StatusResponse struct {
	Status string `json:"status" example:"deleted"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ParsePage(c.Query("page"), c.Query("page_size"))
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := utils.TotalPages(total, pageSize)
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// pathID reads a UUID route parameter. It writes a 400 and returns false when
// the value is not a UUID.
func pathID(c *gin.Context, param, what string) (string, bool) {
	id := c.Param(param)
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, what+" id must be a UUID")
		return "", false
	}
	return id, true
}

// bindJSON decodes the request body into dst. Oversized bodies yield 413,
// anything else that fails to decode yields 400.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// notModified sets a weak ETag derived from (scope, count, latest) and, when
// it matches If-None-Match, writes 304 and returns true.
func notModified(c *gin.Context, scope string, count int64, latest *time.Time) bool {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d"`, scope, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// idempotencyKey prefers the key validated by middleware and falls back to
// the raw header when no validator is installed.
func idempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}
