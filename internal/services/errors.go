// Package services defines the business logic for conversations, messages,
// documents and document links. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer. Gateway failures (llm.ErrAuthentication and
// *llm.GatewayError) are propagated unchanged.
package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/repo"
)

// Conversation and message errors.
var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptyMessage is returned when a user turn has no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a user turn exceeds the configured maximum
	// length.
	ErrTooLong = errors.New("message too long")

	// ErrInvalidMode is returned when a conversation mode is neither "open"
	// nor "rag".
	ErrInvalidMode = errors.New("mode must be \"open\" or \"rag\"")

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")
)

// Document and link errors.
var (
	// ErrDocumentNotFound indicates that the requested document does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrEmptyDocument is returned when an upload carries no content.
	ErrEmptyDocument = errors.New("document content is empty")

	// ErrMissingName is returned when an upload carries no document name.
	ErrMissingName = errors.New("document name is required")

	// ErrAlreadyLinked is returned when a document is already linked to the
	// conversation.
	ErrAlreadyLinked = errors.New("document already linked to conversation")

	// ErrNotLinked is returned when unlinking a document that is not linked.
	ErrNotLinked = errors.New("document is not linked to conversation")
)

// isNotFound treats repo-level not found sentinels as "not found" in a
// driver-agnostic way.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}
