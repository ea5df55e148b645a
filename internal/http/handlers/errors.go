// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package), and the translation of service and
// gateway errors into those codes. The codes give clients a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, not_found, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (llm_unavailable, llm_gateway_error) describe
//     failures of the language model behind a turn, which status alone cannot convey.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "llm_gateway_error",
//	  "message": "language model gateway returned status 429"
//	}
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-chat-backend/internal/llm"
	"github.com/tbourn/go-rag-chat-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Domain-specific:
	ErrCodeLLMUnavailable = "llm_unavailable"
	ErrCodeLLMGateway     = "llm_gateway_error"
)

// failService translates an error returned by a service into the matching
// HTTP status and error code. Unknown errors become 500 and are attached to
// the Gin context so the access log records the cause.
func failService(c *gin.Context, err error) {
	var gwErr *llm.GatewayError
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
	case errors.Is(err, services.ErrDocumentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "document not found")
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	case errors.Is(err, services.ErrNotLinked):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "document is not linked to this conversation")

	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message too long")
	case errors.Is(err, services.ErrInvalidMode):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, `mode must be "open" or "rag"`)
	case errors.Is(err, services.ErrMissingName):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name required")
	case errors.Is(err, services.ErrEmptyDocument):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")

	case errors.Is(err, services.ErrAlreadyLinked):
		fail(c, http.StatusConflict, ErrCodeConflict, "document already linked to this conversation")

	case errors.Is(err, llm.ErrAuthentication):
		fail(c, http.StatusServiceUnavailable, ErrCodeLLMUnavailable, "language model is not configured")
	case errors.As(err, &gwErr):
		fail(c, http.StatusBadGateway, ErrCodeLLMGateway,
			fmt.Sprintf("language model gateway returned status %d", gwErr.StatusCode))

	default:
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}
