// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - POST   /conversations        (start: create + first turn)
//   - GET    /conversations        (list, paginated, ETag support)
//   - GET    /conversations/{id}   (detail with transcript, ETag support)
//   - DELETE /conversations/{id}   (delete with messages, links and replay records)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
)

// HeaderConversationID carries the id of a conversation created by
// StartConversation, also when its first turn failed.
const HeaderConversationID = "X-Conversation-ID"

//
// DTOs
//

// StartConversationRequest is the JSON payload for starting a conversation.
type StartConversationRequest struct {
	// Mode is "open" (default) or "rag".
	Mode string `json:"mode" example:"rag"`
	// FirstMessage is the opening user turn.
	FirstMessage string `json:"first_message" example:"What color is the sky?"`
}

// StartConversationResponse is returned when a conversation was created and
// its first turn answered.
type StartConversationResponse struct {
	ConversationID string `json:"conversation_id" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	Mode           string `json:"mode" example:"rag"`
	Reply          string `json:"reply" example:"The sky is blue."`
}

// ListConversationsResponse wraps a page of conversations and pagination information.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ConversationDetailResponse is a conversation with its full transcript.
type ConversationDetailResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
	Messages     []domain.Message     `json:"messages"`
}

//
// Handlers
//

// StartConversation godoc
// @ID          startConversation
// @Summary     Start a conversation
// @Description Creates a conversation in the given mode, sends the first message to the model and stores both turns.
// @Description When the model call fails the conversation still exists; its id is returned in X-Conversation-ID.
// @Tags        Conversations
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.StartConversationRequest  true  "Mode and first message"
//
// @Success     201  {object}  handlers.StartConversationResponse
// @Header      201  {string}  X-Conversation-ID  "Id of the created conversation"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     502  {object}  handlers.ErrorResponse  "Model gateway error"
// @Failure     503  {object}  handlers.ErrorResponse  "Model not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations [post]
func (h *Handlers) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if !bindJSON(c, &req) {
		return
	}

	conv, res, err := h.convSvc.Start(c.Request.Context(), req.Mode, req.FirstMessage)
	if conv != nil {
		c.Header(HeaderConversationID, conv.ID)
	}
	if err != nil {
		failService(c, err)
		return
	}

	ok(c, http.StatusCreated, StartConversationResponse{
		ConversationID: conv.ID,
		Mode:           conv.Mode,
		Reply:          res.Reply.Content,
	})
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns a page of conversations, most recent first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if h.DB != nil {
		if count, latest, err := repo.ConversationsStats(ctx, h.DB); err == nil {
			if notModified(c, "conversations", count, latest) {
				return
			}
		}
	}

	items, total, err := h.convSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination:    newPagination(page, pageSize, total),
	})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Get a conversation with its messages
// @Description Returns the conversation and its messages in sequence order. Supports weak ETag via If-None-Match.
// @Tags        Conversations
// @Produce     json
//
// @Param       id             path    string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ConversationDetailResponse
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	id, valid := pathID(c, "id", "conversation")
	if !valid {
		return
	}

	conv, msgs, err := h.convSvc.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}

	var latest *time.Time
	for i := range msgs {
		if latest == nil || msgs[i].CreatedAt.After(*latest) {
			latest = &msgs[i].CreatedAt
		}
	}
	if notModified(c, "conversation:"+id, int64(len(msgs)), latest) {
		return
	}

	ok(c, http.StatusOK, ConversationDetailResponse{Conversation: conv, Messages: msgs})
}

// DeleteConversation godoc
// @ID          deleteConversation
// @Summary     Delete a conversation
// @Description Deletes the conversation together with its messages, document links and idempotency records.
// @Tags        Conversations
// @Produce     json
//
// @Param       id  path  string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.StatusResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id} [delete]
func (h *Handlers) DeleteConversation(c *gin.Context) {
	id, valid := pathID(c, "id", "conversation")
	if !valid {
		return
	}
	if err := h.convSvc.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, StatusResponse{Status: "deleted"})
}
