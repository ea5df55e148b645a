// Message HTTP handlers.
//
// This file exposes REST endpoints for conversation messages:
//   - POST /conversations/{id}/messages   (run one turn and return the reply)
//   - GET  /conversations/{id}/messages   (list paginated messages by sequence)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a reply was already
// recorded for (conversation, key), the handler returns the recorded response
// without running another turn and sets `Idempotency-Replayed: true`.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/http/middleware"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
)

// HeaderIdempotencyReplayed marks responses served from a recorded reply.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a user message.
//
// Line endings and runs of blank lines are normalized by the handler before
// the text reaches the service, which enforces emptiness and length limits.
type PostMessageRequest struct {
	// Message is the user turn. It must not be blank.
	Message string `json:"message" example:"What color is the sky?"`
}

// PostMessageResponse carries the assistant reply of a turn.
type PostMessageResponse struct {
	// Reply is the assistant text.
	Reply string `json:"reply" example:"The sky is blue."`
	// Message is the persisted assistant message.
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
// CRLF and CR become LF, runs of 3+ LFs collapse to two, and surrounding
// whitespace is trimmed.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// replay serves the response recorded for (conversationID, key) when one
// exists. Records without a stored body fall back to the assistant message.
func (h *Handlers) replay(c *gin.Context, conversationID, key string) bool {
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, h.DB, conversationID, key, time.Now().UTC())
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		}
		return false
	}

	if len(rec.Response) > 0 {
		c.Header(HeaderIdempotencyReplayed, "true")
		c.Data(rec.Status, "application/json; charset=utf-8", rec.Response)
		return true
	}
	prev, err := h.msgSvc.Get(ctx, conversationID, rec.MessageID)
	if err != nil {
		return false
	}
	c.Header(HeaderIdempotencyReplayed, "true")
	ok(c, http.StatusOK, PostMessageResponse{Reply: prev.Content, Message: prev})
	return true
}

// remember records resp for key. Failures only cost the replay.
func (h *Handlers) remember(c *gin.Context, conversationID, key string, resp PostMessageResponse) {
	body, err := json.Marshal(resp)
	if err == nil {
		_, err = repo.CreateIdempotency(c.Request.Context(), h.DB, conversationID, key,
			resp.Message.ID, http.StatusOK, body, h.idempotencyTTL())
	}
	if err != nil && !errors.Is(err, repo.ErrDuplicate) {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record not stored")
	}
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message and get the assistant reply
// @Description Runs one turn: stores the user message, summarizes old history when over budget,
// @Description retrieves document context in rag mode, calls the model and stores its reply.
// @Description Supports idempotency via the Idempotency-Key header (same key → same reply).
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "User message payload"
//
// @Success     200  {object}  handlers.PostMessageResponse  "Assistant reply"
// @Header      200  {string}  Idempotency-Replayed  "true when served from a recorded reply"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Model gateway error"
// @Failure     503  {object}  handlers.ErrorResponse  "Model not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	conversationID, valid := pathID(c, "id", "conversation")
	if !valid {
		return
	}

	var req PostMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	content := sanitizeContent(req.Message)

	key := ""
	if h.DB != nil {
		key = idempotencyKey(c)
	}
	if key != "" && h.replay(c, conversationID, key) {
		return
	}

	res, err := h.msgSvc.Continue(c.Request.Context(), conversationID, content)
	if err != nil {
		failService(c, err)
		return
	}

	resp := PostMessageResponse{Reply: res.Reply.Content, Message: res.Reply}
	if key != "" {
		h.remember(c, conversationID, key, resp)
	}
	ok(c, http.StatusOK, resp)
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a conversation
// @Description Returns a paginated list of messages in sequence order. Supports weak ETag via If-None-Match.
// @Tags        Messages
// @Produce     json
//
// @Param       id             path    string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	conversationID, valid := pathID(c, "id", "conversation")
	if !valid {
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort). An empty transcript never short-circuits
	// so unknown conversations still reach the 404 below.
	if h.DB != nil {
		if count, latest, err := repo.MessagesStats(ctx, h.DB, conversationID); err == nil && count > 0 {
			if notModified(c, "messages:"+conversationID, count, latest) {
				return
			}
		}
	}

	items, total, err := h.msgSvc.ListPage(ctx, conversationID, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}
