// Conversation/document link handlers.
//
// This file exposes REST endpoints that control which documents a rag
// conversation may draw context from:
//   - POST   /conversations/{id}/documents               (link)
//   - GET    /conversations/{id}/documents               (list linked documents)
//   - DELETE /conversations/{id}/documents/{documentId}  (unlink)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
)

// LinkDocumentRequest is the JSON payload for linking a document.
type LinkDocumentRequest struct {
	DocumentID string `json:"document_id" example:"5a3f1c9e-2b7d-4e8a-9c61-0d2f4b8e7a13"`
}

// LinkedDocumentsResponse lists the documents linked to a conversation in
// the order retrieval visits them.
type LinkedDocumentsResponse struct {
	Documents []domain.Document `json:"documents"`
}

// LinkDocument godoc
// @ID          linkDocument
// @Summary     Link a document to a conversation
// @Tags        Links
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                        true  "Conversation ID (UUID)"  format(uuid)
// @Param       body  body  handlers.LinkDocumentRequest  true  "Document to link"
//
// @Success     201  {object} domain.ConversationDocument
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation or document not found"
// @Failure     409  {object} handlers.ErrorResponse "Already linked"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/documents [post]
func (h *Handlers) LinkDocument(c *gin.Context) {
	conversationID, valid := pathID(c, "id", "conversation")
	if !valid {
		return
	}
	var req LinkDocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	if _, err := uuid.Parse(req.DocumentID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "document_id must be a UUID")
		return
	}

	link, err := h.linkSvc.Link(c.Request.Context(), conversationID, req.DocumentID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, link)
}

// ListLinkedDocuments godoc
// @ID          listLinkedDocuments
// @Summary     List documents linked to a conversation
// @Tags        Links
// @Produce     json
//
// @Param       id  path  string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.LinkedDocumentsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/documents [get]
func (h *Handlers) ListLinkedDocuments(c *gin.Context) {
	conversationID, valid := pathID(c, "id", "conversation")
	if !valid {
		return
	}
	docs, err := h.linkSvc.List(c.Request.Context(), conversationID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, LinkedDocumentsResponse{Documents: docs})
}

// UnlinkDocument godoc
// @ID          unlinkDocument
// @Summary     Unlink a document from a conversation
// @Tags        Links
//
// @Param       id          path  string  true  "Conversation ID (UUID)"  format(uuid)
// @Param       documentId  path  string  true  "Document ID (UUID)"      format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not linked"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /conversations/{id}/documents/{documentId} [delete]
func (h *Handlers) UnlinkDocument(c *gin.Context) {
	conversationID, valid := pathID(c, "id", "conversation")
	if !valid {
		return
	}
	documentID, valid := pathID(c, "documentId", "document")
	if !valid {
		return
	}
	if err := h.linkSvc.Unlink(c.Request.Context(), conversationID, documentID); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
