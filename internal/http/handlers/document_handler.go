// Document HTTP handlers.
//
// This file exposes REST endpoints for uploaded documents:
//   - POST   /documents/upload   (create + chunk)
//   - GET    /documents          (list, paginated, ETag support)
//   - GET    /documents/{id}     (document with its chunks)
//   - PUT    /documents/{id}     (replace content and re-chunk)
//   - DELETE /documents/{id}     (delete with chunks and links)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
	"github.com/tbourn/go-rag-chat-backend/internal/repo"
)

//
// DTOs
//

// DocumentRequest is the JSON payload for uploading or replacing a document.
type DocumentRequest struct {
	Name    string `json:"name" example:"sky.txt"`
	Content string `json:"content" example:"The sky is blue."`
}

// DocumentWriteResponse reports the stored document and how many chunks
// its content was split into.
type DocumentWriteResponse struct {
	DocumentID string `json:"document_id" example:"5a3f1c9e-2b7d-4e8a-9c61-0d2f4b8e7a13"`
	ChunkCount int    `json:"chunk_count" example:"3"`
}

// DocumentDetailResponse is a document with its chunks in chunk order.
type DocumentDetailResponse struct {
	Document *domain.Document       `json:"document"`
	Chunks   []domain.DocumentChunk `json:"chunks"`
}

// ListDocumentsResponse wraps a page of documents and pagination information.
type ListDocumentsResponse struct {
	Documents  []domain.Document `json:"documents"`
	Pagination Pagination        `json:"pagination"`
}

//
// Handlers
//

// UploadDocument godoc
// @ID          uploadDocument
// @Summary     Upload a document
// @Description Stores a document and splits its content into fixed-size chunks with placeholder embeddings.
// @Tags        Documents
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.DocumentRequest  true  "Document name and content"
//
// @Success     201  {object}  handlers.DocumentWriteResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     413  {object}  handlers.ErrorResponse  "Body too large"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /documents/upload [post]
func (h *Handlers) UploadDocument(c *gin.Context) {
	var req DocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	doc, n, err := h.docSvc.Upload(c.Request.Context(), req.Name, req.Content)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, DocumentWriteResponse{DocumentID: doc.ID, ChunkCount: n})
}

// ListDocuments godoc
// @ID          listDocuments
// @Summary     List documents (paginated)
// @Description Returns a page of documents, most recent first. Supports weak ETag via If-None-Match.
// @Tags        Documents
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListDocumentsResponse
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /documents [get]
func (h *Handlers) ListDocuments(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	if h.DB != nil {
		if count, latest, err := repo.DocumentsStats(ctx, h.DB); err == nil {
			if notModified(c, "documents", count, latest) {
				return
			}
		}
	}

	items, total, err := h.docSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, ListDocumentsResponse{
		Documents:  items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// GetDocument godoc
// @ID          getDocument
// @Summary     Get a document with its chunks
// @Tags        Documents
// @Produce     json
//
// @Param       id  path  string  true  "Document ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.DocumentDetailResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /documents/{id} [get]
func (h *Handlers) GetDocument(c *gin.Context) {
	id, valid := pathID(c, "id", "document")
	if !valid {
		return
	}
	doc, chunks, err := h.docSvc.Get(c.Request.Context(), id)
	if err != nil {
		failService(c, err)
		return
	}
	if chunks == nil {
		chunks = []domain.DocumentChunk{}
	}
	ok(c, http.StatusOK, DocumentDetailResponse{Document: doc, Chunks: chunks})
}

// UpdateDocument godoc
// @ID          updateDocument
// @Summary     Replace a document
// @Description Replaces name and content; old chunks are removed and the new content is re-chunked.
// @Tags        Documents
// @Accept      json
// @Produce     json
//
// @Param       id    path  string                    true  "Document ID (UUID)"  format(uuid)
// @Param       body  body  handlers.DocumentRequest  true  "New name and content"
//
// @Success     200  {object} handlers.DocumentWriteResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /documents/{id} [put]
func (h *Handlers) UpdateDocument(c *gin.Context) {
	id, valid := pathID(c, "id", "document")
	if !valid {
		return
	}
	var req DocumentRequest
	if !bindJSON(c, &req) {
		return
	}
	doc, n, err := h.docSvc.Update(c.Request.Context(), id, req.Name, req.Content)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, DocumentWriteResponse{DocumentID: doc.ID, ChunkCount: n})
}

// DeleteDocument godoc
// @ID          deleteDocument
// @Summary     Delete a document
// @Description Deletes the document with its chunks and conversation links.
// @Tags        Documents
//
// @Param       id  path  string  true  "Document ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Document not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /documents/{id} [delete]
func (h *Handlers) DeleteDocument(c *gin.Context) {
	id, valid := pathID(c, "id", "document")
	if !valid {
		return
	}
	if err := h.docSvc.Delete(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}
