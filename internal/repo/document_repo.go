// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Document
// and DocumentChunk models.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-chat-backend/internal/domain"
)

// chunkBatchSize bounds rows per INSERT when writing chunks.
const chunkBatchSize = 100

// CreateDocument inserts a new Document row.
func CreateDocument(ctx context.Context, db *gorm.DB, name, content string) (*domain.Document, error) {
	d := &domain.Document{
		ID:        uuid.NewString(),
		Name:      name,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

// GetDocument fetches a document by ID, or ErrNotFound.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.Document, error) {
	var d domain.Document
	if err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// CountDocuments returns the total number of documents.
func CountDocuments(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.Document{}).Count(&total).Error
	return total, err
}

// ListDocumentsPage returns a page of documents, most recent first.
func ListDocumentsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateDocument replaces name and content of a document. It returns
// ErrNotFound when no row matched.
func UpdateDocument(ctx context.Context, db *gorm.DB, id, name, content string) error {
	res := db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{"name": name, "content": content})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceChunks deletes every chunk of the document and inserts chunks in
// their place. ChunkIndex is assigned from slice position, so indices are
// always 0-based and contiguous. Run it inside a transaction together with
// the document write it belongs to.
func ReplaceChunks(ctx context.Context, db *gorm.DB, documentID string, chunks []domain.DocumentChunk) error {
	db = db.WithContext(ctx)
	if err := db.Where("document_id = ?", documentID).Delete(&domain.DocumentChunk{}).Error; err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
		chunks[i].DocumentID = documentID
		chunks[i].ChunkIndex = i
	}
	return db.CreateInBatches(chunks, chunkBatchSize).Error
}

// ListChunks returns the chunks of a document in chunk_index order.
func ListChunks(ctx context.Context, db *gorm.DB, documentID string) ([]domain.DocumentChunk, error) {
	var out []domain.DocumentChunk
	err := db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&out).Error
	return out, err
}

// CountChunks returns how many chunks a document has.
func CountChunks(ctx context.Context, db *gorm.DB, documentID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.DocumentChunk{}).Where("document_id = ?", documentID).Count(&n).Error
	return n, err
}

// DeleteDocument removes a document with its chunks and conversation links in
// one transaction. It returns ErrNotFound when no document has the given id.
func DeleteDocument(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&domain.ConversationDocument{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&domain.DocumentChunk{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
