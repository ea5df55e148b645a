package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared&_pragma=foreign_keys(1)"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Conversation{}).TableName():         "conversations",
		(Message{}).TableName():              "messages",
		(Document{}).TableName():             "documents",
		(DocumentChunk{}).TableName():        "document_chunks",
		(ConversationDocument{}).TableName(): "conversation_documents",
		(Idempotency{}).TableName():          "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndCascades(t *testing.T) {
	db := newDomainDB(t)

	all := []any{&Conversation{}, &Message{}, &Document{}, &DocumentChunk{}, &ConversationDocument{}}
	if err := db.AutoMigrate(all...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range all {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&Message{}, "ux_conversation_sequence") {
		t.Fatalf("expected unique index ux_conversation_sequence on messages")
	}
	if !m.HasIndex(&DocumentChunk{}, "ux_document_chunk") {
		t.Fatalf("expected unique index ux_document_chunk on document_chunks")
	}
	if !m.HasIndex(&ConversationDocument{}, "ux_conversation_document") {
		t.Fatalf("expected unique index ux_conversation_document on conversation_documents")
	}

	now := time.Now().UTC()
	if err := db.Create(&Conversation{ID: "c1", Mode: ModeRAG, CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert conversation: %v", err)
	}
	if err := db.Create(&Document{ID: "d1", Name: "doc", Content: "abc", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert document: %v", err)
	}
	if err := db.Create(&Message{ID: "m1", ConversationID: "c1", Role: RoleUser, Content: "hi", Sequence: 1}).Error; err != nil {
		t.Fatalf("insert m1: %v", err)
	}

	// duplicate sequence in the same conversation is rejected
	if err := db.Create(&Message{ID: "m2", ConversationID: "c1", Role: RoleAssistant, Content: "x", Sequence: 1}).Error; err == nil {
		t.Fatalf("expected unique violation on (conversation_id, sequence)")
	}
	// unknown role is rejected by the check constraint
	if err := db.Create(&Message{ID: "m3", ConversationID: "c1", Role: "tool", Content: "x", Sequence: 2}).Error; err == nil {
		t.Fatalf("expected check violation on role")
	}

	if err := db.Create(&DocumentChunk{ID: "k1", DocumentID: "d1", ChunkIndex: 0, ChunkText: "abc", Embedding: Embedding{3}}).Error; err != nil {
		t.Fatalf("insert chunk: %v", err)
	}
	if err := db.Create(&ConversationDocument{ID: "l1", ConversationID: "c1", DocumentID: "d1"}).Error; err != nil {
		t.Fatalf("insert link: %v", err)
	}
	if err := db.Create(&ConversationDocument{ID: "l2", ConversationID: "c1", DocumentID: "d1"}).Error; err == nil {
		t.Fatalf("expected unique violation on (conversation_id, document_id)")
	}

	// Deleting the conversation cascades messages and links, not documents.
	if err := db.Delete(&Conversation{}, "id = ?", "c1").Error; err != nil {
		t.Fatalf("delete conversation: %v", err)
	}
	var n int64
	db.Model(&Message{}).Where("conversation_id = ?", "c1").Count(&n)
	if n != 0 {
		t.Fatalf("messages not cascaded, count=%d", n)
	}
	db.Model(&ConversationDocument{}).Count(&n)
	if n != 0 {
		t.Fatalf("links not cascaded, count=%d", n)
	}
	db.Model(&Document{}).Count(&n)
	if n != 1 {
		t.Fatalf("document must survive conversation delete, count=%d", n)
	}

	// Deleting the document cascades its chunks.
	if err := db.Delete(&Document{}, "id = ?", "d1").Error; err != nil {
		t.Fatalf("delete document: %v", err)
	}
	db.Model(&DocumentChunk{}).Count(&n)
	if n != 0 {
		t.Fatalf("chunks not cascaded, count=%d", n)
	}
}
