package repository

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Harinid27/Studymate/internal/domain"
)

// DocumentCatalog holds the ordered list of documents shared into each room.
// The list is append-only; documents are never mutated or removed while the
// room lives.
type DocumentCatalog struct {
	mu   sync.RWMutex
	docs map[string][]domain.Document
}

func NewDocumentCatalog() *DocumentCatalog {
	return &DocumentCatalog{docs: make(map[string][]domain.Document)}
}

// Add appends the document to the room's list, assigning a fresh id and
// upload time unless the caller already set them.
func (c *DocumentCatalog) Add(code string, doc domain.Document) domain.Document {
	c.mu.Lock()
	defer c.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	c.docs[code] = append(c.docs[code], doc)
	return doc
}

// List returns a snapshot of the room's documents in insertion order.
func (c *DocumentCatalog) List(code string) []domain.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	docs := c.docs[code]
	out := make([]domain.Document, len(docs))
	copy(out, docs)
	return out
}

// Count returns how many documents have been shared into the room.
func (c *DocumentCatalog) Count(code string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.docs[code])
}

// Remove drops the room's list entirely.
func (c *DocumentCatalog) Remove(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, code)
}
