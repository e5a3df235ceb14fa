package repository_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harinid27/Studymate/internal/domain"
	"github.com/Harinid27/Studymate/internal/repository"
)

func TestDocumentCatalog_AddAssignsIDAndTimestamp(t *testing.T) {
	catalog := repository.NewDocumentCatalog()

	doc := catalog.Add("ROOM1", domain.Document{
		Filename:     "20240101_120000_notes.pdf",
		OriginalName: "notes.pdf",
		UploadedBy:   "alice",
		URL:          "/uploads/20240101_120000_notes.pdf",
	})

	assert.NotEmpty(t, doc.ID)
	assert.False(t, doc.UploadedAt.IsZero())
	assert.Equal(t, 1, catalog.Count("ROOM1"))
}

func TestDocumentCatalog_ListPreservesInsertionOrder(t *testing.T) {
	catalog := repository.NewDocumentCatalog()

	first := catalog.Add("ROOM1", domain.Document{OriginalName: "first.pdf"})
	second := catalog.Add("ROOM1", domain.Document{OriginalName: "second.pdf"})
	third := catalog.Add("ROOM1", domain.Document{OriginalName: "third.pdf"})

	docs := catalog.List("ROOM1")
	require.Len(t, docs, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{docs[0].ID, docs[1].ID, docs[2].ID})

	assert.Empty(t, catalog.List("OTHER"), "rooms are isolated")
}

func TestDocumentCatalog_ListReturnsSnapshot(t *testing.T) {
	catalog := repository.NewDocumentCatalog()
	catalog.Add("ROOM1", domain.Document{OriginalName: "a.pdf"})

	docs := catalog.List("ROOM1")
	docs[0].OriginalName = "mutated.pdf"

	assert.Equal(t, "a.pdf", catalog.List("ROOM1")[0].OriginalName)
}
