package repository

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Harinid27/Studymate/internal/domain"
)

// AnnotationStore keeps the per-room, per-document annotation lists.
// Annotations are stored as flat ordered slices: update/delete are linear
// scans by id, which is fine for human-authored annotation counts and keeps
// insertion order for display.
type AnnotationStore struct {
	mu    sync.RWMutex
	rooms map[string]map[string][]domain.Annotation
}

func NewAnnotationStore() *AnnotationStore {
	return &AnnotationStore{rooms: make(map[string]map[string][]domain.Annotation)}
}

// Add builds an annotation from the payload, assigns a fresh id and creation
// timestamp and appends it to the (room, document) list. Text defaults to ""
// and color to the standard highlight color when absent.
func (s *AnnotationStore) Add(code, documentID string, a domain.Annotation) domain.Annotation {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = uuid.NewString()
	a.DocumentID = documentID
	a.CreatedAt = time.Now().UTC()
	if a.Color == "" {
		a.Color = domain.DefaultAnnotationColor
	}

	docs, ok := s.rooms[code]
	if !ok {
		docs = make(map[string][]domain.Annotation)
		s.rooms[code] = docs
	}
	docs[documentID] = append(docs[documentID], a)
	return a
}

// Update locates the annotation by id in the (room, document) list and
// applies the allow-listed fields. A missing id returns
// ErrAnnotationNotFound with no mutation.
func (s *AnnotationStore) Update(code, documentID, annotationID string, upd domain.AnnotationUpdate, author string) (domain.Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.rooms[code][documentID]
	for i := range list {
		if list[i].ID != annotationID {
			continue
		}
		if upd.Text != nil {
			list[i].Text = *upd.Text
		}
		if upd.Color != nil {
			list[i].Color = *upd.Color
		}
		if upd.Coordinates != nil {
			list[i].Coordinates = upd.Coordinates
		}
		now := time.Now().UTC()
		list[i].ModifiedBy = author
		list[i].ModifiedAt = &now
		return list[i], nil
	}
	return domain.Annotation{}, ErrAnnotationNotFound
}

// Delete filters the annotation with the given id out of the list and
// reports whether a removal actually occurred.
func (s *AnnotationStore) Delete(code, documentID, annotationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, ok := s.rooms[code][documentID]
	if !ok {
		return false
	}
	filtered := lo.Filter(list, func(a domain.Annotation, _ int) bool {
		return a.ID != annotationID
	})
	if len(filtered) == len(list) {
		return false
	}
	s.rooms[code][documentID] = filtered
	return true
}

// AllForRoom returns a snapshot of every annotation list in the room, keyed
// by document id. Used for the join handshake.
func (s *AnnotationStore) AllForRoom(code string) map[string][]domain.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]domain.Annotation, len(s.rooms[code]))
	for docID, list := range s.rooms[code] {
		cp := make([]domain.Annotation, len(list))
		copy(cp, list)
		out[docID] = cp
	}
	return out
}

// Remove drops all annotation state for the room.
func (s *AnnotationStore) Remove(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}
