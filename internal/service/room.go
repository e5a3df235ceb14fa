package service

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Harinid27/Studymate/internal/domain"
	"github.com/Harinid27/Studymate/internal/repository"
)

// RoomStatus is the read-only summary exposed on the HTTP status endpoint.
type RoomStatus struct {
	RoomCode         string    `json:"room_code"`
	Creator          string    `json:"creator"`
	CreatedAt        time.Time `json:"created_at"`
	ParticipantCount int       `json:"participant_count"`
	DocumentCount    int       `json:"document_count"`
}

// RoomService owns room creation, validation and the eviction lifecycle.
// Rooms are never destroyed explicitly by clients; instead a janitor evicts
// rooms that have been empty and idle longer than the configured TTL,
// cascading to the document and annotation stores.
type RoomService struct {
	registry     *repository.RoomRegistry
	participants *repository.ParticipantTable
	documents    *repository.DocumentCatalog
	annotations  *repository.AnnotationStore
	ttl          time.Duration

	janitorMu sync.Mutex
	janitorOn bool
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewRoomService(
	registry *repository.RoomRegistry,
	participants *repository.ParticipantTable,
	documents *repository.DocumentCatalog,
	annotations *repository.AnnotationStore,
	ttl time.Duration,
) *RoomService {
	if registry == nil || participants == nil || documents == nil || annotations == nil {
		panic("all stores must be non-nil for RoomService")
	}
	return &RoomService{
		registry:     registry,
		participants: participants,
		documents:    documents,
		annotations:  annotations,
		ttl:          ttl,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// CreateRoom allocates a fresh room for creator. The per-room stores are
// lazily initialized, so a brand-new room snapshots as empty.
func (s *RoomService) CreateRoom(creator string) (domain.Room, error) {
	room, err := s.registry.Create(creator, "")
	if err != nil {
		logrus.WithError(err).WithField("creator", creator).Error("Failed to create room")
		return domain.Room{}, ErrInternalServer
	}
	logrus.WithFields(logrus.Fields{"room_code": room.Code, "creator": creator}).Info("Room created")
	return room, nil
}

// ValidateRoom fails fast with ErrRoomNotFound for unknown codes.
func (s *RoomService) ValidateRoom(code string) error {
	if !s.registry.Exists(code) {
		return ErrRoomNotFound
	}
	return nil
}

// Touch marks the room active so the janitor leaves it alone.
func (s *RoomService) Touch(code string) {
	s.registry.Touch(code)
}

// Status summarizes the room for the HTTP surface. Counts are recomputed
// from the live stores.
func (s *RoomService) Status(code string) (RoomStatus, error) {
	room, err := s.registry.Get(code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return RoomStatus{}, ErrRoomNotFound
		}
		return RoomStatus{}, ErrInternalServer
	}
	return RoomStatus{
		RoomCode:         room.Code,
		Creator:          room.Creator,
		CreatedAt:        room.CreatedAt,
		ParticipantCount: s.participants.Count(code),
		DocumentCount:    s.documents.Count(code),
	}, nil
}

// StartJanitor runs the eviction loop until StopJanitor is called. A second
// call is a no-op.
func (s *RoomService) StartJanitor(interval time.Duration) {
	s.janitorMu.Lock()
	defer s.janitorMu.Unlock()
	if s.janitorOn {
		return
	}
	s.janitorOn = true

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		logrus.WithFields(logrus.Fields{"interval": interval, "ttl": s.ttl}).Info("Room janitor started")
		for {
			select {
			case <-ticker.C:
				if n := s.EvictIdle(time.Now().UTC()); n > 0 {
					logrus.WithField("evicted", n).Info("Evicted idle rooms")
				}
			case <-s.stop:
				logrus.Info("Room janitor stopped")
				return
			}
		}
	}()
}

// StopJanitor stops the eviction loop and waits for it to exit. Safe to call
// when the janitor was never started.
func (s *RoomService) StopJanitor() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.janitorMu.Lock()
	on := s.janitorOn
	s.janitorMu.Unlock()
	if on {
		<-s.done
	}
}

// EvictIdle removes every room that is empty and has been inactive longer
// than the TTL, and returns how many were evicted. Occupied rooms are never
// evicted regardless of age.
func (s *RoomService) EvictIdle(now time.Time) int {
	evicted := 0
	for _, code := range s.registry.Codes() {
		if s.participants.Count(code) > 0 {
			continue
		}
		lastActive, ok := s.registry.LastActive(code)
		if !ok || now.Sub(lastActive) < s.ttl {
			continue
		}
		s.registry.Remove(code)
		s.participants.Remove(code)
		s.documents.Remove(code)
		s.annotations.Remove(code)
		logrus.WithField("room_code", code).Info("Room evicted after idle TTL")
		evicted++
	}
	return evicted
}
