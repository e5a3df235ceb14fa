package repository

import (
	"sync"
	"time"

	"github.com/Harinid27/Studymate/internal/domain"
)

// Departure describes one room a connection was removed from.
type Departure struct {
	RoomCode  string
	Username  string
	Remaining int
}

// ParticipantTable tracks which connections are members of which rooms.
// Participant counts are always recomputed from the live entries, never
// cached.
type ParticipantTable struct {
	mu    sync.RWMutex
	rooms map[string]map[string]domain.Participant
}

func NewParticipantTable() *ParticipantTable {
	return &ParticipantTable{rooms: make(map[string]map[string]domain.Participant)}
}

// Join inserts or overwrites the participant entry for connID in the room.
// Joining twice with the same connection is idempotent: the entry is
// replaced, not duplicated, so the count never double-counts a connection.
func (t *ParticipantTable) Join(code, connID, username string) domain.Participant {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.rooms[code]
	if !ok {
		members = make(map[string]domain.Participant)
		t.rooms[code] = members
	}
	p := domain.Participant{
		ConnectionID: connID,
		Username:     username,
		JoinedAt:     time.Now().UTC(),
	}
	members[connID] = p
	return p
}

// Leave removes connID from every room it is registered in and returns one
// departure record per room so the caller can notify each.
func (t *ParticipantTable) Leave(connID string) []Departure {
	t.mu.Lock()
	defer t.mu.Unlock()

	var departures []Departure
	for code, members := range t.rooms {
		p, ok := members[connID]
		if !ok {
			continue
		}
		delete(members, connID)
		if len(members) == 0 {
			delete(t.rooms, code)
		}
		departures = append(departures, Departure{
			RoomCode:  code,
			Username:  p.Username,
			Remaining: len(members),
		})
	}
	return departures
}

// Count returns the number of live connections in the room.
func (t *ParticipantTable) Count(code string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[code])
}

// ConnectionIDs returns a snapshot of the connection ids in the room.
func (t *ParticipantTable) ConnectionIDs(code string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	members := t.rooms[code]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// Remove drops all entries for the room. Used by eviction, which only runs
// against rooms that are already empty.
func (t *ParticipantTable) Remove(code string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rooms, code)
}
