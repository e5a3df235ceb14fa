package repository

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Harinid27/Studymate/internal/domain"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RoomRegistry is the authoritative set of valid room codes. Everything else
// checks validity here before touching per-room state.
type RoomRegistry struct {
	mu         sync.RWMutex
	rooms      map[string]*roomEntry
	codeLength int
}

type roomEntry struct {
	room       domain.Room
	lastActive time.Time
}

// NewRoomRegistry creates an empty registry. codeLength controls generated
// room codes; the original client UI expects 8 characters.
func NewRoomRegistry(codeLength int) *RoomRegistry {
	if codeLength <= 0 {
		panic("codeLength must be positive for RoomRegistry")
	}
	return &RoomRegistry{
		rooms:      make(map[string]*roomEntry),
		codeLength: codeLength,
	}
}

// Create records a new room. If code is empty a fresh unique code is
// allocated; an explicit code is upper-cased and must not collide.
func (r *RoomRegistry) Create(creator, code string) (domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if code == "" {
		generated, err := r.generateUniqueCodeLocked()
		if err != nil {
			return domain.Room{}, err
		}
		code = generated
	} else {
		code = strings.ToUpper(code)
		if _, taken := r.rooms[code]; taken {
			return domain.Room{}, fmt.Errorf("room code %q already in use: %w", code, ErrCodeSpaceExhausted)
		}
	}

	now := time.Now().UTC()
	room := domain.Room{Code: code, Creator: creator, CreatedAt: now}
	r.rooms[code] = &roomEntry{room: room, lastActive: now}
	return room, nil
}

// Exists reports whether code identifies a live room.
func (r *RoomRegistry) Exists(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[code]
	return ok
}

// Get returns the room metadata for code.
func (r *RoomRegistry) Get(code string) (domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rooms[code]
	if !ok {
		return domain.Room{}, ErrRoomNotFound
	}
	return entry.room, nil
}

// Touch records activity in the room so the eviction janitor leaves it alone.
func (r *RoomRegistry) Touch(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.rooms[code]; ok {
		entry.lastActive = time.Now().UTC()
	}
}

// LastActive returns the time of the most recent activity in the room.
func (r *RoomRegistry) LastActive(code string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.rooms[code]
	if !ok {
		return time.Time{}, false
	}
	return entry.lastActive, true
}

// Codes returns a snapshot of all live room codes.
func (r *RoomRegistry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	return codes
}

// Remove drops the room from the registry. Callers cascade removal to the
// other stores themselves.
func (r *RoomRegistry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
}

// Len returns the number of live rooms.
func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *RoomRegistry) generateUniqueCodeLocked() (string, error) {
	const maxAttempts = 10

	buf := make([]byte, r.codeLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range buf {
			buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
		}
		code := string(buf)
		if _, taken := r.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}
