package domain

import "time"

// Room is an isolated collaboration namespace identified by a unique code.
// Metadata is read-only after creation; participant/document/annotation state
// lives in the stores, keyed by room code.
type Room struct {
	Code      string    `json:"roomCode"`
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"createdAt"`
}

// Participant is a connection actively associated with a room.
type Participant struct {
	ConnectionID string    `json:"-"`
	Username     string    `json:"username"`
	JoinedAt     time.Time `json:"joinedAt"`
}
