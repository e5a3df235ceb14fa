package domain

import "time"

// ChatMessage is broadcast to a room and never stored: there is no persisted
// chat history, late joiners simply miss earlier messages.
type ChatMessage struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
