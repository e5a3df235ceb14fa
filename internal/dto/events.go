package dto

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/Harinid27/Studymate/internal/domain"
)

// Event names carried in the websocket envelope, client -> server.
const (
	EventJoinStudyRoom    = "join_study_room"
	EventAddAnnotation    = "add_annotation"
	EventUpdateAnnotation = "update_annotation"
	EventDeleteAnnotation = "delete_annotation"
	EventSendMessage      = "send_message"
)

// Event names, server -> client.
const (
	EventRoomJoined        = "room_joined"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventAnnotationAdded   = "annotation_added"
	EventAnnotationUpdated = "annotation_updated"
	EventAnnotationDeleted = "annotation_deleted"
	EventMessageReceived   = "message_received"
	EventPDFUploaded       = "pdf_uploaded"
	EventError             = "error"
)

var validate = validator.New()

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeData unmarshals the envelope payload into the typed schema for its
// event and validates it. Malformed shapes are rejected here instead of
// being discovered field by field at use sites.
func (e *Envelope) DecodeData(dst any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %q has no payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("decode %q payload: %w", e.Event, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validate %q payload: %w", e.Event, err)
	}
	return nil
}

// --- inbound payloads ---

type JoinRoomEvent struct {
	RoomCode string `json:"roomCode" validate:"required"`
	Username string `json:"username" validate:"required"`
}

type AnnotationPayload struct {
	Type        string          `json:"type" validate:"required"`
	Page        int             `json:"page" validate:"gte=0"`
	Coordinates json.RawMessage `json:"coordinates" validate:"required"`
	Text        string          `json:"text"`
	Color       string          `json:"color"`
}

type AddAnnotationEvent struct {
	RoomCode   string            `json:"roomCode" validate:"required"`
	DocumentID string            `json:"documentId" validate:"required"`
	Annotation AnnotationPayload `json:"annotation" validate:"required"`
	Username   string            `json:"username" validate:"required"`
}

type UpdateAnnotationEvent struct {
	RoomCode     string                  `json:"roomCode" validate:"required"`
	DocumentID   string                  `json:"documentId" validate:"required"`
	AnnotationID string                  `json:"annotationId" validate:"required"`
	Updates      domain.AnnotationUpdate `json:"updates"`
	Username     string                  `json:"username" validate:"required"`
}

type DeleteAnnotationEvent struct {
	RoomCode     string `json:"roomCode" validate:"required"`
	DocumentID   string `json:"documentId" validate:"required"`
	AnnotationID string `json:"annotationId" validate:"required"`
}

type SendMessageEvent struct {
	RoomCode string `json:"roomCode" validate:"required"`
	Message  string `json:"message" validate:"required"`
	Username string `json:"username" validate:"required"`
}

// --- outbound payloads ---

// RoomJoined is the snapshot handed to a connection at join time, bringing
// it up to date without replaying history.
type RoomJoined struct {
	RoomCode         string                         `json:"roomCode"`
	Username         string                         `json:"username"`
	Documents        []domain.Document              `json:"documents"`
	Annotations      map[string][]domain.Annotation `json:"annotations"`
	ParticipantCount int                            `json:"participantCount"`
}

// UserPresence announces a join or leave to the rest of the room.
type UserPresence struct {
	Username         string `json:"username"`
	ParticipantCount int    `json:"participantCount"`
}

type AnnotationAdded struct {
	DocumentID string            `json:"documentId"`
	Annotation domain.Annotation `json:"annotation"`
}

type AnnotationUpdated struct {
	DocumentID   string            `json:"documentId"`
	AnnotationID string            `json:"annotationId"`
	Annotation   domain.Annotation `json:"annotation"`
}

type AnnotationDeleted struct {
	DocumentID   string `json:"documentId"`
	AnnotationID string `json:"annotationId"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}
