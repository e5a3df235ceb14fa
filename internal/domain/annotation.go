package domain

import (
	"encoding/json"
	"time"
)

// DefaultAnnotationColor is applied when a client adds an annotation without
// an explicit color.
const DefaultAnnotationColor = "#ffff00"

// Annotation is a user-authored markup record attached to a page of a shared
// document. Coordinates are an opaque geometry payload owned by the client.
type Annotation struct {
	ID          string          `json:"id"`
	DocumentID  string          `json:"documentId"`
	Type        string          `json:"type"`
	Page        int             `json:"page"`
	Coordinates json.RawMessage `json:"coordinates"`
	Text        string          `json:"text"`
	Color       string          `json:"color"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	ModifiedBy  string          `json:"modifiedBy,omitempty"`
	ModifiedAt  *time.Time      `json:"modifiedAt,omitempty"`
}

// AnnotationUpdate carries the fields an update is allowed to touch.
// Anything else a client puts in the updates object is dropped during
// decoding and never reaches the store.
type AnnotationUpdate struct {
	Text        *string         `json:"text"`
	Color       *string         `json:"color"`
	Coordinates json.RawMessage `json:"coordinates"`
}
