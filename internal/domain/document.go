package domain

import "time"

// Document describes a shared PDF. Only metadata is tracked here; the bytes
// live in the upload folder and are addressed through URL.
type Document struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	UploadedBy   string    `json:"uploadedBy"`
	UploadedAt   time.Time `json:"uploadedAt"`
	URL          string    `json:"url"`
}
