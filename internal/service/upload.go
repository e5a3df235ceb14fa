package service

import (
	"fmt"
	"strings"
)

// ValidateUpload checks the client-supplied file metadata before any bytes
// are written to disk. Only the name is inspected here; size limits are
// enforced by the transport layer.
func ValidateUpload(filename string) error {
	if filename == "" {
		return fmt.Errorf("%w: no file selected", ErrInvalidUpload)
	}
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		return fmt.Errorf("%w: only PDF files are allowed", ErrInvalidUpload)
	}
	return nil
}
