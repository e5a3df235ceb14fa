package http

import (
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Harinid27/Studymate/internal/domain"
	"github.com/Harinid27/Studymate/internal/dto"
	"github.com/Harinid27/Studymate/internal/repository"
	"github.com/Harinid27/Studymate/internal/service"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// UploadHandler accepts PDF uploads into a room. It is the upload
// collaborator of the realtime core: it stores the bytes on disk, appends
// the metadata to the DocumentCatalog and triggers the pdf_uploaded
// broadcast itself.
type UploadHandler struct {
	rooms       *service.RoomService
	catalog     *repository.DocumentCatalog
	broadcaster service.Broadcaster
	uploadDir   string
	maxBytes    int64
}

func NewUploadHandler(
	rooms *service.RoomService,
	catalog *repository.DocumentCatalog,
	broadcaster service.Broadcaster,
	uploadDir string,
	maxBytes int64,
) *UploadHandler {
	if rooms == nil || catalog == nil || broadcaster == nil {
		panic("rooms, catalog and broadcaster must be non-nil for UploadHandler")
	}
	return &UploadHandler{
		rooms:       rooms,
		catalog:     catalog,
		broadcaster: broadcaster,
		uploadDir:   uploadDir,
		maxBytes:    maxBytes,
	}
}

type UploadResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	PDF     domain.Document `json:"pdf"`
}

// UploadPDF handles the multipart upload. The file is written to disk
// before the catalog is touched, so no room state is held across disk I/O.
func (h *UploadHandler) UploadPDF(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "No file provided")
		return
	}

	code := strings.ToUpper(c.PostForm("room_code"))
	if code == "" || h.rooms.ValidateRoom(code) != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid room code")
		return
	}

	username := c.PostForm("username")
	if username == "" {
		username = "Anonymous"
	}

	if err := service.ValidateUpload(fileHeader.Filename); err != nil {
		HandleServiceError(c, err)
		return
	}
	if h.maxBytes > 0 && fileHeader.Size > h.maxBytes {
		ErrorResponse(c, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	filename := sanitizeFilename(fileHeader.Filename)
	storedName := time.Now().UTC().Format("20060102_150405_") + filename
	if err := c.SaveUploadedFile(fileHeader, filepath.Join(h.uploadDir, storedName)); err != nil {
		logrus.WithError(err).WithField("room_code", code).Error("Failed to save uploaded file")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to store file")
		return
	}

	doc := h.catalog.Add(code, domain.Document{
		ID:           uuid.NewString(),
		Filename:     storedName,
		OriginalName: filename,
		UploadedBy:   username,
		UploadedAt:   time.Now().UTC(),
		URL:          "/uploads/" + storedName,
	})
	h.rooms.Touch(code)

	h.broadcaster.Emit(code, dto.EventPDFUploaded, doc, "")
	logrus.WithFields(logrus.Fields{
		"room_code":   code,
		"document_id": doc.ID,
		"filename":    storedName,
		"uploaded_by": username,
	}).Info("PDF uploaded to room")

	SuccessResponse(c, http.StatusOK, UploadResponse{
		Success: true,
		Message: "PDF uploaded successfully",
		PDF:     doc,
	})
}

// sanitizeFilename strips directory components and anything outside a safe
// character set, mirroring werkzeug's secure_filename behavior.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = fmt.Sprintf("file_%d.pdf", time.Now().UnixNano())
	}
	return name
}
