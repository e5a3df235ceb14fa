package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Harinid27/Studymate/internal/service"
)

// RoomHandler exposes room creation, the pre-join validity check and the
// status listing. The actual join happens over the websocket surface.
type RoomHandler struct {
	rooms *service.RoomService
}

func NewRoomHandler(rooms *service.RoomService) *RoomHandler {
	if rooms == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{rooms: rooms}
}

type CreateRoomRequest struct {
	Username string `json:"username"`
}

type CreateRoomResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"room_code"`
	Message  string `json:"message"`
}

// CreateRoom allocates a new study room for the requesting user.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	// An empty body is fine; the creator just becomes Anonymous.
	_ = c.ShouldBindJSON(&req)
	if req.Username == "" {
		req.Username = "Anonymous"
	}

	room, err := h.rooms.CreateRoom(req.Username)
	if err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, CreateRoomResponse{
		Success:  true,
		RoomCode: room.Code,
		Message:  fmt.Sprintf("Room %s created successfully", room.Code),
	})
}

type JoinRoomRequest struct {
	RoomCode string `json:"room_code" binding:"required"`
	Username string `json:"username"`
}

type JoinRoomResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"room_code"`
	Message  string `json:"message"`
}

// JoinRoom checks that the room code is valid before the client opens its
// websocket and emits join_study_room.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.JoinRoom: invalid input")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: room_code is required")
		return
	}

	code := strings.ToUpper(req.RoomCode)
	if err := h.rooms.ValidateRoom(code); err != nil {
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, JoinRoomResponse{
		Success:  true,
		RoomCode: code,
		Message:  fmt.Sprintf("Ready to join room %s", code),
	})
}

// Status reports room metadata with live participant and document counts.
func (h *RoomHandler) Status(c *gin.Context) {
	code := strings.ToUpper(c.Param("code"))
	status, err := h.rooms.Status(code)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, status)
}
