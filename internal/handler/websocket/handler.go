package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Harinid27/Studymate/internal/hub"
)

// WebSocketHandler upgrades connections and registers them with the hub.
// A fresh connection is not associated with any room; rooms are joined by
// emitting join_study_room over the socket.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: restrict origins in production deployments.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub: h,
	}
}

// HandleConnection upgrades the request and starts the client pumps.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := hub.NewClient(h.hub, conn)
	h.hub.Register(client)
	client.Run()
	logrus.WithField("conn_id", client.ID()).Info("WebSocket connection established")
}
