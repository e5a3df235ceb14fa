package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Harinid27/Studymate/internal/dto"
)

// WebSocket keepalive constants shared by hub and client.
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Annotation coordinate payloads
	// are small, so this is generous.
	maxMessageSize = 8192
)

// Handler consumes inbound connection traffic. The SessionCoordinator
// implements it.
type Handler interface {
	HandleEvent(connID string, raw []byte)
	HandleDisconnect(connID string)
}

// RoomMembers resolves which connections belong to a room at emit time.
// The ParticipantTable implements it, so membership has a single source of
// truth and the hub never duplicates join bookkeeping.
type RoomMembers interface {
	ConnectionIDs(roomCode string) []string
}

type hubMessage struct {
	kind   string // "register", "unregister", "event"
	client *Client
	raw    []byte
}

// Hub owns the live websocket connections and fans events out to rooms.
// Inbound messages are processed one at a time on the Run loop, so
// read-modify-write sequences triggered by websocket events are serialized
// without per-event locking.
type Hub struct {
	messageChan chan hubMessage
	quit        chan struct{}

	clientsMu sync.RWMutex
	clients   map[string]*Client

	// emitMu serializes fan-out: two Emit calls for the same room enqueue to
	// every member in submission order, so no connection observes B before A.
	emitMu sync.Mutex

	members RoomMembers
	handler Handler
}

func NewHub(members RoomMembers) *Hub {
	if members == nil {
		panic("RoomMembers cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan hubMessage, 512),
		quit:        make(chan struct{}),
		clients:     make(map[string]*Client),
		members:     members,
	}
}

// SetHandler wires the inbound event consumer. Must be called before Run;
// split from the constructor because the coordinator needs the hub as its
// broadcaster.
func (h *Hub) SetHandler(handler Handler) {
	if handler == nil {
		panic("Handler cannot be nil for Hub")
	}
	h.handler = handler
}

// Run processes hub messages until Stop is called. It should run in its own
// goroutine. Events are handled synchronously here: handing them to worker
// goroutines would break the per-room delivery ordering guarantee.
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	if h.handler == nil {
		panic("Hub.Run called before SetHandler")
	}
	log.Info("Hub is running")

	for {
		select {
		case msg := <-h.messageChan:
			switch msg.kind {
			case "register":
				h.registerClient(msg.client)
			case "unregister":
				h.unregisterClient(msg.client)
			case "event":
				h.handler.HandleEvent(msg.client.ID(), msg.raw)
			default:
				log.Warnf("Unknown hub message kind: %s", msg.kind)
			}
		case <-h.quit:
			log.Info("Hub is shutting down")
			return
		}
	}
}

// Stop terminates the Run loop.
func (h *Hub) Stop() {
	close(h.quit)
}

// Register queues the client for registration with the hub loop.
func (h *Hub) Register(c *Client) {
	h.messageChan <- hubMessage{kind: "register", client: c}
}

func (h *Hub) registerClient(c *Client) {
	if c == nil {
		logrus.Error("Hub: attempted to register a nil client")
		return
	}
	h.clientsMu.Lock()
	h.clients[c.ID()] = c
	h.clientsMu.Unlock()
	logrus.WithField("conn_id", c.ID()).Info("Client registered to hub")
}

func (h *Hub) unregisterClient(c *Client) {
	if c == nil {
		return
	}
	h.clientsMu.Lock()
	_, known := h.clients[c.ID()]
	if known {
		delete(h.clients, c.ID())
		close(c.send)
	}
	h.clientsMu.Unlock()
	if !known {
		return
	}
	logrus.WithField("conn_id", c.ID()).Info("Client unregistered from hub")

	// Room bookkeeping and user_left broadcasts happen after the client is
	// gone from the connection table, so the leaver never hears its own
	// departure.
	h.handler.HandleDisconnect(c.ID())
}

// Emit delivers the event to every connection currently a member of the
// room per the participant table, skipping excludeConnID when non-empty.
// There is no replay: a connection that is not live at emit time never
// receives the event.
func (h *Hub) Emit(roomCode, event string, payload any, excludeConnID string) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to marshal broadcast payload")
		return
	}

	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	ids := h.members.ConnectionIDs(roomCode)

	// The read lock stays held across the enqueue loop: unregister closes a
	// client's send queue under the write lock, so enqueue and close can never
	// interleave. enqueue is non-blocking, so the lock is held only briefly.
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, id := range ids {
		if id == excludeConnID {
			continue
		}
		if c, ok := h.clients[id]; ok {
			c.enqueue(data)
		}
	}
}

// SendTo delivers the event to a single connection.
func (h *Hub) SendTo(connID, event string, payload any) {
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to marshal direct payload")
		return
	}

	h.emitMu.Lock()
	defer h.emitMu.Unlock()

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	c.enqueue(data)
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dto.Envelope{Event: event, Data: data})
}
