package service

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Harinid27/Studymate/internal/domain"
	"github.com/Harinid27/Studymate/internal/dto"
	"github.com/Harinid27/Studymate/internal/repository"
)

// Broadcaster is the fan-out port the coordinator emits through. The hub
// implements it; tests substitute a recorder.
type Broadcaster interface {
	// Emit delivers the event to every connection currently a member of the
	// room, skipping excludeConnID when non-empty. Delivery preserves
	// per-room submission order.
	Emit(roomCode, event string, payload any, excludeConnID string)
	// SendTo delivers the event to a single connection.
	SendTo(connID, event string, payload any)
}

// SessionCoordinator orchestrates every realtime event against the shared
// room state: it validates the room, mutates the relevant store and hands
// the resulting event to the broadcaster.
type SessionCoordinator struct {
	registry     *repository.RoomRegistry
	participants *repository.ParticipantTable
	documents    *repository.DocumentCatalog
	annotations  *repository.AnnotationStore
	broadcaster  Broadcaster
}

func NewSessionCoordinator(
	registry *repository.RoomRegistry,
	participants *repository.ParticipantTable,
	documents *repository.DocumentCatalog,
	annotations *repository.AnnotationStore,
	broadcaster Broadcaster,
) *SessionCoordinator {
	if registry == nil || participants == nil || documents == nil || annotations == nil {
		panic("all stores must be non-nil for SessionCoordinator")
	}
	if broadcaster == nil {
		panic("Broadcaster cannot be nil for SessionCoordinator")
	}
	return &SessionCoordinator{
		registry:     registry,
		participants: participants,
		documents:    documents,
		annotations:  annotations,
		broadcaster:  broadcaster,
	}
}

// HandleEvent dispatches one raw inbound websocket message for connID.
// Every error condition is per-event: it is reported to the sender only and
// leaves all room state untouched.
func (c *SessionCoordinator) HandleEvent(connID string, raw []byte) {
	logCtx := logrus.WithField("conn_id", connID)

	var env dto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logCtx.WithError(err).Warn("Dropping unparseable websocket message")
		c.sendError(connID, "Malformed message")
		return
	}
	logCtx = logCtx.WithField("event", env.Event)

	switch env.Event {
	case dto.EventJoinStudyRoom:
		var ev dto.JoinRoomEvent
		if !c.decode(connID, &env, &ev, logCtx) {
			return
		}
		c.join(connID, ev, logCtx)
	case dto.EventAddAnnotation:
		var ev dto.AddAnnotationEvent
		if !c.decode(connID, &env, &ev, logCtx) {
			return
		}
		c.addAnnotation(connID, ev, logCtx)
	case dto.EventUpdateAnnotation:
		var ev dto.UpdateAnnotationEvent
		if !c.decode(connID, &env, &ev, logCtx) {
			return
		}
		c.updateAnnotation(connID, ev, logCtx)
	case dto.EventDeleteAnnotation:
		var ev dto.DeleteAnnotationEvent
		if !c.decode(connID, &env, &ev, logCtx) {
			return
		}
		c.deleteAnnotation(connID, ev, logCtx)
	case dto.EventSendMessage:
		var ev dto.SendMessageEvent
		if !c.decode(connID, &env, &ev, logCtx) {
			return
		}
		c.sendMessage(connID, ev, logCtx)
	default:
		logCtx.Warn("Unknown event name")
		c.sendError(connID, "Unknown event: "+env.Event)
	}
}

// HandleDisconnect removes the connection from every room it joined and
// notifies the remaining members of each.
func (c *SessionCoordinator) HandleDisconnect(connID string) {
	departures := c.participants.Leave(connID)
	for _, d := range departures {
		logrus.WithFields(logrus.Fields{
			"conn_id":   connID,
			"room_code": d.RoomCode,
			"username":  d.Username,
			"remaining": d.Remaining,
		}).Info("Participant left room")
		c.broadcaster.Emit(d.RoomCode, dto.EventUserLeft, dto.UserPresence{
			Username:         d.Username,
			ParticipantCount: d.Remaining,
		}, "")
	}
}

func (c *SessionCoordinator) join(connID string, ev dto.JoinRoomEvent, logCtx *logrus.Entry) {
	if !c.registry.Exists(ev.RoomCode) {
		logCtx.WithField("room_code", ev.RoomCode).Warn("Join rejected: room not found")
		c.sendError(connID, "Room not found")
		return
	}

	c.participants.Join(ev.RoomCode, connID, ev.Username)
	c.registry.Touch(ev.RoomCode)
	count := c.participants.Count(ev.RoomCode)

	// Snapshot first so the joiner is up to date before any broadcast it
	// might observe.
	c.broadcaster.SendTo(connID, dto.EventRoomJoined, dto.RoomJoined{
		RoomCode:         ev.RoomCode,
		Username:         ev.Username,
		Documents:        c.documents.List(ev.RoomCode),
		Annotations:      c.annotations.AllForRoom(ev.RoomCode),
		ParticipantCount: count,
	})
	c.broadcaster.Emit(ev.RoomCode, dto.EventUserJoined, dto.UserPresence{
		Username:         ev.Username,
		ParticipantCount: count,
	}, connID)

	logCtx.WithFields(logrus.Fields{
		"room_code":         ev.RoomCode,
		"username":          ev.Username,
		"participant_count": count,
	}).Info("Participant joined room")
}

func (c *SessionCoordinator) addAnnotation(connID string, ev dto.AddAnnotationEvent, logCtx *logrus.Entry) {
	if !c.registry.Exists(ev.RoomCode) {
		c.sendError(connID, "Room not found")
		return
	}

	stored := c.annotations.Add(ev.RoomCode, ev.DocumentID, domain.Annotation{
		Type:        ev.Annotation.Type,
		Page:        ev.Annotation.Page,
		Coordinates: ev.Annotation.Coordinates,
		Text:        ev.Annotation.Text,
		Color:       ev.Annotation.Color,
		CreatedBy:   ev.Username,
	})
	c.registry.Touch(ev.RoomCode)

	c.broadcaster.Emit(ev.RoomCode, dto.EventAnnotationAdded, dto.AnnotationAdded{
		DocumentID: ev.DocumentID,
		Annotation: stored,
	}, "")
	logCtx.WithFields(logrus.Fields{
		"room_code":     ev.RoomCode,
		"document_id":   ev.DocumentID,
		"annotation_id": stored.ID,
	}).Debug("Annotation added")
}

func (c *SessionCoordinator) updateAnnotation(connID string, ev dto.UpdateAnnotationEvent, logCtx *logrus.Entry) {
	if !c.registry.Exists(ev.RoomCode) {
		c.sendError(connID, "Room not found")
		return
	}

	updated, err := c.annotations.Update(ev.RoomCode, ev.DocumentID, ev.AnnotationID, ev.Updates, ev.Username)
	if err != nil {
		if errors.Is(err, repository.ErrAnnotationNotFound) {
			// Silent no-op on an unknown id: no mutation, no broadcast, no
			// error back to the caller.
			logCtx.WithField("annotation_id", ev.AnnotationID).Debug("Update target not found, ignoring")
			return
		}
		logCtx.WithError(err).Error("Annotation update failed")
		c.sendError(connID, "Failed to update annotation")
		return
	}
	c.registry.Touch(ev.RoomCode)

	c.broadcaster.Emit(ev.RoomCode, dto.EventAnnotationUpdated, dto.AnnotationUpdated{
		DocumentID:   ev.DocumentID,
		AnnotationID: ev.AnnotationID,
		Annotation:   updated,
	}, "")
}

func (c *SessionCoordinator) deleteAnnotation(connID string, ev dto.DeleteAnnotationEvent, logCtx *logrus.Entry) {
	if !c.registry.Exists(ev.RoomCode) {
		c.sendError(connID, "Room not found")
		return
	}

	removed := c.annotations.Delete(ev.RoomCode, ev.DocumentID, ev.AnnotationID)
	if !removed {
		// Unlike the historical behavior, a miss broadcasts nothing: clients
		// never see a deletion event for an id that was never in the room.
		logCtx.WithField("annotation_id", ev.AnnotationID).Debug("Delete target not found, suppressing broadcast")
		return
	}
	c.registry.Touch(ev.RoomCode)

	c.broadcaster.Emit(ev.RoomCode, dto.EventAnnotationDeleted, dto.AnnotationDeleted{
		DocumentID:   ev.DocumentID,
		AnnotationID: ev.AnnotationID,
	}, "")
}

func (c *SessionCoordinator) sendMessage(connID string, ev dto.SendMessageEvent, logCtx *logrus.Entry) {
	if !c.registry.Exists(ev.RoomCode) {
		c.sendError(connID, "Room not found")
		return
	}
	c.registry.Touch(ev.RoomCode)

	// Stateless fan-out: nothing is stored, late joiners miss the message.
	c.broadcaster.Emit(ev.RoomCode, dto.EventMessageReceived, domain.ChatMessage{
		ID:        uuid.NewString(),
		Username:  ev.Username,
		Message:   ev.Message,
		Timestamp: time.Now().UTC(),
	}, "")
}

func (c *SessionCoordinator) decode(connID string, env *dto.Envelope, dst any, logCtx *logrus.Entry) bool {
	if err := env.DecodeData(dst); err != nil {
		logCtx.WithError(err).Warn("Rejecting invalid event payload")
		c.sendError(connID, "Invalid payload for event: "+env.Event)
		return false
	}
	return true
}

func (c *SessionCoordinator) sendError(connID, message string) {
	c.broadcaster.SendTo(connID, dto.EventError, dto.ErrorEvent{Message: message})
}
