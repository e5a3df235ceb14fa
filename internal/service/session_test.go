package service_test

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harinid27/Studymate/internal/domain"
	"github.com/Harinid27/Studymate/internal/dto"
	"github.com/Harinid27/Studymate/internal/repository"
	"github.com/Harinid27/Studymate/internal/service"
)

type emitted struct {
	Room    string
	Event   string
	Payload any
	Exclude string
}

type direct struct {
	ConnID  string
	Event   string
	Payload any
}

// recorderBroadcaster captures everything the coordinator emits.
type recorderBroadcaster struct {
	mu     sync.Mutex
	emits  []emitted
	sends  []direct
}

func (r *recorderBroadcaster) Emit(roomCode, event string, payload any, excludeConnID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, emitted{Room: roomCode, Event: event, Payload: payload, Exclude: excludeConnID})
}

func (r *recorderBroadcaster) SendTo(connID, event string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, direct{ConnID: connID, Event: event, Payload: payload})
}

func (r *recorderBroadcaster) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits, r.sends = nil, nil
}

type fixture struct {
	registry     *repository.RoomRegistry
	participants *repository.ParticipantTable
	documents    *repository.DocumentCatalog
	annotations  *repository.AnnotationStore
	broadcaster  *recorderBroadcaster
	coordinator  *service.SessionCoordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry:     repository.NewRoomRegistry(8),
		participants: repository.NewParticipantTable(),
		documents:    repository.NewDocumentCatalog(),
		annotations:  repository.NewAnnotationStore(),
		broadcaster:  &recorderBroadcaster{},
	}
	f.coordinator = service.NewSessionCoordinator(f.registry, f.participants, f.documents, f.annotations, f.broadcaster)
	return f
}

func (f *fixture) createRoom(t *testing.T, creator string) string {
	t.Helper()
	room, err := f.registry.Create(creator, "")
	require.NoError(t, err)
	return room.Code
}

func envelope(t *testing.T, event string, data any) []byte {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	raw, err := json.Marshal(dto.Envelope{Event: event, Data: payload})
	require.NoError(t, err)
	return raw
}

func TestSessionCoordinator_JoinUnknownRoom(t *testing.T) {
	f := newFixture(t)

	f.coordinator.HandleEvent("conn-1", envelope(t, dto.EventJoinStudyRoom, dto.JoinRoomEvent{
		RoomCode: "MISSING1",
		Username: "alice",
	}))

	require.Len(t, f.broadcaster.sends, 1, "error goes to the requester only")
	assert.Equal(t, dto.EventError, f.broadcaster.sends[0].Event)
	assert.Equal(t, dto.ErrorEvent{Message: "Room not found"}, f.broadcaster.sends[0].Payload)
	assert.Empty(t, f.broadcaster.emits, "no broadcast on a failed join")
	assert.Equal(t, 0, f.participants.Count("MISSING1"))
}

func TestSessionCoordinator_JoinSendsSnapshotThenNotifiesOthers(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t, "alice")

	f.coordinator.HandleEvent("conn-alice", envelope(t, dto.EventJoinStudyRoom, dto.JoinRoomEvent{
		RoomCode: code, Username: "alice",
	}))

	require.Len(t, f.broadcaster.sends, 1)
	snapshot, ok := f.broadcaster.sends[0].Payload.(dto.RoomJoined)
	require.True(t, ok)
	assert.Equal(t, code, snapshot.RoomCode)
	assert.Equal(t, 1, snapshot.ParticipantCount)
	assert.Empty(t, snapshot.Documents)
	assert.Empty(t, snapshot.Annotations)

	require.Len(t, f.broadcaster.emits, 1)
	joined := f.broadcaster.emits[0]
	assert.Equal(t, dto.EventUserJoined, joined.Event)
	assert.Equal(t, "conn-alice", joined.Exclude, "the joiner must not hear its own user_joined")
	assert.Equal(t, dto.UserPresence{Username: "alice", ParticipantCount: 1}, joined.Payload)

	// Second participant: counts reflect the live table.
	f.broadcaster.reset()
	f.coordinator.HandleEvent("conn-bob", envelope(t, dto.EventJoinStudyRoom, dto.JoinRoomEvent{
		RoomCode: code, Username: "bob",
	}))
	require.Len(t, f.broadcaster.emits, 1)
	assert.Equal(t, dto.UserPresence{Username: "bob", ParticipantCount: 2}, f.broadcaster.emits[0].Payload)
}

func TestSessionCoordinator_MalformedPayloadRejected(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t, "alice")

	// Missing username fails schema validation before any state changes.
	f.coordinator.HandleEvent("conn-1", envelope(t, dto.EventJoinStudyRoom, map[string]string{
		"roomCode": code,
	}))

	require.Len(t, f.broadcaster.sends, 1)
	assert.Equal(t, dto.EventError, f.broadcaster.sends[0].Event)
	assert.Equal(t, 0, f.participants.Count(code))
}

func TestSessionCoordinator_UnknownEvent(t *testing.T) {
	f := newFixture(t)

	f.coordinator.HandleEvent("conn-1", []byte(`{"event":"teleport","data":{}}`))

	require.Len(t, f.broadcaster.sends, 1)
	assert.Equal(t, dto.EventError, f.broadcaster.sends[0].Event)
}

func TestSessionCoordinator_AddAnnotationBroadcastsToWholeRoom(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t, "alice")
	f.coordinator.HandleEvent("conn-bob", envelope(t, dto.EventJoinStudyRoom, dto.JoinRoomEvent{RoomCode: code, Username: "bob"}))
	f.broadcaster.reset()

	f.coordinator.HandleEvent("conn-bob", envelope(t, dto.EventAddAnnotation, dto.AddAnnotationEvent{
		RoomCode:   code,
		DocumentID: "doc1",
		Username:   "bob",
		Annotation: dto.AnnotationPayload{
			Type:        "highlight",
			Page:        0,
			Coordinates: json.RawMessage(`{"x":10,"y":20,"w":100,"h":12}`),
		},
	}))

	require.Len(t, f.broadcaster.emits, 1)
	added := f.broadcaster.emits[0]
	assert.Equal(t, dto.EventAnnotationAdded, added.Event)
	assert.Empty(t, added.Exclude, "annotation_added goes to the author too")

	payload, ok := added.Payload.(dto.AnnotationAdded)
	require.True(t, ok)
	assert.Equal(t, "doc1", payload.DocumentID)
	assert.NotEmpty(t, payload.Annotation.ID)
	assert.Equal(t, "bob", payload.Annotation.CreatedBy)
	assert.Equal(t, domain.DefaultAnnotationColor, payload.Annotation.Color)

	stored := f.annotations.AllForRoom(code)["doc1"]
	require.Len(t, stored, 1)
	assert.Equal(t, payload.Annotation.ID, stored[0].ID)
}

func TestSessionCoordinator_UpdateIgnoresDisallowedFields(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t, "alice")
	a := f.annotations.Add(code, "doc1", domain.Annotation{Type: "highlight", CreatedBy: "bob"})

	// ownerId is not in the allow-list and must be dropped silently.
	raw := []byte(`{"event":"update_annotation","data":{` +
		`"roomCode":"` + code + `","documentId":"doc1","annotationId":"` + a.ID + `",` +
		`"updates":{"color":"#00ff00","ownerId":"x"},"username":"alice"}}`)
	f.coordinator.HandleEvent("conn-alice", raw)

	require.Len(t, f.broadcaster.emits, 1)
	updated, ok := f.broadcaster.emits[0].Payload.(dto.AnnotationUpdated)
	require.True(t, ok)
	assert.Equal(t, "#00ff00", updated.Annotation.Color)
	assert.Equal(t, "alice", updated.Annotation.ModifiedBy)

	// The stored record has no trace of the unknown key either: its shape is
	// the domain struct, so a stray field simply cannot exist on it.
	encoded, err := json.Marshal(f.annotations.AllForRoom(code)["doc1"][0])
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "ownerId")
}

func TestSessionCoordinator_UpdateUnknownAnnotationIsSilent(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t, "alice")
	f.annotations.Add(code, "doc1", domain.Annotation{Type: "highlight", CreatedBy: "bob"})
	before := f.annotations.AllForRoom(code)

	f.coordinator.HandleEvent("conn-alice", envelope(t, dto.EventUpdateAnnotation, dto.UpdateAnnotationEvent{
		RoomCode:     code,
		DocumentID:   "doc1",
		AnnotationID: "no-such-id",
		Username:     "alice",
	}))

	assert.Empty(t, f.broadcaster.emits, "no annotation_updated for an unknown id")
	assert.Empty(t, f.broadcaster.sends, "and no error either, by design")
	assert.Equal(t, before, f.annotations.AllForRoom(code))
}

func TestSessionCoordinator_DeleteAnnotation(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t, "alice")
	a := f.annotations.Add(code, "doc1", domain.Annotation{Type: "highlight", CreatedBy: "bob"})
	keep := f.annotations.Add(code, "doc1", domain.Annotation{Type: "note", CreatedBy: "bob"})

	f.coordinator.HandleEvent("conn-alice", envelope(t, dto.EventDeleteAnnotation, dto.DeleteAnnotationEvent{
		RoomCode: code, DocumentID: "doc1", AnnotationID: a.ID,
	}))

	require.Len(t, f.broadcaster.emits, 1)
	assert.Equal(t, dto.EventAnnotationDeleted, f.broadcaster.emits[0].Event)
	assert.Equal(t, dto.AnnotationDeleted{DocumentID: "doc1", AnnotationID: a.ID}, f.broadcaster.emits[0].Payload)

	remaining := f.annotations.AllForRoom(code)["doc1"]
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)
}

func TestSessionCoordinator_DeleteMissSuppressesBroadcast(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t, "alice")

	f.coordinator.HandleEvent("conn-alice", envelope(t, dto.EventDeleteAnnotation, dto.DeleteAnnotationEvent{
		RoomCode: code, DocumentID: "doc1", AnnotationID: "never-existed",
	}))

	assert.Empty(t, f.broadcaster.emits, "phantom deletions are not announced")
}

func TestSessionCoordinator_SendMessage(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t, "alice")

	f.coordinator.HandleEvent("conn-alice", envelope(t, dto.EventSendMessage, dto.SendMessageEvent{
		RoomCode: code, Message: "hello room", Username: "alice",
	}))

	require.Len(t, f.broadcaster.emits, 1)
	assert.Equal(t, dto.EventMessageReceived, f.broadcaster.emits[0].Event)
	msg, ok := f.broadcaster.emits[0].Payload.(domain.ChatMessage)
	require.True(t, ok)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, "hello room", msg.Message)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestSessionCoordinator_DisconnectNotifiesEveryJoinedRoom(t *testing.T) {
	f := newFixture(t)
	codeA := f.createRoom(t, "alice")
	codeB := f.createRoom(t, "alice")
	f.coordinator.HandleEvent("conn-alice", envelope(t, dto.EventJoinStudyRoom, dto.JoinRoomEvent{RoomCode: codeA, Username: "alice"}))
	f.coordinator.HandleEvent("conn-alice", envelope(t, dto.EventJoinStudyRoom, dto.JoinRoomEvent{RoomCode: codeB, Username: "alice"}))
	f.coordinator.HandleEvent("conn-bob", envelope(t, dto.EventJoinStudyRoom, dto.JoinRoomEvent{RoomCode: codeA, Username: "bob"}))
	f.broadcaster.reset()

	f.coordinator.HandleDisconnect("conn-alice")

	require.Len(t, f.broadcaster.emits, 2)
	byRoom := make(map[string]dto.UserPresence)
	for _, e := range f.broadcaster.emits {
		require.Equal(t, dto.EventUserLeft, e.Event)
		byRoom[e.Room] = e.Payload.(dto.UserPresence)
	}
	assert.Equal(t, dto.UserPresence{Username: "alice", ParticipantCount: 1}, byRoom[codeA])
	assert.Equal(t, dto.UserPresence{Username: "alice", ParticipantCount: 0}, byRoom[codeB])

	assert.Equal(t, 1, f.participants.Count(codeA))
	assert.Equal(t, 0, f.participants.Count(codeB))
}

// Full scenario: alice creates and joins, bob joins, bob annotates, bob
// disconnects.
func TestSessionCoordinator_CollaborationScenario(t *testing.T) {
	f := newFixture(t)
	code := f.createRoom(t, "alice")

	f.coordinator.HandleEvent("conn-alice", envelope(t, dto.EventJoinStudyRoom, dto.JoinRoomEvent{RoomCode: code, Username: "alice"}))
	require.Len(t, f.broadcaster.sends, 1)
	snapshot := f.broadcaster.sends[0].Payload.(dto.RoomJoined)
	assert.Equal(t, 1, snapshot.ParticipantCount)
	assert.Empty(t, snapshot.Documents)
	assert.Empty(t, snapshot.Annotations)

	f.broadcaster.reset()
	f.coordinator.HandleEvent("conn-bob", envelope(t, dto.EventJoinStudyRoom, dto.JoinRoomEvent{RoomCode: code, Username: "bob"}))
	require.Len(t, f.broadcaster.emits, 1)
	assert.Equal(t, dto.UserPresence{Username: "bob", ParticipantCount: 2}, f.broadcaster.emits[0].Payload)

	f.broadcaster.reset()
	f.coordinator.HandleEvent("conn-bob", envelope(t, dto.EventAddAnnotation, dto.AddAnnotationEvent{
		RoomCode:   code,
		DocumentID: "doc1",
		Username:   "bob",
		Annotation: dto.AnnotationPayload{Type: "highlight", Page: 0, Coordinates: json.RawMessage(`{"x":0,"y":0}`)},
	}))
	require.Len(t, f.broadcaster.emits, 1)
	added := f.broadcaster.emits[0].Payload.(dto.AnnotationAdded)
	assert.NotEmpty(t, added.Annotation.ID)

	f.broadcaster.reset()
	f.coordinator.HandleDisconnect("conn-bob")
	require.Len(t, f.broadcaster.emits, 1)
	assert.Equal(t, dto.EventUserLeft, f.broadcaster.emits[0].Event)
	assert.Equal(t, dto.UserPresence{Username: "bob", ParticipantCount: 1}, f.broadcaster.emits[0].Payload)
}
