package services

import (
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmhub/internal/models"
)

func newRoomService() (*RoomService, *recorder) {
	rec := &recorder{}
	return NewRoomService(newStore(), rec, quietLogger()), rec
}

func joinReq(id, model string) *models.JoinRoomRequest {
	return &models.JoinRoomRequest{
		ID:       id,
		Nickname: "bot",
		Model:    model,
		Endpoint: "http://localhost:11434/",
	}
}

func TestCreateRoom(t *testing.T) {
	svc, rec := newRoomService()

	_, err := svc.CreateRoom(&models.CreateRoomRequest{Name: " "})
	assert.True(t, errors.Is(err, ErrValidation))

	resp, err := svc.CreateRoom(&models.CreateRoomRequest{Name: "Test Room"})
	require.NoError(t, err)
	assert.Len(t, resp.Room.Code, 6)
	assert.NotEmpty(t, resp.HostID)
	assert.Equal(t, resp.HostID, resp.Room.HostID)

	_, err = svc.CreateRoom(&models.CreateRoomRequest{Name: "long", Password: strings.Repeat("x", 80)})
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "Password must be at most 72 bytes", err.Error())

	created := rec.ofType(models.EventRoomCreated)
	require.Len(t, created, 1)
	assert.Equal(t, "", created[0].room, "room:created is unscoped")
}

func TestJoinRoom(t *testing.T) {
	svc, rec := newRoomService()
	open, err := svc.CreateRoom(&models.CreateRoomRequest{Name: "open"})
	require.NoError(t, err)
	locked, err := svc.CreateRoom(&models.CreateRoomRequest{Name: "locked", Password: "secret"})
	require.NoError(t, err)

	_, err = svc.JoinRoom("NOPE00", joinReq("p1", "llama3"))
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = svc.JoinRoom(open.Room.Code, &models.JoinRoomRequest{ID: "p1"})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = svc.JoinRoom(locked.Room.Code, joinReq("p1", "llama3"))
	assert.True(t, errors.Is(err, ErrUnauthorized))

	bad := joinReq("p1", "llama3")
	bad.Password = "wrong"
	_, err = svc.JoinRoom(locked.Room.Code, bad)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	good := joinReq("p1", "llama3")
	good.Password = "secret"
	_, err = svc.JoinRoom(locked.Room.Code, good)
	require.NoError(t, err)

	resp, err := svc.JoinRoom(open.Room.Code, joinReq("p1", "llama3"))
	require.NoError(t, err)
	assert.Equal(t, "p1", resp.Participant.ID)
	assert.Equal(t, open.Room.ID, resp.RoomID)
	assert.Equal(t, models.StatusOnline, resp.Participant.Status)
	assert.Equal(t, "http://localhost:11434", resp.Participant.Endpoint)

	joined := rec.ofType(models.EventParticipantJoined)
	require.Len(t, joined, 2)
	assert.Equal(t, open.Room.Code, joined[1].room)
}

func TestJoinRoom_LowercaseCode(t *testing.T) {
	svc, _ := newRoomService()
	room, err := svc.CreateRoom(&models.CreateRoomRequest{Name: "room"})
	require.NoError(t, err)

	resp, err := svc.JoinRoom(strings.ToLower(room.Room.Code), joinReq("p1", "m"))
	require.NoError(t, err)
	assert.Equal(t, room.Room.ID, resp.RoomID)
}

func TestLeaveRoom(t *testing.T) {
	svc, rec := newRoomService()
	room, err := svc.CreateRoom(&models.CreateRoomRequest{Name: "room"})
	require.NoError(t, err)
	_, err = svc.JoinRoom(room.Room.Code, joinReq("p1", "m"))
	require.NoError(t, err)

	require.NoError(t, svc.LeaveRoom(room.Room.Code, "p1"))
	assert.True(t, errors.Is(svc.LeaveRoom(room.Room.Code, "p1"), ErrNotFound))
	assert.True(t, errors.Is(svc.LeaveRoom("NOPE00", "p1"), ErrNotFound))

	left := rec.ofType(models.EventParticipantLeft)
	require.Len(t, left, 1)
	assert.Equal(t, models.ParticipantLeft{ParticipantID: "p1"}, left[0].event)
}

func TestHeartbeat(t *testing.T) {
	svc, _ := newRoomService()
	room, err := svc.CreateRoom(&models.CreateRoomRequest{Name: "room"})
	require.NoError(t, err)
	_, err = svc.JoinRoom(room.Room.Code, joinReq("p1", "m"))
	require.NoError(t, err)

	assert.True(t, errors.Is(svc.Heartbeat(room.Room.Code, ""), ErrValidation))
	assert.True(t, errors.Is(svc.Heartbeat(room.Room.Code, "ghost"), ErrNotFound))
	assert.True(t, errors.Is(svc.Heartbeat("NOPE00", "p1"), ErrNotFound))

	svc.store.UpdateParticipantStatus(room.Room.ID, "p1", models.StatusOffline)
	require.NoError(t, svc.Heartbeat(room.Room.Code, "p1"))

	p, ok := svc.store.GetParticipant(room.Room.ID, "p1")
	require.True(t, ok)
	assert.Equal(t, models.StatusOnline, p.Status)
}

func TestListModels_OnlineOnly(t *testing.T) {
	svc, rec := newRoomService()
	room, err := svc.CreateRoom(&models.CreateRoomRequest{Name: "Test Room"})
	require.NoError(t, err)
	_, err = svc.JoinRoom(room.Room.Code, &models.JoinRoomRequest{
		ID: "p1", Nickname: "bot", Model: "llama3", Endpoint: "http://localhost:11434",
	})
	require.NoError(t, err)

	list, err := svc.ListModels(room.Room.Code)
	require.NoError(t, err)
	assert.Equal(t, "list", list.Object)
	require.Len(t, list.Data, 1)
	assert.Equal(t, "p1", list.Data[0].ID)
	assert.Equal(t, "model", list.Data[0].Object)
	assert.Equal(t, "bot", list.Data[0].OwnedBy)
	assert.Equal(t, "llama3", list.Data[0].Hub.Model)

	monitor := NewLivenessMonitor(svc.store, rec, 10*time.Second, quietLogger())
	stale, err := monitor.Sweep(time.Now().Add(31 * time.Second))
	require.NoError(t, err)
	require.Len(t, stale, 1)

	list, err = svc.ListModels(room.Room.Code)
	require.NoError(t, err)
	assert.Empty(t, list.Data)
	assert.NotNil(t, list.Data)

	participants, err := svc.GetParticipants(room.Room.Code)
	require.NoError(t, err)
	assert.Len(t, participants, 1, "staleness never removes a participant")

	_, err = svc.ListModels("NOPE00")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListRooms(t *testing.T) {
	svc, _ := newRoomService()
	room, err := svc.CreateRoom(&models.CreateRoomRequest{Name: "room"})
	require.NoError(t, err)
	_, err = svc.JoinRoom(room.Room.Code, joinReq("p1", "m"))
	require.NoError(t, err)

	rooms := svc.ListRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, 1, rooms[0].ParticipantCount)
}
