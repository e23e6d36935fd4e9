package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"llmhub/internal/auth"
	"llmhub/internal/models"
	"llmhub/internal/registry"
)

// Broadcaster publishes events to observers, optionally scoped to a room code.
type Broadcaster interface {
	Broadcast(ev models.Event, roomCode string)
}

type RoomService struct {
	store registry.Store
	bus   Broadcaster
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewRoomService(store registry.Store, bus Broadcaster, log logrus.FieldLogger) *RoomService {
	return &RoomService{
		store: store,
		bus:   bus,
		log:   log.WithField("component", "rooms"),
		now:   time.Now,
	}
}

func (s *RoomService) CreateRoom(req *models.CreateRoomRequest) (*models.CreateRoomResponse, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}

	hostID := uuid.NewString()
	room, err := s.store.Create(req.Name, hostID, req.Password)
	if err != nil {
		if errors.Is(err, registry.ErrEmptyName) {
			return nil, ErrNameRequired
		}
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return nil, Validationf("Password must be at most %d bytes", auth.MaxPasswordBytes)
		}
		return nil, errors.Wrap(err, "create room")
	}

	s.log.WithFields(logrus.Fields{"room": room.Code, "protected": room.Protected}).Info("room created")
	s.bus.Broadcast(models.RoomCreated{Room: room}, "")

	return &models.CreateRoomResponse{Room: room, HostID: hostID}, nil
}

func (s *RoomService) ListRooms() []models.RoomSummary {
	return s.store.ListWithParticipantCount()
}

func (s *RoomService) GetRoom(code string) (models.Room, error) {
	room, ok := s.store.GetByCode(code)
	if !ok {
		return models.Room{}, ErrRoomNotFound
	}
	return room, nil
}

func (s *RoomService) JoinRoom(code string, req *models.JoinRoomRequest) (*models.JoinRoomResponse, error) {
	room, err := s.GetRoom(code)
	if err != nil {
		return nil, err
	}

	if req.ID == "" || req.Nickname == "" || req.Model == "" || req.Endpoint == "" {
		return nil, ErrMissingJoinFields
	}

	allowed, err := s.store.ValidatePassword(room.ID, req.Password)
	if err != nil {
		if errors.Is(err, registry.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, errors.Wrap(err, "validate password")
	}
	if !allowed {
		s.log.WithField("room", room.Code).Warn("join rejected: invalid password")
		return nil, ErrInvalidPassword
	}

	now := s.now()
	p := models.Participant{
		ID:       req.ID,
		Nickname: req.Nickname,
		Model:    req.Model,
		Endpoint: strings.TrimRight(req.Endpoint, "/"),
		Status:   models.StatusOnline,
		JoinedAt: now,
		LastSeen: now,
	}
	if req.Specs != nil {
		p.Specs = *req.Specs
	}
	if req.Config != nil {
		p.Config = *req.Config
	}

	// The room can disappear between lookup and insert.
	if !s.store.AddParticipant(room.ID, p) {
		return nil, ErrRoomNotFound
	}

	s.log.WithFields(logrus.Fields{
		"room":        room.Code,
		"participant": p.ID,
		"model":       p.Model,
	}).Info("participant joined")
	s.bus.Broadcast(models.ParticipantJoined{Participant: p}, room.Code)

	return &models.JoinRoomResponse{Participant: p, RoomID: room.ID}, nil
}

func (s *RoomService) LeaveRoom(code, participantID string) error {
	room, err := s.GetRoom(code)
	if err != nil {
		return err
	}

	if !s.store.RemoveParticipant(room.ID, participantID) {
		return ErrParticipantNotFound
	}

	s.log.WithFields(logrus.Fields{"room": room.Code, "participant": participantID}).Info("participant left")
	s.bus.Broadcast(models.ParticipantLeft{ParticipantID: participantID}, room.Code)
	return nil
}

// Heartbeat refreshes lastSeen and brings an offline participant back online.
func (s *RoomService) Heartbeat(code, participantID string) error {
	room, err := s.GetRoom(code)
	if err != nil {
		return err
	}
	if participantID == "" {
		return ErrParticipantIDRequired
	}

	if !s.store.UpdateLastSeen(room.ID, participantID) {
		return ErrParticipantNotFound
	}
	return nil
}

func (s *RoomService) GetParticipants(code string) ([]models.Participant, error) {
	room, err := s.GetRoom(code)
	if err != nil {
		return nil, err
	}
	return s.store.GetParticipants(room.ID), nil
}

// ListModels returns the room's online participants as an OpenAI model list.
// Each participant id doubles as a model id for routing.
func (s *RoomService) ListModels(code string) (models.ModelList, error) {
	participants, err := s.GetParticipants(code)
	if err != nil {
		return models.ModelList{}, err
	}

	list := models.ModelList{Object: "list", Data: []models.Model{}}
	for _, p := range participants {
		if p.Status != models.StatusOnline {
			continue
		}
		list.Data = append(list.Data, models.Model{
			ID:      p.ID,
			Object:  "model",
			Created: p.JoinedAt.Unix(),
			OwnedBy: p.Nickname,
			Hub: models.ModelDetails{
				Nickname: p.Nickname,
				Model:    p.Model,
				Endpoint: p.Endpoint,
			},
		})
	}
	return list, nil
}
