package registry

import (
	"time"

	"llmhub/internal/models"
)

type RoomRepository interface {
	Create(name, hostID, password string) (models.Room, error)
	Get(id string) (models.Room, bool)
	GetByCode(code string) (models.Room, bool)
	List() []models.Room
	ListWithParticipantCount() []models.RoomSummary
	Remove(id string) bool
	ValidatePassword(roomID, password string) (bool, error)
	Clear()
}

type ParticipantRepository interface {
	AddParticipant(roomID string, p models.Participant) bool
	RemoveParticipant(roomID, participantID string) bool
	GetParticipant(roomID, participantID string) (models.Participant, bool)
	GetParticipants(roomID string) []models.Participant
	UpdateParticipantStatus(roomID, participantID string, status models.Status) bool
	TransitionStatus(roomID, participantID string, from, to models.Status) bool
	UpdateLastSeen(roomID, participantID string) bool
}

type RoutingRepository interface {
	FindParticipantByModel(roomID, model string) (models.Participant, bool)
	GetRandomOnlineParticipant(roomID string) (models.Participant, bool)
}

type LivenessRepository interface {
	SweepStale(now time.Time, timeout time.Duration) []models.StaleParticipant
}

type Store interface {
	RoomRepository
	ParticipantRepository
	RoutingRepository
	LivenessRepository
}
