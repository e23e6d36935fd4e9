package models

import "time"

// Room is the public representation of a room. The password hash never
// leaves the registry, so it has no field here.
type Room struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	HostID    string    `json:"hostId"`
	CreatedAt time.Time `json:"createdAt"`
	Protected bool      `json:"protected"`
}

type RoomSummary struct {
	Room
	ParticipantCount int `json:"participantCount"`
}

type Status string

const (
	StatusOnline  Status = "online"
	StatusBusy    Status = "busy"
	StatusOffline Status = "offline"
)

// MachineSpecs are informational hardware descriptors.
type MachineSpecs struct {
	GPU  string  `json:"gpu,omitempty"`
	VRAM float64 `json:"vram,omitempty"`
	RAM  float64 `json:"ram,omitempty"`
	CPU  string  `json:"cpu,omitempty"`
}

// GenerationConfig holds default sampling parameters for a participant.
type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Seed             *int64   `json:"seed,omitempty"`
}

type Participant struct {
	ID       string           `json:"id"`
	Nickname string           `json:"nickname"`
	Model    string           `json:"model"`
	Endpoint string           `json:"endpoint"`
	Specs    MachineSpecs     `json:"specs"`
	Config   GenerationConfig `json:"config"`
	Status   Status           `json:"status"`
	JoinedAt time.Time        `json:"joinedAt"`
	LastSeen time.Time        `json:"lastSeen"`
}

// StaleParticipant identifies a participant marked offline by a liveness sweep.
type StaleParticipant struct {
	RoomID        string
	ParticipantID string
}

type CreateRoomRequest struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
}

type CreateRoomResponse struct {
	Room   Room   `json:"room"`
	HostID string `json:"hostId"`
}

type JoinRoomRequest struct {
	ID       string            `json:"id"`
	Nickname string            `json:"nickname"`
	Model    string            `json:"model"`
	Endpoint string            `json:"endpoint"`
	Password string            `json:"password,omitempty"`
	Specs    *MachineSpecs     `json:"specs,omitempty"`
	Config   *GenerationConfig `json:"config,omitempty"`
}

type JoinRoomResponse struct {
	Participant Participant `json:"participant"`
	RoomID      string      `json:"roomId"`
}

type HealthCheckRequest struct {
	ID string `json:"id"`
}

// Model is an OpenAI-compatible model entry extended with participant details.
type Model struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	OwnedBy string       `json:"owned_by"`
	Hub     ModelDetails `json:"hub"`
}

type ModelDetails struct {
	Nickname string `json:"nickname"`
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`
}

type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}
