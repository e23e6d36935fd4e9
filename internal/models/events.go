package models

type EventType string

const (
	EventConnected          EventType = "connected"
	EventRoomCreated        EventType = "room:created"
	EventParticipantJoined  EventType = "participant:joined"
	EventParticipantLeft    EventType = "participant:left"
	EventParticipantOffline EventType = "participant:offline"
	EventLLMRequest         EventType = "llm:request"
	EventLLMComplete        EventType = "llm:complete"
	EventLLMError           EventType = "llm:error"
)

// Event is the closed set of messages pushed to observers. Only types in
// this package implement it.
type Event interface {
	Type() EventType
	isEvent()
}

type Connected struct {
	ClientID string `json:"clientId"`
}

type RoomCreated struct {
	Room
}

type ParticipantJoined struct {
	Participant
}

type ParticipantLeft struct {
	ParticipantID string `json:"participantId"`
}

type ParticipantOffline struct {
	ParticipantID string `json:"participantId"`
}

type LLMRequest struct {
	ParticipantID string `json:"participantId"`
	Model         string `json:"model"`
}

type LLMComplete struct {
	ParticipantID string      `json:"participantId"`
	Metrics       *LLMMetrics `json:"metrics,omitempty"`
}

type LLMError struct {
	ParticipantID string `json:"participantId"`
	Error         string `json:"error"`
}

// LLMMetrics are best-effort generation statistics for a proxied call.
type LLMMetrics struct {
	Tokens              int     `json:"tokens,omitempty"`
	LatencyFirstTokenMs int64   `json:"latencyFirstTokenMs"`
	DurationMs          int64   `json:"durationMs"`
	TokensPerSecond     float64 `json:"tokensPerSecond,omitempty"`
}

func (Connected) Type() EventType          { return EventConnected }
func (RoomCreated) Type() EventType        { return EventRoomCreated }
func (ParticipantJoined) Type() EventType  { return EventParticipantJoined }
func (ParticipantLeft) Type() EventType    { return EventParticipantLeft }
func (ParticipantOffline) Type() EventType { return EventParticipantOffline }
func (LLMRequest) Type() EventType         { return EventLLMRequest }
func (LLMComplete) Type() EventType        { return EventLLMComplete }
func (LLMError) Type() EventType           { return EventLLMError }

func (Connected) isEvent()          {}
func (RoomCreated) isEvent()        {}
func (ParticipantJoined) isEvent()  {}
func (ParticipantLeft) isEvent()    {}
func (ParticipantOffline) isEvent() {}
func (LLMRequest) isEvent()         {}
func (LLMComplete) isEvent()        {}
func (LLMError) isEvent()           {}
