package models

import (
	"encoding/json"
	"time"
)

// Timestamps go over the wire as Unix milliseconds. The zero time is 0.

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

type roomFields Room

func (r Room) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		roomFields
		CreatedAt int64 `json:"createdAt"`
	}{roomFields(r), unixMillis(r.CreatedAt)})
}

func (r *Room) UnmarshalJSON(data []byte) error {
	aux := struct {
		*roomFields
		CreatedAt int64 `json:"createdAt"`
	}{roomFields: (*roomFields)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.CreatedAt = fromUnixMillis(aux.CreatedAt)
	return nil
}

// RoomSummary needs its own methods, otherwise the ones promoted from Room
// drop participantCount.
func (s RoomSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		roomFields
		CreatedAt        int64 `json:"createdAt"`
		ParticipantCount int   `json:"participantCount"`
	}{roomFields(s.Room), unixMillis(s.CreatedAt), s.ParticipantCount})
}

func (s *RoomSummary) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &s.Room); err != nil {
		return err
	}
	var aux struct {
		ParticipantCount int `json:"participantCount"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.ParticipantCount = aux.ParticipantCount
	return nil
}

type participantFields Participant

func (p Participant) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		participantFields
		JoinedAt int64 `json:"joinedAt"`
		LastSeen int64 `json:"lastSeen"`
	}{participantFields(p), unixMillis(p.JoinedAt), unixMillis(p.LastSeen)})
}

func (p *Participant) UnmarshalJSON(data []byte) error {
	aux := struct {
		*participantFields
		JoinedAt int64 `json:"joinedAt"`
		LastSeen int64 `json:"lastSeen"`
	}{participantFields: (*participantFields)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.JoinedAt = fromUnixMillis(aux.JoinedAt)
	p.LastSeen = fromUnixMillis(aux.LastSeen)
	return nil
}
