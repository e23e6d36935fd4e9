package services

import (
	"strings"

	"llmhub/internal/models"
	"llmhub/internal/registry"
)

const modelSelectorPrefix = "model:"

// Router resolves a selector to the participant that should serve a call.
type Router struct {
	store registry.Store
}

func NewRouter(store registry.Store) *Router {
	return &Router{store: store}
}

// Resolve applies the selector tiers in order:
//
//	"*" or "any"    random online participant
//	"model:<name>"  first online participant serving <name>
//	anything else   exact participant id, then model name
//
// A participant matched by id that is busy yields ErrParticipantBusy; one
// that is offline yields ErrParticipantOffline.
func (r *Router) Resolve(roomID, selector string) (models.Participant, error) {
	p, ok := r.lookup(roomID, selector)
	if !ok {
		return models.Participant{}, ErrNoAvailableParticipant
	}
	switch p.Status {
	case models.StatusOnline:
	case models.StatusBusy:
		return models.Participant{}, ErrParticipantBusy
	default:
		return models.Participant{}, ErrParticipantOffline
	}
	return p, nil
}

func (r *Router) lookup(roomID, selector string) (models.Participant, bool) {
	switch {
	case selector == "*" || selector == "any":
		return r.store.GetRandomOnlineParticipant(roomID)
	case strings.HasPrefix(selector, modelSelectorPrefix):
		return r.store.FindParticipantByModel(roomID, strings.TrimPrefix(selector, modelSelectorPrefix))
	}

	if p, ok := r.store.GetParticipant(roomID, selector); ok {
		return p, true
	}
	return r.store.FindParticipantByModel(roomID, selector)
}
