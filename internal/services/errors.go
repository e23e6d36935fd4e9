package services

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Handlers map these to HTTP status codes.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("unavailable")
	ErrProxyFailure = errors.New("proxy failure")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

var (
	ErrRoomNotFound           = newKindError(ErrNotFound, "Room not found")
	ErrParticipantNotFound    = newKindError(ErrNotFound, "Participant not found")
	ErrNoAvailableParticipant = newKindError(ErrNotFound, "No available participant for the requested model")
	ErrParticipantOffline     = newKindError(ErrUnavailable, "Participant is offline")
	ErrParticipantBusy        = newKindError(ErrUnavailable, "Participant is busy")
	ErrInvalidPassword        = newKindError(ErrUnauthorized, "Invalid password")
	ErrNameRequired           = newKindError(ErrValidation, "Name is required")
	ErrMissingJoinFields      = newKindError(ErrValidation, "Missing required fields: id, nickname, model, endpoint")
	ErrParticipantIDRequired  = newKindError(ErrValidation, "Participant ID is required")
	ErrInvalidBody            = newKindError(ErrValidation, "Invalid request body")
)

// Validationf builds an ErrValidation with a custom message.
func Validationf(format string, args ...interface{}) error {
	return newKindError(ErrValidation, fmt.Sprintf(format, args...))
}

// ProxyError reports an upstream failure. The message is safe to return
// to the caller.
func ProxyError(cause error) error {
	return &kindError{kind: ErrProxyFailure, msg: "Failed to proxy request: " + cause.Error()}
}
