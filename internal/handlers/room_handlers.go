package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"llmhub/internal/models"
	"llmhub/internal/services"
)

// maxBodyBytes bounds JSON request bodies, chat completions included.
const maxBodyBytes = 10 << 20

type RoomHandlers struct {
	roomService *services.RoomService
	log         logrus.FieldLogger
}

func NewRoomHandlers(roomService *services.RoomService, log logrus.FieldLogger) *RoomHandlers {
	return &RoomHandlers{
		roomService: roomService,
		log:         log.WithField("component", "http"),
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return services.ErrInvalidBody
	}
	return nil
}

func (h *RoomHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}

func (h *RoomHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	resp, err := h.roomService.CreateRoom(&req)
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *RoomHandlers) ListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": h.roomService.ListRooms(),
	})
}

func (h *RoomHandlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomService.GetRoom(chi.URLParam(r, "code"))
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"room": room})
}

func (h *RoomHandlers) JoinRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, err := h.roomService.GetRoom(code); err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	var req models.JoinRoomRequest
	if err := decodeBody(w, r, &req); err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	resp, err := h.roomService.JoinRoom(code, &req)
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (h *RoomHandlers) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	err := h.roomService.LeaveRoom(chi.URLParam(r, "code"), chi.URLParam(r, "id"))
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *RoomHandlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, err := h.roomService.GetRoom(code); err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	var req models.HealthCheckRequest
	if err := decodeBody(w, r, &req); err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	if err := h.roomService.Heartbeat(code, req.ID); err != nil {
		HandleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *RoomHandlers) GetParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.roomService.GetParticipants(chi.URLParam(r, "code"))
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"participants": participants})
}

func (h *RoomHandlers) ListModels(w http.ResponseWriter, r *http.Request) {
	list, err := h.roomService.ListModels(chi.URLParam(r, "code"))
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
