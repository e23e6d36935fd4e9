package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"llmhub/internal/services"
)

type ProxyHandlers struct {
	roomService  *services.RoomService
	proxyService *services.ProxyService
	log          logrus.FieldLogger
}

func NewProxyHandlers(roomService *services.RoomService, proxyService *services.ProxyService, log logrus.FieldLogger) *ProxyHandlers {
	return &ProxyHandlers{
		roomService:  roomService,
		proxyService: proxyService,
		log:          log.WithField("component", "http"),
	}
}

func (h *ProxyHandlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomService.GetRoom(chi.URLParam(r, "code"))
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		HandleServiceError(w, h.log, services.ErrInvalidBody)
		return
	}

	if err := h.proxyService.ChatCompletion(r.Context(), room, body, w); err != nil {
		HandleServiceError(w, h.log, err)
	}
}
