package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"llmhub/internal/events"
	"llmhub/internal/services"
	ws "llmhub/internal/websocket"
)

// sseKeepAlive is how often an idle stream gets a comment line, so dead
// connections are noticed by the next failed write.
const sseKeepAlive = 15 * time.Second

type EventHandlers struct {
	roomService *services.RoomService
	bus         *events.Bus
	upgrader    websocket.Upgrader
	log         logrus.FieldLogger
}

func NewEventHandlers(roomService *services.RoomService, bus *events.Bus, log logrus.FieldLogger) *EventHandlers {
	return &EventHandlers{
		roomService: roomService,
		bus:         bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// any origin may watch, matching the CORS policy
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.WithField("component", "events"),
	}
}

// RoomEvents streams the events of one room as text/event-stream.
func (h *EventHandlers) RoomEvents(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomService.GetRoom(chi.URLParam(r, "code"))
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}
	h.serveSSE(w, r, room.Code)
}

// AllEvents streams every room's events.
func (h *EventHandlers) AllEvents(w http.ResponseWriter, r *http.Request) {
	h.serveSSE(w, r, "")
}

func (h *EventHandlers) serveSSE(w http.ResponseWriter, r *http.Request, roomCode string) {
	rc := http.NewResponseController(w)
	// streams outlive any server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := h.bus.Subscribe(uuid.NewString(), roomCode)
	defer h.bus.Release(sub)

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case env, ok := <-sub.Events():
			if !ok {
				return
			}
			if _, err := w.Write(env.SSE()); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// RoomWebSocket mirrors the room's event stream over a websocket.
func (h *EventHandlers) RoomWebSocket(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomService.GetRoom(chi.URLParam(r, "code"))
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	sub := h.bus.Subscribe(uuid.NewString(), room.Code)
	client := ws.NewClient(conn, sub, h.bus, h.log)

	go client.WritePump()
	go client.ReadPump()
}
