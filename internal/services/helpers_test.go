package services

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"llmhub/internal/auth"
	"llmhub/internal/models"
	"llmhub/internal/registry"
)

type published struct {
	event models.Event
	room  string
}

type recorder struct {
	mu     sync.Mutex
	events []published
}

func (r *recorder) Broadcast(ev models.Event, roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: ev, room: roomCode})
}

func (r *recorder) all() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.events...)
}

func (r *recorder) ofType(t models.EventType) []published {
	var out []published
	for _, p := range r.all() {
		if p.event.Type() == t {
			out = append(out, p)
		}
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newStore() *registry.Registry {
	return registry.New(auth.NewPasswordGuard(bcrypt.MinCost))
}

func addParticipant(store *registry.Registry, roomID, id, model, endpoint string, status models.Status) {
	now := time.Now()
	store.AddParticipant(roomID, models.Participant{
		ID:       id,
		Nickname: "nick-" + id,
		Model:    model,
		Endpoint: endpoint,
		Status:   status,
		JoinedAt: now,
		LastSeen: now,
	})
}
