package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"llmhub/internal/models"
)

const DefaultBufferSize = 64

// Envelope is a serialized event ready to be written to any transport.
type Envelope struct {
	Name models.EventType `json:"type"`
	Data json.RawMessage  `json:"data"`
}

// SSE renders the envelope in text/event-stream framing.
func (e Envelope) SSE() []byte {
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", e.Name, e.Data))
}

func NewEnvelope(ev models.Event) (Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "failed to marshal %s event", ev.Type())
	}
	return Envelope{Name: ev.Type(), Data: data}, nil
}

// Subscription is one observer stream. Events arrives closed once the
// subscriber is deregistered, either explicitly or because it fell behind.
type Subscription struct {
	ClientID string
	RoomCode string

	ch   chan Envelope
	once sync.Once
}

func (s *Subscription) Events() <-chan Envelope {
	return s.ch
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Bus fans events out to subscribers. Broadcast never blocks on a slow
// consumer.
type Bus struct {
	mu         sync.RWMutex
	clients    map[string]*Subscription
	bufferSize int
	log        logrus.FieldLogger
}

func NewBus(bufferSize int, log logrus.FieldLogger) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		clients:    make(map[string]*Subscription),
		bufferSize: bufferSize,
		log:        log.WithField("component", "events"),
	}
}

// Subscribe registers a stream for clientID. An empty roomCode watches
// every room. The connected event is queued before the stream becomes
// visible to Broadcast, so it is always the first event delivered.
func (b *Bus) Subscribe(clientID, roomCode string) *Subscription {
	sub := &Subscription{
		ClientID: clientID,
		RoomCode: roomCode,
		ch:       make(chan Envelope, b.bufferSize),
	}
	if env, err := NewEnvelope(models.Connected{ClientID: clientID}); err == nil {
		sub.ch <- env
	}

	b.mu.Lock()
	if old, ok := b.clients[clientID]; ok {
		old.close()
	}
	b.clients[clientID] = sub
	b.mu.Unlock()

	b.log.WithFields(logrus.Fields{"client": clientID, "room": roomCode}).Debug("subscriber connected")
	return sub
}

// Unsubscribe removes the client and closes its stream. Unknown ids are
// ignored.
func (b *Bus) Unsubscribe(clientID string) {
	b.mu.Lock()
	sub, ok := b.clients[clientID]
	if ok {
		delete(b.clients, clientID)
	}
	b.mu.Unlock()

	if ok {
		sub.close()
		b.log.WithField("client", clientID).Debug("subscriber disconnected")
	}
}

// Release closes sub and deregisters it if it is still the active stream
// for its client id. Transports call it when the far end goes away.
func (b *Bus) Release(sub *Subscription) {
	b.mu.Lock()
	if cur, ok := b.clients[sub.ClientID]; ok && cur == sub {
		delete(b.clients, sub.ClientID)
	}
	b.mu.Unlock()
	sub.close()
}

// Broadcast delivers ev to every subscriber in scope. An empty roomCode
// reaches everyone; otherwise subscribers of that room and unscoped
// subscribers receive it.
func (b *Bus) Broadcast(ev models.Event, roomCode string) {
	env, err := NewEnvelope(ev)
	if err != nil {
		b.log.WithError(err).Error("dropping event")
		return
	}

	var dropped []*Subscription

	b.mu.RLock()
	for _, sub := range b.clients {
		if roomCode != "" && sub.RoomCode != "" && sub.RoomCode != roomCode {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			dropped = append(dropped, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range dropped {
		b.log.WithField("client", sub.ClientID).Warn("subscriber queue full, disconnecting")
		b.Release(sub)
	}
}

// CloseAll terminates every stream.
func (b *Bus) CloseAll() {
	b.mu.Lock()
	clients := b.clients
	b.clients = make(map[string]*Subscription)
	b.mu.Unlock()

	for _, sub := range clients {
		sub.close()
	}
}

func (b *Bus) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
