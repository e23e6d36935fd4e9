package events

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmhub/internal/models"
)

func newTestBus(size int) *Bus {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewBus(size, log)
}

func drain(sub *Subscription) []Envelope {
	var out []Envelope
	for {
		select {
		case env, ok := <-sub.Events():
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func names(envs []Envelope) []models.EventType {
	out := make([]models.EventType, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Name)
	}
	return out
}

func TestSubscribe_ConnectedFirst(t *testing.T) {
	bus := newTestBus(8)
	sub := bus.Subscribe("c1", "ABC123")

	bus.Broadcast(models.ParticipantLeft{ParticipantID: "p1"}, "ABC123")

	got := drain(sub)
	require.Len(t, got, 2)
	assert.Equal(t, models.EventConnected, got[0].Name)
	assert.JSONEq(t, `{"clientId":"c1"}`, string(got[0].Data))
	assert.Equal(t, models.EventParticipantLeft, got[1].Name)
	assert.Equal(t, 1, bus.ClientCount())
}

func TestBroadcast_Scoping(t *testing.T) {
	bus := newTestBus(8)
	roomA := bus.Subscribe("a", "AAAAAA")
	roomB := bus.Subscribe("b", "BBBBBB")
	all := bus.Subscribe("all", "")

	bus.Broadcast(models.ParticipantOffline{ParticipantID: "p1"}, "AAAAAA")
	bus.Broadcast(models.RoomCreated{Room: models.Room{Code: "CCCCCC", Name: "new"}}, "")

	assert.Equal(t,
		[]models.EventType{models.EventConnected, models.EventParticipantOffline, models.EventRoomCreated},
		names(drain(roomA)))
	assert.Equal(t,
		[]models.EventType{models.EventConnected, models.EventRoomCreated},
		names(drain(roomB)))
	assert.Equal(t,
		[]models.EventType{models.EventConnected, models.EventParticipantOffline, models.EventRoomCreated},
		names(drain(all)))
}

func TestBroadcast_FullQueueDeregisters(t *testing.T) {
	bus := newTestBus(2)
	slow := bus.Subscribe("slow", "")
	fast := bus.Subscribe("fast", "")

	// connected already occupies one slot in each queue
	bus.Broadcast(models.ParticipantLeft{ParticipantID: "1"}, "")
	drain(fast)
	bus.Broadcast(models.ParticipantLeft{ParticipantID: "2"}, "")

	assert.Equal(t, 1, bus.ClientCount())

	got := drain(slow)
	assert.Len(t, got, 2)
	_, ok := <-slow.Events()
	assert.False(t, ok, "slow subscriber stream must be closed")

	got = drain(fast)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"participantId":"2"}`, string(got[0].Data))
}

func TestUnsubscribe(t *testing.T) {
	bus := newTestBus(4)
	sub := bus.Subscribe("c1", "")

	bus.Unsubscribe("c1")
	bus.Unsubscribe("c1")
	bus.Unsubscribe("unknown")

	assert.Equal(t, 0, bus.ClientCount())
	drain(sub)
	_, ok := <-sub.Events()
	assert.False(t, ok)

	// broadcasting with no subscribers is a no-op
	bus.Broadcast(models.ParticipantLeft{ParticipantID: "p"}, "")
}

func TestRelease_KeepsNewerSubscription(t *testing.T) {
	bus := newTestBus(4)
	first := bus.Subscribe("c1", "")
	second := bus.Subscribe("c1", "")

	bus.Release(first)
	assert.Equal(t, 1, bus.ClientCount())

	bus.Broadcast(models.ParticipantLeft{ParticipantID: "p"}, "")
	assert.Len(t, drain(second), 2)

	bus.Release(second)
	assert.Equal(t, 0, bus.ClientCount())
}

func TestCloseAll(t *testing.T) {
	bus := newTestBus(4)
	subs := []*Subscription{bus.Subscribe("a", ""), bus.Subscribe("b", "X")}

	bus.CloseAll()
	assert.Equal(t, 0, bus.ClientCount())
	for _, sub := range subs {
		drain(sub)
		_, ok := <-sub.Events()
		assert.False(t, ok)
	}

	// Release after CloseAll must not panic on the closed channel
	bus.Release(subs[0])
}

func TestEnvelope_SSE(t *testing.T) {
	env, err := NewEnvelope(models.LLMRequest{ParticipantID: "p1", Model: "*"})
	require.NoError(t, err)

	assert.Equal(t,
		"event: llm:request\ndata: {\"participantId\":\"p1\",\"model\":\"*\"}\n\n",
		string(env.SSE()))
}

func TestEnvelope_CompleteWithoutMetrics(t *testing.T) {
	env, err := NewEnvelope(models.LLMComplete{ParticipantID: "p1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"participantId":"p1"}`, string(env.Data))
}

func TestBroadcast_Concurrent(t *testing.T) {
	bus := newTestBus(1024)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			sub := bus.Subscribe(string(rune('a'+i)), "")
			for j := 0; j < 50; j++ {
				drain(sub)
			}
			bus.Release(sub)
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.Broadcast(models.ParticipantLeft{ParticipantID: "p"}, "ROOM01")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, bus.ClientCount())
}
