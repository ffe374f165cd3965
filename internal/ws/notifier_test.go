package ws

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]*Event
}

func (s *recordingSender) SendToUser(userID string, event *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[string][]*Event)
	}
	s.sent[userID] = append(s.sent[userID], event)
}

func (s *recordingSender) types(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.sent[userID] {
		out = append(out, e.Type)
	}
	return out
}

type fixedCounter struct {
	counts map[string]domain.TabCounts
	err    error
}

func (c *fixedCounter) Counts(_ context.Context, viewer domain.Viewer) (domain.TabCounts, error) {
	if c.err != nil {
		return domain.TabCounts{}, c.err
	}
	return c.counts[viewer.ID], nil
}

func TestNotifier_MessageSentSkipsActor(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, nil, zerolog.Nop())

	n.Handle(events.Event{Topic: events.TopicMessageSent, InboxID: 1, MessageID: 7, ActorID: "a", Participants: []string{"a", "b"}})

	assert.Empty(t, sender.types("a"))
	require.Equal(t, []string{EventMessage}, sender.types("b"))
	payload, ok := sender.sent["b"][0].Payload.(MessagePayload)
	require.True(t, ok)
	assert.Equal(t, uint64(7), payload.MessageID)
}

func TestNotifier_TabChangedPushesCounts(t *testing.T) {
	sender := &recordingSender{}
	counter := &fixedCounter{counts: map[string]domain.TabCounts{
		"a": {New: 1, Total: 1},
		"b": {},
	}}
	bus := events.NewBus(zerolog.Nop())
	NewNotifier(sender, counter, zerolog.Nop()).Subscribe(bus)

	bus.Publish(events.Event{Topic: events.TopicTabChanged, InboxID: 1, ActorID: "b", Participants: []string{"a", "b"}, FromStatus: "message", ToStatus: "in_progress"})

	assert.Equal(t, []string{EventTabChanged, EventUnreadCount}, sender.types("a"))
	assert.Equal(t, []string{EventTabChanged, EventUnreadCount}, sender.types("b"))
	counts, ok := sender.sent["a"][1].Payload.(domain.TabCounts)
	require.True(t, ok)
	assert.Equal(t, int64(1), counts.New)
}

func TestNotifier_CounterFailureStillPushesEvent(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender, &fixedCounter{err: errors.New("db down")}, zerolog.Nop())

	n.Handle(events.Event{Topic: events.TopicMessagesRead, InboxID: 1, ActorID: "b", Participants: []string{"a", "b"}, Count: 2})

	assert.Equal(t, []string{EventMessagesRead}, sender.types("a"))
	assert.Empty(t, sender.types("b"))
}

func TestHub_DeliversToRegisteredUser(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	go hub.Run()
	defer hub.Stop()

	client := &Client{hub: hub, send: make(chan []byte, 4), userID: "a"}
	hub.Register(client)

	hub.SendToUser("a", &Event{Type: EventUnreadCount, Payload: domain.TabCounts{New: 2, Total: 2}})
	data := <-client.send
	assert.Contains(t, string(data), `"type":"unread_count"`)
	assert.True(t, hub.Connected("a"))
	assert.False(t, hub.Connected("b"))
}
