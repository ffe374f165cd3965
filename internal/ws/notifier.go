package ws

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/rs/zerolog"
)

// UnreadCounter computes per-tab unread counts
type UnreadCounter interface {
	Counts(ctx context.Context, viewer domain.Viewer) (domain.TabCounts, error)
}

// Sender delivers an event to one user. *Hub implements it.
type Sender interface {
	SendToUser(userID string, event *Event)
}

// TabChangedPayload tells clients to refresh lists and badges
type TabChangedPayload struct {
	InboxID    uint64 `json:"inbox_id"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status,omitempty"`
	ActorID    string `json:"actor_id"`
}

// MessagePayload announces a new message in a conversation
type MessagePayload struct {
	InboxID   uint64 `json:"inbox_id"`
	MessageID uint64 `json:"message_id"`
	SenderID  string `json:"sender_id"`
}

// ReadPayload tells the other side its messages were read
type ReadPayload struct {
	InboxID  uint64 `json:"inbox_id"`
	ReaderID string `json:"reader_id"`
	Count    int64  `json:"count"`
}

// Notifier turns bus events into pushes. Subscribe it after the unread cache
// invalidator so recomputed counts are fresh.
type Notifier struct {
	sender  Sender
	counter UnreadCounter
	logger  zerolog.Logger
}

// NewNotifier creates a new Notifier; counter may be nil to skip unread_count pushes
func NewNotifier(sender Sender, counter UnreadCounter, logger zerolog.Logger) *Notifier {
	return &Notifier{sender: sender, counter: counter, logger: logger}
}

// Subscribe registers the notifier on the bus
func (n *Notifier) Subscribe(bus *events.Bus) {
	bus.SubscribeAll("ws-notifier", n.Handle,
		events.TopicMessageSent,
		events.TopicTabChanged,
		events.TopicMessagesRead,
		events.TopicInboxDeleted,
	)
}

// Handle pushes one bus event to every participant
func (n *Notifier) Handle(e events.Event) {
	switch e.Topic {
	case events.TopicMessageSent:
		for _, uid := range e.Participants {
			if uid == e.ActorID {
				continue
			}
			n.sender.SendToUser(uid, &Event{Type: EventMessage, Payload: MessagePayload{
				InboxID: e.InboxID, MessageID: e.MessageID, SenderID: e.ActorID,
			}})
		}
		return

	case events.TopicMessagesRead:
		for _, uid := range e.Participants {
			if uid == e.ActorID {
				continue
			}
			n.sender.SendToUser(uid, &Event{Type: EventMessagesRead, Payload: ReadPayload{
				InboxID: e.InboxID, ReaderID: e.ActorID, Count: e.Count,
			}})
		}

	case events.TopicTabChanged, events.TopicInboxDeleted:
		for _, uid := range e.Participants {
			n.sender.SendToUser(uid, &Event{Type: EventTabChanged, Payload: TabChangedPayload{
				InboxID: e.InboxID, FromStatus: e.FromStatus, ToStatus: e.ToStatus, ActorID: e.ActorID,
			}})
		}
	}

	n.pushUnreadCounts(e.Participants)
}

func (n *Notifier) pushUnreadCounts(userIDs []string) {
	if n.counter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for _, uid := range userIDs {
		counts, err := n.counter.Counts(ctx, domain.Viewer{ID: uid})
		if err != nil {
			n.logger.Warn().Err(err).Str("user_id", uid).Msg("unread count push skipped")
			continue
		}
		n.sender.SendToUser(uid, &Event{Type: EventUnreadCount, Payload: counts})
	}
}
