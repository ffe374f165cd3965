package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Topics
const (
	TopicInboxCreated = "inbox.created"
	TopicMessageSent  = "inbox.message_sent"
	TopicTabChanged   = "inbox.tab_changed"
	TopicMessagesRead = "inbox.messages_read"
	TopicInboxDeleted = "inbox.deleted"
)

// Event 대화 상태 변경 알림
type Event struct {
	Topic        string    `json:"topic"`
	InboxID      uint64    `json:"inbox_id"`
	ActorID      string    `json:"actor_id"`
	Participants []string  `json:"participants"`
	MessageID    uint64    `json:"message_id,omitempty"`
	FromStatus   string    `json:"from_status,omitempty"`
	ToStatus     string    `json:"to_status,omitempty"`
	Count        int64     `json:"count,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Handler 이벤트 핸들러 함수
type Handler func(event Event)

type subscription struct {
	name    string
	handler Handler
}

// Bus topic 기반 동기 이벤트 버스
type Bus struct {
	subscribers map[string][]subscription // topic -> handlers
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewBus 생성자
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string][]subscription),
		logger:      logger,
	}
}

// Subscribe 토픽 구독
func (b *Bus) Subscribe(name, topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], subscription{name: name, handler: handler})
	b.logger.Debug().Str("subscriber", name).Str("topic", topic).Msg("subscribed")
}

// SubscribeAll subscribes one handler to several topics
func (b *Bus) SubscribeAll(name string, handler Handler, topics ...string) {
	for _, topic := range topics {
		b.Subscribe(name, topic, handler)
	}
}

// Unsubscribe 구독자의 모든 구독 해제
func (b *Bus) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for topic, subs := range b.subscribers {
		var remaining []subscription
		for _, s := range subs {
			if s.name != name {
				remaining = append(remaining, s)
			}
		}
		if len(remaining) == 0 {
			delete(b.subscribers, topic)
		} else {
			b.subscribers[topic] = remaining
		}
	}
}

// Publish 이벤트 발행 (동기: 모든 핸들러 순차 실행, panic 은 격리)
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subscribers[event.Topic]))
	copy(subs, b.subscribers[event.Topic])
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error().
						Str("topic", event.Topic).
						Str("subscriber", s.name).
						Interface("panic", r).
						Msg("event handler panicked")
				}
			}()
			s.handler(event)
		}()
	}
}

// Subscriptions 구독 현황 조회
func (b *Bus) Subscriptions() map[string][]string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[string][]string)
	for topic, subs := range b.subscribers {
		for _, s := range subs {
			result[topic] = append(result[topic], s.name)
		}
	}
	return result
}
