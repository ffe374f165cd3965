package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inboxMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_messages_sent_total",
			Help: "Total number of messages stored",
		},
	)

	inboxConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_conversations_created_total",
			Help: "Total number of conversations started",
		},
	)

	inboxStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_status_transitions_total",
			Help: "Conversation status changes by cause",
		},
		[]string{"from", "to", "cause"}, // cause: send | action
	)

	inboxReceiptsMarked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_read_receipts_marked_total",
			Help: "Read receipts appended",
		},
	)

	inboxWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_write_failures_total",
			Help: "Atomic inbox writes rolled back",
		},
		[]string{"op"},
	)

	inboxUnreadCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_unread_cache_requests_total",
			Help: "Unread count cache lookups",
		},
		[]string{"result"}, // hit | miss
	)
)
