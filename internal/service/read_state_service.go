package service

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/rs/zerolog"
)

// ReadMarker marks every unread message of a conversation as read by one reader.
// A missing conversation is a no-op returning zero.
type ReadMarker interface {
	MarkRead(ctx context.Context, inboxID uint64, readerID string, at time.Time) (int64, error)
}

// ReadStateService is the ReadMarker backed by the read receipt table
type ReadStateService struct {
	inboxRepo   *repository.InboxRepository
	receiptRepo *repository.ReadReceiptRepository
	bus         *events.Bus
	logger      zerolog.Logger
}

// NewReadStateService creates a new ReadStateService
func NewReadStateService(
	inboxRepo *repository.InboxRepository,
	receiptRepo *repository.ReadReceiptRepository,
	bus *events.Bus,
	logger zerolog.Logger,
) *ReadStateService {
	return &ReadStateService{
		inboxRepo:   inboxRepo,
		receiptRepo: receiptRepo,
		bus:         bus,
		logger:      logger,
	}
}

// MarkRead implements ReadMarker. Only participants leave receipts.
func (s *ReadStateService) MarkRead(ctx context.Context, inboxID uint64, readerID string, at time.Time) (int64, error) {
	inbox, err := s.inboxRepo.FindByID(ctx, inboxID)
	if err != nil {
		return 0, err
	}
	if inbox == nil || !inbox.IsParticipant(readerID) {
		return 0, nil
	}

	marked, err := s.receiptRepo.MarkInboxRead(ctx, inboxID, readerID, at)
	if err != nil {
		return 0, err
	}
	if marked > 0 {
		inboxReceiptsMarked.Add(float64(marked))
		s.logger.Debug().
			Uint64("inbox_id", inboxID).
			Str("reader_id", readerID).
			Int64("marked", marked).
			Msg("messages marked read")
		s.bus.Publish(events.Event{
			Topic:        events.TopicMessagesRead,
			InboxID:      inboxID,
			ActorID:      readerID,
			Participants: inbox.ParticipantIDs(),
			Count:        marked,
			Timestamp:    at,
		})
	}
	return marked, nil
}
