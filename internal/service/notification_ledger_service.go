package service

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/rs/zerolog"
)

const defaultPendingLimit = 50

// NotificationLedgerService answers "has user X been notified of message M" for the
// external notifier. It never sends anything itself.
type NotificationLedgerService struct {
	marks       *repository.NotificationMarkRepository
	inboxRepo   *repository.InboxRepository
	messageRepo *repository.MessageRepository
	logger      zerolog.Logger
	now         func() time.Time
}

// NewNotificationLedgerService creates a new NotificationLedgerService
func NewNotificationLedgerService(
	marks *repository.NotificationMarkRepository,
	inboxRepo *repository.InboxRepository,
	messageRepo *repository.MessageRepository,
	logger zerolog.Logger,
) *NotificationLedgerService {
	return &NotificationLedgerService{
		marks:       marks,
		inboxRepo:   inboxRepo,
		messageRepo: messageRepo,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source
func (s *NotificationLedgerService) SetClock(now func() time.Time) {
	s.now = now
}

// Pending lists messages the user has not been notified about yet, oldest first.
// Each entry carries its read receipts and the users already notified.
func (s *NotificationLedgerService) Pending(ctx context.Context, userID string, limit int) ([]domain.MessageResponse, error) {
	if limit < 1 || limit > 200 {
		limit = defaultPendingLimit
	}
	msgs, err := s.marks.FindPending(ctx, userID, limit)
	if err != nil {
		return nil, common.WrapPersistence("list pending notifications", err)
	}
	out := make([]domain.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp := m.ToResponse(userID)
		resp.NotifiedTo = m.NotifiedUserIDs()
		out = append(out, *resp)
	}
	return out, nil
}

// MarkNotified records that the user was notified about the message.
// Returns false when the mark already existed.
func (s *NotificationLedgerService) MarkNotified(ctx context.Context, userID string, messageID uint64) (bool, error) {
	msg, err := s.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return false, common.WrapPersistence("find message", err)
	}
	if msg == nil {
		return false, &common.NotFoundError{Resource: "message", ID: messageID}
	}
	inbox, err := s.inboxRepo.FindByID(ctx, msg.InboxID)
	if err != nil {
		return false, common.WrapPersistence("find conversation", err)
	}
	if inbox == nil || !inbox.IsParticipant(userID) {
		return false, &common.NotFoundError{Resource: "message", ID: messageID}
	}

	created, err := s.marks.MarkNotified(ctx, messageID, userID, s.now())
	if err != nil {
		return false, common.WrapPersistence("mark notified", err)
	}
	if created {
		s.logger.Debug().Uint64("message_id", messageID).Str("user_id", userID).Msg("notification recorded")
	}
	return created, nil
}

// IsNotified reports whether the user has been notified about the message
func (s *NotificationLedgerService) IsNotified(ctx context.Context, userID string, messageID uint64) (bool, error) {
	ok, err := s.marks.IsNotified(ctx, messageID, userID)
	if err != nil {
		return false, common.WrapPersistence("check notified", err)
	}
	return ok, nil
}
