package repository

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationMarkRepository tracks which users were already notified about a message
type NotificationMarkRepository struct {
	db *gorm.DB
}

// NewNotificationMarkRepository creates a new NotificationMarkRepository
func NewNotificationMarkRepository(db *gorm.DB) *NotificationMarkRepository {
	return &NotificationMarkRepository{db: db}
}

// WithTx returns a new NotificationMarkRepository with the given transaction
func (r *NotificationMarkRepository) WithTx(tx *gorm.DB) *NotificationMarkRepository {
	return &NotificationMarkRepository{db: tx}
}

// MarkNotified records the notification; false when it was already recorded
func (r *NotificationMarkRepository) MarkNotified(ctx context.Context, messageID uint64, userID string, at time.Time) (bool, error) {
	mark := domain.MessageNotification{MessageID: messageID, UserID: userID, NotifiedAt: at}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&mark)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// IsNotified reports whether the user was notified about the message
func (r *NotificationMarkRepository) IsNotified(ctx context.Context, messageID uint64, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.MessageNotification{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&count).Error
	return count > 0, err
}

// FindPending returns messages addressed to the user (in their conversations, sent by
// someone else) that have no notification mark yet, oldest first.
// Receipts and existing notification marks are preloaded.
func (r *NotificationMarkRepository) FindPending(ctx context.Context, userID string, limit int) ([]*domain.Message, error) {
	var msgs []*domain.Message
	err := preloadReceipts(r.db.WithContext(ctx)).
		Preload("Notifications", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("notified_at ASC").Order("user_id ASC")
		}).
		Joins("JOIN inboxes ON inboxes.id = messages.inbox_id AND inboxes.deleted_at IS NULL").
		Where("(inboxes.creator_id = ? OR inboxes.recipient_id = ?)", userID, userID).
		Where("messages.sender_id <> ?", userID).
		Where("NOT EXISTS (SELECT 1 FROM message_notifications n WHERE n.message_id = messages.id AND n.user_id = ?)", userID).
		Order("messages.id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
