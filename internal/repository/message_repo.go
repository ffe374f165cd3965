package repository

import (
	"context"
	"errors"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
)

// MessageRepository handles message persistence and ordered retrieval
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// WithTx returns a new MessageRepository with the given transaction
func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

// DB returns the underlying database instance
func (r *MessageRepository) DB() *gorm.DB {
	return r.db
}

func preloadReceipts(db *gorm.DB) *gorm.DB {
	return db.Preload("ReadReceipts", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("read_at ASC").Order("reader_id ASC")
	})
}

// Create inserts a message together with any receipts/notifications set on it
func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// FindByID returns a visible message or nil when absent
func (r *MessageRepository) FindByID(ctx context.Context, id uint64) (*domain.Message, error) {
	var msg domain.Message
	err := preloadReceipts(r.db.WithContext(ctx)).Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// FindBefore returns up to limit messages older than the cursor, newest first.
// A zero cursor starts from the newest message.
func (r *MessageRepository) FindBefore(ctx context.Context, inboxID uint64, before domain.Cursor, limit int) ([]*domain.Message, error) {
	var msgs []*domain.Message
	query := preloadReceipts(r.db.WithContext(ctx)).Where("inbox_id = ?", inboxID)
	if !before.IsZero() {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", before.CreatedAt, before.CreatedAt, before.ID)
	}
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// FindAfter returns messages with id greater than afterID, oldest first
func (r *MessageRepository) FindAfter(ctx context.Context, inboxID, afterID uint64, limit int) ([]*domain.Message, error) {
	var msgs []*domain.Message
	err := preloadReceipts(r.db.WithContext(ctx)).
		Where("inbox_id = ? AND id > ?", inboxID, afterID).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// LatestByInbox returns the newest visible message of each conversation
func (r *MessageRepository) LatestByInbox(ctx context.Context, inboxIDs []uint64) (map[uint64]*domain.Message, error) {
	result := make(map[uint64]*domain.Message, len(inboxIDs))
	if len(inboxIDs) == 0 {
		return result, nil
	}

	var msgs []*domain.Message
	err := preloadReceipts(r.db.WithContext(ctx)).
		Where("inbox_id IN ?", inboxIDs).
		Where("NOT EXISTS (SELECT 1 FROM messages n WHERE n.inbox_id = messages.inbox_id AND n.deleted_at IS NULL " +
			"AND (n.created_at > messages.created_at OR (n.created_at = messages.created_at AND n.id > messages.id)))").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		result[m.InboxID] = m
	}
	return result, nil
}

// Search finds messages whose body contains query inside the viewer's conversations, newest first
func (r *MessageRepository) Search(ctx context.Context, viewerID, query string, limit int) ([]*domain.Message, error) {
	var msgs []*domain.Message
	err := r.db.WithContext(ctx).
		Joins("JOIN inboxes ON inboxes.id = messages.inbox_id AND inboxes.deleted_at IS NULL").
		Where("(inboxes.creator_id = ? OR inboxes.recipient_id = ?)", viewerID, viewerID).
		Where("messages.body LIKE ? ESCAPE '!'", containsPattern(query)).
		Order("messages.created_at DESC").
		Order("messages.id DESC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}

// FindByIDsForViewer loads messages by id restricted to the viewer's conversations, keeping input order
func (r *MessageRepository) FindByIDsForViewer(ctx context.Context, ids []uint64, viewerID string) ([]*domain.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var msgs []*domain.Message
	err := r.db.WithContext(ctx).
		Joins("JOIN inboxes ON inboxes.id = messages.inbox_id AND inboxes.deleted_at IS NULL").
		Where("messages.id IN ?", ids).
		Where("(inboxes.creator_id = ? OR inboxes.recipient_id = ?)", viewerID, viewerID).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint64]*domain.Message, len(msgs))
	for _, m := range msgs {
		byID[m.ID] = m
	}
	ordered := make([]*domain.Message, 0, len(msgs))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}

// CountByInbox counts visible messages in a conversation
func (r *MessageRepository) CountByInbox(ctx context.Context, inboxID uint64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&domain.Message{}).Where("inbox_id = ?", inboxID).Count(&total).Error
	return total, err
}

// ScanAfterID returns up to limit messages with id greater than afterID across all
// conversations, ascending. Used for index backfill.
func (r *MessageRepository) ScanAfterID(ctx context.Context, afterID uint64, limit int) ([]*domain.Message, error) {
	var msgs []*domain.Message
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&msgs).Error
	return msgs, err
}
