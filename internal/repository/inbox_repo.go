package repository

import (
	"context"
	"errors"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// lastSenderExpr resolves the author of the newest visible message (created_at, then id)
	lastSenderExpr = "COALESCE((SELECT m.sender_id FROM messages m WHERE m.inbox_id = inboxes.id AND m.deleted_at IS NULL ORDER BY m.created_at DESC, m.id DESC LIMIT 1), '')"

	// unreadExpr is true when the inbox has a visible message without a receipt for the reader
	unreadExpr = "EXISTS (SELECT 1 FROM messages m WHERE m.inbox_id = inboxes.id AND m.deleted_at IS NULL AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.reader_id = ?))"
)

// InboxRepository handles conversation persistence
type InboxRepository struct {
	db *gorm.DB
}

// NewInboxRepository creates a new InboxRepository
func NewInboxRepository(db *gorm.DB) *InboxRepository {
	return &InboxRepository{db: db}
}

// WithTx returns a new InboxRepository with the given transaction
func (r *InboxRepository) WithTx(tx *gorm.DB) *InboxRepository {
	return &InboxRepository{db: tx}
}

// DB returns the underlying database instance
func (r *InboxRepository) DB() *gorm.DB {
	return r.db
}

// Create inserts a conversation row
func (r *InboxRepository) Create(ctx context.Context, inbox *domain.Inbox) error {
	return r.db.WithContext(ctx).Create(inbox).Error
}

// FindByID returns a visible conversation or nil when absent
func (r *InboxRepository) FindByID(ctx context.Context, id uint64) (*domain.Inbox, error) {
	var inbox domain.Inbox
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&inbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inbox, nil
}

// FindForUpdate loads a conversation holding a row lock until the transaction ends.
// Must be called on a repository bound to a transaction.
func (r *InboxRepository) FindForUpdate(ctx context.Context, id uint64) (*domain.Inbox, error) {
	var inbox domain.Inbox
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&inbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inbox, nil
}

// UpdateStatus moves the status only if it still equals from. Returns false when
// another writer changed it first.
func (r *InboxRepository) UpdateStatus(ctx context.Context, id uint64, from, to domain.InboxStatus, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Inbox{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Touch bumps updated_at
func (r *InboxRepository) Touch(ctx context.Context, id uint64, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.Inbox{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
}

// SoftDelete hides a conversation; messages are retained
func (r *InboxRepository) SoftDelete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Inbox{}).Error
}

// participantScope limits to conversations the viewer takes part in
func participantScope(viewerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(inboxes.creator_id = ? OR inboxes.recipient_id = ?)", viewerID, viewerID)
	}
}

// tabScope mirrors domain.ClassifyTab in SQL
func tabScope(tab domain.Tab, viewerID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		switch tab {
		case domain.TabSent:
			return db.Where("inboxes.status = ? AND inboxes.creator_id = ?", domain.StatusMessage, viewerID)
		case domain.TabInProgress:
			return db.Where("inboxes.status = ? AND "+lastSenderExpr+" = ?", domain.StatusInProgress, viewerID)
		case domain.TabTreated:
			return db.Where("inboxes.status = ?", domain.StatusTreated)
		default:
			return db.Where(
				"((inboxes.status = ? AND inboxes.creator_id <> ?) OR (inboxes.status = ? AND "+lastSenderExpr+" <> ?))",
				domain.StatusMessage, viewerID, domain.StatusInProgress, viewerID,
			)
		}
	}
}

// ListByTab returns one page of the viewer's conversations in a tab ordered by updated_at desc
func (r *InboxRepository) ListByTab(ctx context.Context, viewerID string, tab domain.Tab, page, perPage int) ([]*domain.Inbox, int64, error) {
	var inboxes []*domain.Inbox
	var total int64

	query := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&domain.Inbox{}).
			Scopes(participantScope(viewerID), tabScope(tab, viewerID))
	}

	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	err := query().
		Order("inboxes.updated_at DESC").
		Order("inboxes.id DESC").
		Offset(offset).
		Limit(perPage).
		Find(&inboxes).Error
	if err != nil {
		return nil, 0, err
	}
	return inboxes, total, nil
}

type snapshotRow struct {
	InboxID      uint64
	Status       string
	CreatorID    string
	LastSenderID string
}

// UnreadSnapshots returns every conversation of the viewer holding at least one
// message the viewer has not read, with the data needed to classify it.
func (r *InboxRepository) UnreadSnapshots(ctx context.Context, viewerID string) ([]domain.InboxSnapshot, error) {
	var rows []snapshotRow
	err := r.db.WithContext(ctx).
		Model(&domain.Inbox{}).
		Select("inboxes.id AS inbox_id, inboxes.status AS status, inboxes.creator_id AS creator_id, "+lastSenderExpr+" AS last_sender_id").
		Scopes(participantScope(viewerID)).
		Where(unreadExpr, viewerID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	snapshots := make([]domain.InboxSnapshot, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, domain.InboxSnapshot{
			InboxID:      row.InboxID,
			Status:       domain.InboxStatus(row.Status),
			CreatorID:    row.CreatorID,
			LastSenderID: row.LastSenderID,
			HasUnread:    true,
		})
	}
	return snapshots, nil
}

// UnreadInboxIDs returns which of the given conversations have unread messages for the reader
func (r *InboxRepository) UnreadInboxIDs(ctx context.Context, inboxIDs []uint64, readerID string) (map[uint64]bool, error) {
	result := make(map[uint64]bool, len(inboxIDs))
	if len(inboxIDs) == 0 {
		return result, nil
	}

	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Distinct("messages.inbox_id").
		Where("messages.inbox_id IN ?", inboxIDs).
		Where("NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = messages.id AND r.reader_id = ?)", readerID).
		Pluck("messages.inbox_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}
