package repository

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const receiptBatchSize = 200

// ReadReceiptRepository stores per-message read receipts
type ReadReceiptRepository struct {
	db *gorm.DB
}

// NewReadReceiptRepository creates a new ReadReceiptRepository
func NewReadReceiptRepository(db *gorm.DB) *ReadReceiptRepository {
	return &ReadReceiptRepository{db: db}
}

// WithTx returns a new ReadReceiptRepository with the given transaction
func (r *ReadReceiptRepository) WithTx(tx *gorm.DB) *ReadReceiptRepository {
	return &ReadReceiptRepository{db: tx}
}

// MarkInboxRead appends a receipt for every message in the conversation the reader
// has not read yet. Concurrent identical calls are absorbed by the primary key,
// so the returned count only includes rows this call inserted.
func (r *ReadReceiptRepository) MarkInboxRead(ctx context.Context, inboxID uint64, readerID string, at time.Time) (int64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("inbox_id = ?", inboxID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = messages.id AND r.reader_id = ?)", readerID).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	return r.insert(ctx, ids, readerID, at)
}

// MarkMessagesRead appends receipts for specific messages
func (r *ReadReceiptRepository) MarkMessagesRead(ctx context.Context, messageIDs []uint64, readerID string, at time.Time) (int64, error) {
	return r.insert(ctx, messageIDs, readerID, at)
}

func (r *ReadReceiptRepository) insert(ctx context.Context, messageIDs []uint64, readerID string, at time.Time) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	receipts := make([]domain.ReadReceipt, 0, len(messageIDs))
	for _, id := range messageIDs {
		receipts = append(receipts, domain.ReadReceipt{MessageID: id, ReaderID: readerID, ReadAt: at})
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&receipts, receiptBatchSize)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindByMessage returns receipts of one message in read order
func (r *ReadReceiptRepository) FindByMessage(ctx context.Context, messageID uint64) ([]domain.ReadReceipt, error) {
	var receipts []domain.ReadReceipt
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("read_at ASC").
		Order("reader_id ASC").
		Find(&receipts).Error
	return receipts, err
}
