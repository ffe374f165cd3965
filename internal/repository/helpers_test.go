package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: 는 커넥션마다 별도 DB
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Inbox{},
		&domain.Message{},
		&domain.ReadReceipt{},
		&domain.MessageNotification{},
	))
	return db
}

// setupFileDB opens a file-backed database that allows concurrent connections
func setupFileDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "inbox.db") + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Inbox{},
		&domain.Message{},
		&domain.ReadReceipt{},
		&domain.MessageNotification{},
	))
	return db
}

func strPtr(s string) *string { return &s }

func seedInbox(t *testing.T, db *gorm.DB, creator, recipient string, status domain.InboxStatus, updated time.Time) *domain.Inbox {
	t.Helper()
	inbox := &domain.Inbox{
		Title:       strPtr("문의"),
		CreatorID:   creator,
		RecipientID: strPtr(recipient),
		Status:      status,
		CreatedAt:   updated,
		UpdatedAt:   updated,
	}
	require.NoError(t, db.Create(inbox).Error)
	return inbox
}

// seedMessage inserts a message already read by its sender
func seedMessage(t *testing.T, db *gorm.DB, inboxID uint64, sender string, at time.Time) *domain.Message {
	t.Helper()
	msg := &domain.Message{
		InboxID:      inboxID,
		SenderID:     sender,
		Body:         strPtr("안녕하세요"),
		CreatedAt:    at,
		UpdatedAt:    at,
		ReadReceipts: []domain.ReadReceipt{{ReaderID: sender, ReadAt: at}},
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func bg() context.Context { return context.Background() }
