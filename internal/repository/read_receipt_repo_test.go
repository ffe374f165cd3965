package repository

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadReceiptRepository_MarkInboxReadIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReadReceiptRepository(db)
	inbox := seedInbox(t, db, "a", "b", domain.StatusMessage, baseTime)
	m1 := seedMessage(t, db, inbox.ID, "a", baseTime)
	seedMessage(t, db, inbox.ID, "a", baseTime.Add(time.Second))

	n, err := repo.MarkInboxRead(bg(), inbox.ID, "b", baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repo.MarkInboxRead(bg(), inbox.ID, "b", baseTime.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	receipts, err := repo.FindByMessage(bg(), m1.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 2)
	assert.Equal(t, "a", receipts[0].ReaderID)
	assert.Equal(t, "b", receipts[1].ReaderID)
	assert.True(t, receipts[1].ReadAt.Equal(baseTime.Add(time.Minute)))
}

func TestReadReceiptRepository_DuplicateInsertIgnored(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReadReceiptRepository(db)
	inbox := seedInbox(t, db, "a", "b", domain.StatusMessage, baseTime)
	m := seedMessage(t, db, inbox.ID, "a", baseTime)

	n, err := repo.MarkMessagesRead(bg(), []uint64{m.ID}, "a", baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	receipts, err := repo.FindByMessage(bg(), m.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	// 최초 읽은 시각 유지
	assert.True(t, receipts[0].ReadAt.Equal(baseTime))
}

func TestReadReceiptRepository_MissingInboxIsNoop(t *testing.T) {
	db := setupTestDB(t)
	repo := NewReadReceiptRepository(db)

	n, err := repo.MarkInboxRead(bg(), 9999, "a", baseTime)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNotificationMarkRepository_PendingAndMark(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationMarkRepository(db)
	inbox := seedInbox(t, db, "a", "b", domain.StatusMessage, baseTime)
	m := seedMessage(t, db, inbox.ID, "a", baseTime)

	pending, err := repo.FindPending(bg(), "b", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, m.ID, pending[0].ID)
	assert.Equal(t, []string{"a"}, pending[0].ReadBy())

	// own messages never pending
	pending, err = repo.FindPending(bg(), "a", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	marked, err := repo.MarkNotified(bg(), m.ID, "b", baseTime)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repo.MarkNotified(bg(), m.ID, "b", baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, marked)

	notified, err := repo.IsNotified(bg(), m.ID, "b")
	require.NoError(t, err)
	assert.True(t, notified)

	pending, err = repo.FindPending(bg(), "b", 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReadReceiptRepository_ConcurrentMarkInboxRead(t *testing.T) {
	db := setupFileDB(t)
	repo := NewReadReceiptRepository(db)
	inbox := seedInbox(t, db, "a", "b", domain.StatusMessage, baseTime)
	const messages = 50
	for i := 0; i < messages; i++ {
		seedMessage(t, db, inbox.ID, "a", baseTime.Add(time.Duration(i)*time.Second))
	}

	const workers = 8
	var (
		wg    sync.WaitGroup
		total atomic.Int64
		errs  = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := repo.MarkInboxRead(bg(), inbox.ID, "b", baseTime.Add(time.Hour))
			if err != nil {
				errs <- err
				return
			}
			total.Add(n)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	// 각 메시지는 정확히 한 호출에서만 새로 읽음 처리된다
	assert.Equal(t, int64(messages), total.Load())

	var receipts int64
	require.NoError(t, db.Model(&domain.ReadReceipt{}).Where("reader_id = ?", "b").Count(&receipts).Error)
	assert.Equal(t, int64(messages), receipts)
}
