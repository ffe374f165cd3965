package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	alice = domain.Viewer{ID: "alice", Name: "Alice", Level: 2}
	bob   = domain.Viewer{ID: "bob", Name: "Bob", Level: 2}
	carol = domain.Viewer{ID: "carol", Name: "Carol", Level: 2}
	staff = domain.Viewer{ID: "staff", Name: "Staff", Level: 10}
)

// stepClock advances one second per call so every write gets a distinct timestamp
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type testEnv struct {
	db       *gorm.DB
	bus      *events.Bus
	clock    *stepClock
	inboxes  *InboxService
	reads    *ReadStateService
	sync     *SyncService
	unread   *UnreadService
	search   *SearchService
	ledger   *NotificationLedgerService
	messages *repository.MessageRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
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
	for _, v := range []domain.Viewer{alice, bob, carol, staff} {
		require.NoError(t, db.Create(&domain.User{ID: v.ID, Name: v.Name, Level: v.Level}).Error)
	}

	log := zerolog.Nop()
	cfg := config.DefaultMessengerConfig()
	clock := &stepClock{now: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	bus := events.NewBus(log)

	inboxRepo := repository.NewInboxRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	receiptRepo := repository.NewReadReceiptRepository(db)
	markRepo := repository.NewNotificationMarkRepository(db)
	users := NewUserDirectory(repository.NewUserRepository(db), nil)
	permission := NewLevelStatusPermission(cfg.AllowStatusManagement, cfg.StatusManagerMinLevel)

	inboxes := NewInboxService(db, inboxRepo, messageRepo, users, permission, bus, cfg, log)
	inboxes.SetClock(clock.Now)
	reads := NewReadStateService(inboxRepo, receiptRepo, bus, log)
	syncSvc := NewSyncService(inboxes, inboxRepo, messageRepo, reads, users, cfg, log)
	syncSvc.SetClock(clock.Now)
	unread := NewUnreadService(inboxRepo, nil, cfg.UnreadCacheTTL, log)
	unread.Subscribe(bus)
	ledger := NewNotificationLedgerService(markRepo, inboxRepo, messageRepo, log)
	ledger.SetClock(clock.Now)

	return &testEnv{
		db:       db,
		bus:      bus,
		clock:    clock,
		inboxes:  inboxes,
		reads:    reads,
		sync:     syncSvc,
		unread:   unread,
		search:   NewSearchService(nil, inboxRepo, messageRepo, users, cfg.SearchLimit, log),
		ledger:   ledger,
		messages: messageRepo,
	}
}

func (e *testEnv) create(t *testing.T, from domain.Viewer, to domain.Viewer, body string) *domain.Inbox {
	t.Helper()
	inbox, _, err := e.inboxes.CreateInbox(context.Background(), from, &domain.CreateInboxRequest{
		Title:       "문의합니다",
		RecipientID: to.ID,
		Message:     body,
	})
	require.NoError(t, err)
	return inbox
}

func (e *testEnv) send(t *testing.T, from domain.Viewer, inboxID uint64, body string) *SendResult {
	t.Helper()
	res, err := e.inboxes.SendMessage(context.Background(), from, inboxID, &domain.SendMessageRequest{Body: body})
	require.NoError(t, err)
	return res
}

func (e *testEnv) status(t *testing.T, inboxID uint64) domain.InboxStatus {
	t.Helper()
	var inbox domain.Inbox
	require.NoError(t, e.db.Unscoped().First(&inbox, inboxID).Error)
	return inbox.Status
}

func (e *testEnv) tabOf(t *testing.T, viewer domain.Viewer, inboxID uint64) domain.Tab {
	t.Helper()
	for _, tab := range domain.AllTabs {
		list, err := e.inboxes.ListInboxes(context.Background(), viewer, tab, 1)
		require.NoError(t, err)
		for _, item := range list.Items {
			if item.ID == inboxID {
				return tab
			}
		}
	}
	t.Fatalf("conversation %d not listed for %s", inboxID, viewer.ID)
	return ""
}

func newCreateRequest(recipientID, body string) *domain.CreateInboxRequest {
	return &domain.CreateInboxRequest{Title: "문의합니다", RecipientID: recipientID, Message: body}
}
