package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryUnreadCache keeps unread counts per (user, generation) in memory
type memoryUnreadCache struct {
	cache.Service

	mu        sync.Mutex
	gens      map[string]int64
	counts    map[string]domain.TabCounts
	beforeSet func()
}

func newMemoryUnreadCache() *memoryUnreadCache {
	return &memoryUnreadCache{
		Service: cache.NewService(nil),
		gens:    make(map[string]int64),
		counts:  make(map[string]domain.TabCounts),
	}
}

func (c *memoryUnreadCache) UnreadGeneration(_ context.Context, userID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[userID], nil
}

func (c *memoryUnreadCache) GetUnreadCounts(_ context.Context, userID string, gen int64, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.counts[fmt.Sprintf("%s:%d", userID, gen)]
	if !ok {
		return cache.ErrMiss
	}
	*dest.(*domain.TabCounts) = v
	return nil
}

func (c *memoryUnreadCache) SetUnreadCounts(_ context.Context, userID string, gen int64, counts interface{}, _ time.Duration) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[fmt.Sprintf("%s:%d", userID, gen)] = counts.(domain.TabCounts)
	return nil
}

func (c *memoryUnreadCache) InvalidateUnreadCounts(_ context.Context, userIDs ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		c.gens[id]++
	}
	return nil
}

func TestUnreadCounts_CachedUntilInvalidated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mem := newMemoryUnreadCache()
	svc := NewUnreadService(repository.NewInboxRepository(env.db), mem, time.Minute, zerolog.Nop())
	svc.Subscribe(env.bus)

	env.create(t, alice, bob, "first")

	counts, err := svc.Counts(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.New)

	// 이벤트 없이 DB 만 바뀌면 캐시 값이 그대로 나온다
	title, recipient, body := "direct", "bob", "no event"
	direct := &domain.Inbox{Title: &title, CreatorID: "carol", RecipientID: &recipient, Status: domain.StatusMessage}
	require.NoError(t, env.db.Create(direct).Error)
	require.NoError(t, env.db.Create(&domain.Message{InboxID: direct.ID, SenderID: "carol", Body: &body}).Error)
	counts, err = svc.Counts(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.New)

	env.create(t, carol, bob, "second")
	counts, err = svc.Counts(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.New)
}

func TestUnreadCounts_InvalidationDuringCountIsNotLost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	mem := newMemoryUnreadCache()
	svc := NewUnreadService(repository.NewInboxRepository(env.db), mem, time.Minute, zerolog.Nop())
	svc.Subscribe(env.bus)

	env.create(t, alice, bob, "first")

	// 집계가 끝난 뒤 캐시에 쓰기 직전에 새 대화가 도착
	mem.beforeSet = func() {
		env.create(t, carol, bob, "arrives while counting")
	}
	counts, err := svc.Counts(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.New)

	counts, err = svc.Counts(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts.New)
	assert.Equal(t, int64(2), counts.Total)
}
