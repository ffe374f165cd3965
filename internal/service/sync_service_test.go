package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkRead_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inbox := env.create(t, alice, bob, "hello")
	env.send(t, alice, inbox.ID, "두 번째")

	var published []events.Event
	env.bus.Subscribe("test", events.TopicMessagesRead, func(e events.Event) { published = append(published, e) })

	marked, err := env.sync.MarkRead(ctx, bob, inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	marked, err = env.sync.MarkRead(ctx, bob, inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), marked)
	require.Len(t, published, 1)
	assert.Equal(t, int64(2), published[0].Count)

	counts, err := env.unread.Counts(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(0), counts.Total)
}

func TestMarkRead_AbsentOrForeignIsNoop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inbox := env.create(t, alice, bob, "hello")

	marked, err := env.sync.MarkRead(ctx, bob, 9999)
	require.NoError(t, err)
	assert.Zero(t, marked)

	marked, err = env.sync.MarkRead(ctx, carol, inbox.ID)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestMarkRead_ReadByAndReadAtStayAligned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, msg, err := env.inboxes.CreateInbox(ctx, alice, &domain.CreateInboxRequest{Title: "t", RecipientID: "bob", Message: "hello"})
	require.NoError(t, err)

	_, err = env.reads.MarkRead(ctx, msg.InboxID, "bob", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	stored, err := env.messages.FindByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, stored.ReadBy())
	assert.Len(t, stored.ReadAt(), len(stored.ReadBy()))
}

func TestUnreadCounts_SumToTotal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.create(t, alice, bob, "new for bob")
	b := env.create(t, bob, alice, "sent by bob")
	c := env.create(t, alice, bob, "will be in progress")
	env.send(t, bob, c.ID, "reply")
	env.send(t, alice, c.ID, "ping")
	d := env.create(t, carol, bob, "treated")
	_, err := env.inboxes.ChangeStatus(ctx, staff, d.ID, domain.StatusTreated)
	require.NoError(t, err)
	e := env.create(t, bob, carol, "bob creator, carol replies")
	env.send(t, carol, e.ID, "answer")
	_ = a
	_ = b

	counts, err := env.unread.Counts(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, counts.New+counts.Sent+counts.InProgress+counts.Treated, counts.Total)
	// a, c(마지막 alice), e(마지막 carol) 는 new, d 는 treated, b 는 bob 이 읽은 상태
	assert.Equal(t, int64(3), counts.New)
	assert.Equal(t, int64(1), counts.Treated)
	assert.Equal(t, int64(4), counts.Total)
}

func TestSync_OpenPollAndLoadOlder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inbox := env.create(t, alice, bob, "m0")
	for i := 1; i < 12; i++ {
		env.send(t, alice, inbox.ID, fmt.Sprintf("m%d", i))
	}

	view, err := env.sync.Open(ctx, bob, inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), view.MarkedRead)
	require.Len(t, view.Messages, 10)
	assert.Equal(t, "m11", view.Messages[0].Body)
	assert.Equal(t, "m2", view.Messages[9].Body)
	assert.True(t, view.HasMore)
	assert.True(t, view.Messages[0].IsRead)
	assert.Equal(t, int64(5000), view.PollInterval)
	assert.Equal(t, "문의합니다", view.Title)

	backward, err := domain.DecodeCursor(view.BackwardCursor)
	require.NoError(t, err)
	window := domain.ResumeWindow(domain.Cursor{ID: view.ForwardCursor}, backward, view.HasMore)

	older, err := env.sync.LoadOlder(ctx, bob, inbox.ID, window, 0)
	require.NoError(t, err)
	require.Len(t, older.Messages, 2)
	assert.Equal(t, "m1", older.Messages[0].Body)
	assert.Equal(t, "m0", older.Messages[1].Body)
	assert.False(t, older.HasMore)

	again, err := env.sync.LoadOlder(ctx, bob, inbox.ID, window, 0)
	require.NoError(t, err)
	assert.Empty(t, again.Messages)
	assert.False(t, again.HasMore)

	env.send(t, alice, inbox.ID, "m12")
	poll, err := env.sync.Poll(ctx, bob, inbox.ID, window)
	require.NoError(t, err)
	require.Len(t, poll.Messages, 1)
	assert.Equal(t, "m12", poll.Messages[0].Body)
	assert.Equal(t, int64(1), poll.MarkedRead)
	assert.True(t, poll.Messages[0].IsRead)

	poll, err = env.sync.Poll(ctx, bob, inbox.ID, window)
	require.NoError(t, err)
	assert.Empty(t, poll.Messages)
	assert.Equal(t, window.ForwardCursor().ID, poll.ForwardCursor)

	// 창 안의 메시지는 id 기준으로 중복 없음
	assert.Equal(t, 3, window.Len())
	for _, m := range window.Messages() {
		assert.True(t, window.Contains(m.ID))
	}
}

func TestSync_OpenMissingConversation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inbox := env.create(t, alice, bob, "hello")

	_, err := env.sync.Open(ctx, carol, inbox.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	res, err := env.sync.Poll(ctx, carol, inbox.ID, domain.NewMessageWindow())
	require.NoError(t, err)
	assert.Empty(t, res.Messages)
}

func TestSync_OpenShowsDisplayLabel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inbox := env.create(t, alice, bob, "hello")

	view, err := env.sync.Open(ctx, alice, inbox.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TabSent, view.Tab)
	assert.Equal(t, domain.StatusMessage.DisplayLabel(true, true), view.DisplayLabel)
	assert.Zero(t, view.MarkedRead)

	view, err = env.sync.Open(ctx, staff, inbox.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Nil(t, view)
}
