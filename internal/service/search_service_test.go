package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/repository"
	pkges "github.com/damoang/angple-messenger/pkg/elasticsearch"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSearcher is a mock implementation of the elasticsearch client subset
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, index string, query map[string]interface{}, from, size int) (*pkges.SearchResponse, error) {
	args := m.Called(index, query, from, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pkges.SearchResponse), args.Error(1)
}

func (m *MockSearcher) IndexDocument(ctx context.Context, index, docID string, body interface{}) error {
	args := m.Called(index, docID, body)
	return args.Error(0)
}

func (m *MockSearcher) DeleteDocument(ctx context.Context, index, docID string) error {
	args := m.Called(index, docID)
	return args.Error(0)
}

func (m *MockSearcher) CreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error {
	args := m.Called(index, mapping)
	return args.Error(0)
}

func TestSearch_DatabaseBackend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inbox := env.create(t, alice, bob, "환불 요청드립니다")
	env.send(t, bob, inbox.ID, "환불 처리 중입니다")
	env.create(t, carol, staff, "환불 관련 비공개 문의")

	hits, err := env.search.Search(ctx, alice, "  환불 ")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "환불 처리 중입니다", hits[0].Body)
	assert.Equal(t, "Bob", hits[0].SenderName)
	assert.Equal(t, "문의합니다", hits[0].InboxTitle)
	for _, h := range hits {
		assert.Equal(t, inbox.ID, h.InboxID)
	}

	hits, err = env.search.Search(ctx, alice, "   ")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_LimitAndNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	inbox := env.create(t, alice, bob, "keyword 0")
	for i := 1; i < 8; i++ {
		env.send(t, alice, inbox.ID, fmt.Sprintf("keyword %d", i))
	}

	hits, err := env.search.Search(ctx, bob, "keyword")
	require.NoError(t, err)
	require.Len(t, hits, 5)
	assert.Equal(t, "keyword 7", hits[0].Body)
	assert.Equal(t, "keyword 3", hits[4].Body)
}

func TestSearch_ElasticsearchFallsBackToDatabase(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inbox := env.create(t, alice, bob, "배송 문의")

	searcher := new(MockSearcher)
	searcher.On("Search", "inbox-messages", mock.Anything, 0, 5).Return(nil, errors.New("connection refused"))

	svc := NewSearchService(
		NewESSearchBackend(searcher, "inbox-messages"),
		repository.NewInboxRepository(env.db),
		env.messages,
		NewUserDirectory(repository.NewUserRepository(env.db), nil),
		5,
		zerolog.Nop(),
	)

	hits, err := svc.Search(ctx, bob, "배송")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, inbox.ID, hits[0].InboxID)
	searcher.AssertExpectations(t)
}

func TestSearch_ElasticsearchHitsAreRecheckedForViewer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, mine, err := env.inboxes.CreateInbox(ctx, alice, newCreateRequest("bob", "내 메시지"))
	require.NoError(t, err)
	_, foreign, err := env.inboxes.CreateInbox(ctx, carol, newCreateRequest("staff", "남의 메시지"))
	require.NoError(t, err)

	searcher := new(MockSearcher)
	searcher.On("Search", "inbox-messages", mock.Anything, 0, 5).Return(&pkges.SearchResponse{
		Total: 2,
		Results: []pkges.SearchResult{
			{ID: fmt.Sprint(foreign.ID)},
			{ID: fmt.Sprint(mine.ID)},
			{ID: "not-a-number"},
		},
	}, nil)

	svc := NewSearchService(
		NewESSearchBackend(searcher, "inbox-messages"),
		repository.NewInboxRepository(env.db),
		env.messages,
		NewUserDirectory(repository.NewUserRepository(env.db), nil),
		5,
		zerolog.Nop(),
	)

	hits, err := svc.Search(ctx, alice, "메시지")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, mine.ID, hits[0].MessageID)
}

func TestSearchIndexer_IndexMessageByID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, msg, err := env.inboxes.CreateInbox(ctx, alice, newCreateRequest("bob", "색인 대상"))
	require.NoError(t, err)

	searcher := new(MockSearcher)
	searcher.On("IndexDocument", "inbox-messages", fmt.Sprint(msg.ID), mock.MatchedBy(func(doc MessageDocument) bool {
		return doc.Body == "색인 대상" && len(doc.Participants) == 2
	})).Return(nil)

	indexer := NewSearchIndexer(
		NewESSearchBackend(searcher, "inbox-messages"),
		repository.NewInboxRepository(env.db),
		env.messages,
		zerolog.Nop(),
	)
	require.NoError(t, indexer.IndexMessageByID(ctx, msg.ID))
	require.NoError(t, indexer.IndexMessageByID(ctx, 9999))
	searcher.AssertExpectations(t)
}

type recordingBulk struct {
	batches []map[string]interface{}
}

func (b *recordingBulk) BulkIndex(ctx context.Context, index string, docs map[string]interface{}) error {
	b.batches = append(b.batches, docs)
	return nil
}

func TestSearchIndexer_ReindexInBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inbox := env.create(t, alice, bob, "첫 메시지")
	env.send(t, bob, inbox.ID, "둘")
	env.send(t, alice, inbox.ID, "셋")

	other := env.create(t, carol, bob, "지워질 대화")
	require.NoError(t, env.inboxes.DeleteInbox(ctx, carol, other.ID))

	indexer := NewSearchIndexer(
		NewESSearchBackend(new(MockSearcher), "inbox-messages"),
		repository.NewInboxRepository(env.db),
		env.messages,
		zerolog.Nop(),
	)
	bulk := &recordingBulk{}
	n, err := indexer.Reindex(ctx, bulk, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	seen := 0
	for _, batch := range bulk.batches {
		seen += len(batch)
	}
	assert.Equal(t, 3, seen)
}

func TestNotificationLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inbox := env.create(t, alice, bob, "알림 대상")

	pending, err := env.ledger.Pending(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, inbox.ID, pending[0].InboxID)

	pending, err = env.ledger.Pending(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	created, err := env.ledger.MarkNotified(ctx, "bob", pending0(t, env, "bob"))
	require.NoError(t, err)
	assert.True(t, created)

	pending, err = env.ledger.Pending(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = env.ledger.MarkNotified(ctx, "carol", 1)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = env.ledger.MarkNotified(ctx, "bob", 9999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestNotificationLedger_MarkIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, msg, err := env.inboxes.CreateInbox(ctx, alice, newCreateRequest("bob", "hello"))
	require.NoError(t, err)

	created, err := env.ledger.MarkNotified(ctx, "bob", msg.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.ledger.MarkNotified(ctx, "bob", msg.ID)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestNotificationLedger_PendingCarriesReceiptsAndMarks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	inbox := env.create(t, alice, bob, "읽음 정보 포함")

	pending, err := env.ledger.Pending(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []string{"alice"}, pending[0].ReadBy)
	assert.False(t, pending[0].IsRead)
	assert.Equal(t, []string{"alice"}, pending[0].NotifiedTo)

	// bob 이 읽은 뒤에도 알림 표시가 없으면 pending 에 남는다
	_, err = env.sync.MarkRead(ctx, bob, inbox.ID)
	require.NoError(t, err)

	pending, err = env.ledger.Pending(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.True(t, pending[0].IsRead)
	assert.ElementsMatch(t, []string{"alice", "bob"}, pending[0].ReadBy)
}

func pending0(t *testing.T, env *testEnv, userID string) uint64 {
	t.Helper()
	pending, err := env.ledger.Pending(context.Background(), userID, 1)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	return pending[0].ID
}
