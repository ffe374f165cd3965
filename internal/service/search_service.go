package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
	pkges "github.com/damoang/angple-messenger/pkg/elasticsearch"
	"github.com/rs/zerolog"
)

// SearchBackend finds message ids matching a query inside the viewer's conversations, newest first
type SearchBackend interface {
	Name() string
	SearchMessageIDs(ctx context.Context, viewerID, query string, limit int) ([]uint64, error)
}

// SearchHit is one search result row
type SearchHit struct {
	MessageID  uint64 `json:"message_id"`
	InboxID    uint64 `json:"inbox_id"`
	InboxTitle string `json:"inbox_title"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name,omitempty"`
	Body       string `json:"body"`
	CreatedAt  string `json:"created_at"`
}

// SearchService is the thin substring lookup over a user's messages
type SearchService struct {
	primary     SearchBackend
	fallback    SearchBackend
	inboxRepo   *repository.InboxRepository
	messageRepo *repository.MessageRepository
	users       *UserDirectory
	limit       int
	logger      zerolog.Logger
}

// NewSearchService creates a SearchService. primary may be nil, in which case the
// database backend serves every query.
func NewSearchService(
	primary SearchBackend,
	inboxRepo *repository.InboxRepository,
	messageRepo *repository.MessageRepository,
	users *UserDirectory,
	limit int,
	logger zerolog.Logger,
) *SearchService {
	if limit < 1 {
		limit = 5
	}
	fallback := NewDBSearchBackend(messageRepo)
	if primary == nil {
		primary = fallback
	}
	return &SearchService{
		primary:     primary,
		fallback:    fallback,
		inboxRepo:   inboxRepo,
		messageRepo: messageRepo,
		users:       users,
		limit:       limit,
		logger:      logger,
	}
}

// Search returns up to the configured number of hits. A blank query returns nothing.
func (s *SearchService) Search(ctx context.Context, viewer domain.Viewer, query string) ([]SearchHit, error) {
	query = strings.TrimSpace(query)
	hits := []SearchHit{}
	if query == "" {
		return hits, nil
	}

	ids, err := s.primary.SearchMessageIDs(ctx, viewer.ID, query, s.limit)
	if err != nil && s.primary != s.fallback {
		s.logger.Warn().Err(err).Str("backend", s.primary.Name()).Msg("search backend failed, using database")
		ids, err = s.fallback.SearchMessageIDs(ctx, viewer.ID, query, s.limit)
	}
	if err != nil {
		return nil, common.WrapPersistence("search", err)
	}

	// 인덱스 결과도 현재 권한으로 다시 거른다
	msgs, err := s.messageRepo.FindByIDsForViewer(ctx, ids, viewer.ID)
	if err != nil {
		return nil, common.WrapPersistence("search", err)
	}
	if len(msgs) == 0 {
		return hits, nil
	}

	userIDs := senders(msgs)
	inboxes := make(map[uint64]*domain.Inbox, len(msgs))
	for _, m := range msgs {
		if _, ok := inboxes[m.InboxID]; ok {
			continue
		}
		inbox, err := s.inboxRepo.FindByID(ctx, m.InboxID)
		if err != nil {
			return nil, common.WrapPersistence("search", err)
		}
		if inbox != nil {
			inboxes[m.InboxID] = inbox
			userIDs = append(userIDs, inbox.ParticipantIDs()...)
		}
	}
	names, err := s.users.Names(ctx, userIDs)
	if err != nil {
		return nil, common.WrapPersistence("search", err)
	}

	for _, m := range msgs {
		inbox, ok := inboxes[m.InboxID]
		if !ok {
			continue
		}
		hit := SearchHit{
			MessageID:  m.ID,
			InboxID:    m.InboxID,
			InboxTitle: inbox.DisplayTitle(viewer.ID, names),
			SenderID:   m.SenderID,
			SenderName: names[m.SenderID],
			CreatedAt:  m.CreatedAt.Format(domain.DateTimeFormat),
		}
		if m.Body != nil {
			hit.Body = *m.Body
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// DBSearchBackend runs LIKE queries against the messages table
type DBSearchBackend struct {
	messageRepo *repository.MessageRepository
}

// NewDBSearchBackend creates the database backend
func NewDBSearchBackend(messageRepo *repository.MessageRepository) *DBSearchBackend {
	return &DBSearchBackend{messageRepo: messageRepo}
}

// Name implements SearchBackend
func (b *DBSearchBackend) Name() string { return "database" }

// SearchMessageIDs implements SearchBackend
func (b *DBSearchBackend) SearchMessageIDs(ctx context.Context, viewerID, query string, limit int) ([]uint64, error) {
	msgs, err := b.messageRepo.Search(ctx, viewerID, query, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// messageSearcher is the subset of the elasticsearch client the backend needs
type messageSearcher interface {
	Search(ctx context.Context, index string, query map[string]interface{}, from, size int) (*pkges.SearchResponse, error)
	IndexDocument(ctx context.Context, index, docID string, body interface{}) error
	DeleteDocument(ctx context.Context, index, docID string) error
	CreateIndex(ctx context.Context, index string, mapping map[string]interface{}) error
}

// MessageDocument is the indexed form of a message
type MessageDocument struct {
	MessageID    uint64    `json:"message_id"`
	InboxID      uint64    `json:"inbox_id"`
	SenderID     string    `json:"sender_id"`
	Body         string    `json:"body"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"created_at"`
}

// MessageIndexMapping is the index mapping for message documents
var MessageIndexMapping = map[string]interface{}{
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"message_id":   map[string]interface{}{"type": "long"},
			"inbox_id":     map[string]interface{}{"type": "long"},
			"sender_id":    map[string]interface{}{"type": "keyword"},
			"participants": map[string]interface{}{"type": "keyword"},
			"body":         map[string]interface{}{"type": "wildcard"},
			"created_at":   map[string]interface{}{"type": "date"},
		},
	},
}

// ESSearchBackend queries an elasticsearch index of messages
type ESSearchBackend struct {
	client messageSearcher
	index  string
}

// NewESSearchBackend creates the elasticsearch backend
func NewESSearchBackend(client messageSearcher, index string) *ESSearchBackend {
	return &ESSearchBackend{client: client, index: index}
}

// Name implements SearchBackend
func (b *ESSearchBackend) Name() string { return "elasticsearch" }

// EnsureIndex creates the index when missing
func (b *ESSearchBackend) EnsureIndex(ctx context.Context) error {
	return b.client.CreateIndex(ctx, b.index, MessageIndexMapping)
}

// SearchMessageIDs implements SearchBackend
func (b *ESSearchBackend) SearchMessageIDs(ctx context.Context, viewerID, query string, limit int) ([]uint64, error) {
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"participants": viewerID}},
				},
				"must": []interface{}{
					map[string]interface{}{"wildcard": map[string]interface{}{
						"body": map[string]interface{}{"value": "*" + escapeWildcard(query) + "*", "case_insensitive": true},
					}},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"created_at": "desc"},
			map[string]interface{}{"message_id": "desc"},
		},
		"_source": false,
	}

	resp, err := b.client.Search(ctx, b.index, q, 0, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(resp.Results))
	for _, r := range resp.Results {
		id, err := strconv.ParseUint(r.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// IndexMessage writes one message document
func (b *ESSearchBackend) IndexMessage(ctx context.Context, doc MessageDocument) error {
	return b.client.IndexDocument(ctx, b.index, strconv.FormatUint(doc.MessageID, 10), doc)
}

// DeleteMessage removes one message document
func (b *ESSearchBackend) DeleteMessage(ctx context.Context, messageID uint64) error {
	return b.client.DeleteDocument(ctx, b.index, strconv.FormatUint(messageID, 10))
}

func escapeWildcard(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}

// BuildMessageDocument converts a stored message for indexing
func BuildMessageDocument(inbox *domain.Inbox, msg *domain.Message) MessageDocument {
	doc := MessageDocument{
		MessageID:    msg.ID,
		InboxID:      msg.InboxID,
		SenderID:     msg.SenderID,
		Participants: inbox.ParticipantIDs(),
		CreatedAt:    msg.CreatedAt,
	}
	if msg.Body != nil {
		doc.Body = *msg.Body
	}
	return doc
}

// SearchIndexer keeps the elasticsearch index in step with sent messages
type SearchIndexer struct {
	backend     *ESSearchBackend
	inboxRepo   *repository.InboxRepository
	messageRepo *repository.MessageRepository
	logger      zerolog.Logger
}

// NewSearchIndexer creates a new SearchIndexer
func NewSearchIndexer(backend *ESSearchBackend, inboxRepo *repository.InboxRepository, messageRepo *repository.MessageRepository, logger zerolog.Logger) *SearchIndexer {
	return &SearchIndexer{backend: backend, inboxRepo: inboxRepo, messageRepo: messageRepo, logger: logger}
}

// IndexMessageByID loads and indexes one message
func (x *SearchIndexer) IndexMessageByID(ctx context.Context, messageID uint64) error {
	msg, err := x.messageRepo.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	inbox, err := x.inboxRepo.FindByID(ctx, msg.InboxID)
	if err != nil {
		return err
	}
	if inbox == nil {
		return fmt.Errorf("conversation %d not found for message %d", msg.InboxID, msg.ID)
	}
	return x.backend.IndexMessage(ctx, BuildMessageDocument(inbox, msg))
}

// Subscribe indexes every sent message asynchronously
func (x *SearchIndexer) Subscribe(bus *events.Bus) {
	bus.Subscribe("search-indexer", events.TopicMessageSent, func(e events.Event) {
		if e.MessageID == 0 {
			return
		}
		go func(messageID uint64) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := x.IndexMessageByID(ctx, messageID); err != nil {
				x.logger.Warn().Err(err).Uint64("message_id", messageID).Msg("message indexing failed")
			}
		}(e.MessageID)
	})
}

// BulkWriter writes many documents in one request. *elasticsearch.Client implements it.
type BulkWriter interface {
	BulkIndex(ctx context.Context, index string, docs map[string]interface{}) error
}

// Reindex walks every stored message in id order and bulk writes it to the index.
// Returns the number of documents written.
func (x *SearchIndexer) Reindex(ctx context.Context, w BulkWriter, batchSize int) (int, error) {
	if batchSize < 1 {
		batchSize = 500
	}
	inboxes := make(map[uint64]*domain.Inbox)
	var after uint64
	total := 0
	for {
		msgs, err := x.messageRepo.ScanAfterID(ctx, after, batchSize)
		if err != nil {
			return total, err
		}
		if len(msgs) == 0 {
			return total, nil
		}

		docs := make(map[string]interface{}, len(msgs))
		for _, msg := range msgs {
			after = msg.ID
			inbox, ok := inboxes[msg.InboxID]
			if !ok {
				if inbox, err = x.inboxRepo.FindByID(ctx, msg.InboxID); err != nil {
					return total, err
				}
				inboxes[msg.InboxID] = inbox
			}
			// 삭제된 대화
			if inbox == nil {
				continue
			}
			docs[strconv.FormatUint(msg.ID, 10)] = BuildMessageDocument(inbox, msg)
		}

		if len(docs) == 0 {
			continue
		}
		if err := w.BulkIndex(ctx, x.backend.index, docs); err != nil {
			return total, fmt.Errorf("bulk index after message %d: %w", after, err)
		}
		total += len(docs)
		x.logger.Info().Int("batch", len(docs)).Int("total", total).Uint64("last_id", after).Msg("reindex progress")
	}
}
