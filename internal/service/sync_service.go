package service

import (
	"context"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/rs/zerolog"
)

// maxPollBatch caps a single forward fetch
const maxPollBatch = 100

// SyncService keeps an open conversation view in sync: forward polling for new
// messages and backward pagination for history, merged without duplicates.
type SyncService struct {
	inboxes     *InboxService
	inboxRepo   *repository.InboxRepository
	messageRepo *repository.MessageRepository
	reader      ReadMarker
	users       *UserDirectory
	cfg         config.MessengerConfig
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSyncService creates a new SyncService
func NewSyncService(
	inboxes *InboxService,
	inboxRepo *repository.InboxRepository,
	messageRepo *repository.MessageRepository,
	reader ReadMarker,
	users *UserDirectory,
	cfg config.MessengerConfig,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		inboxes:     inboxes,
		inboxRepo:   inboxRepo,
		messageRepo: messageRepo,
		reader:      reader,
		users:       users,
		cfg:         cfg,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source
func (s *SyncService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *SyncService) pageSize(limit int) int {
	size := s.cfg.MessagesPerPage
	if size < 1 {
		size = 10
	}
	if limit > 0 && limit <= 50 {
		size = limit
	}
	return size
}

// visibleInbox returns nil (no error) when the viewer cannot see the conversation
func (s *SyncService) visibleInbox(ctx context.Context, viewerID string, inboxID uint64) (*domain.Inbox, error) {
	inbox, err := s.inboxRepo.FindByID(ctx, inboxID)
	if err != nil {
		return nil, err
	}
	if inbox == nil || !inbox.IsParticipant(viewerID) {
		return nil, nil
	}
	return inbox, nil
}

// fetchOlder reads one history page from the backward cursor and reports whether more remain
func (s *SyncService) fetchOlder(ctx context.Context, inboxID uint64, before domain.Cursor, size int) ([]*domain.Message, bool, error) {
	msgs, err := s.messageRepo.FindBefore(ctx, inboxID, before, size+1)
	if err != nil {
		return nil, false, err
	}
	hasMore := len(msgs) > size
	if hasMore {
		msgs = msgs[:size]
	}
	return msgs, hasMore, nil
}

// Open loads a conversation view: marks it read, returns the newest page and both cursors
func (s *SyncService) Open(ctx context.Context, viewer domain.Viewer, inboxID uint64) (*domain.InboxDetailResponse, error) {
	inbox, err := s.visibleInbox(ctx, viewer.ID, inboxID)
	if err != nil {
		return nil, common.WrapPersistence("open conversation", err)
	}
	if inbox == nil {
		return nil, &common.NotFoundError{Resource: "conversation", ID: inboxID}
	}

	marked, err := s.reader.MarkRead(ctx, inboxID, viewer.ID, s.now())
	if err != nil {
		return nil, common.WrapPersistence("mark read", err)
	}

	msgs, hasMore, err := s.fetchOlder(ctx, inboxID, domain.Cursor{}, s.pageSize(0))
	if err != nil {
		return nil, common.WrapPersistence("load messages", err)
	}
	window := domain.NewMessageWindow()
	window.Append(msgs, hasMore)

	names, err := s.users.Names(ctx, append(inbox.ParticipantIDs(), senders(msgs)...))
	if err != nil {
		return nil, common.WrapPersistence("load user names", err)
	}

	lastSender := ""
	if len(msgs) > 0 {
		lastSender = msgs[0].SenderID
	}
	isCreator := inbox.IsCreator(viewer.ID)
	lastFromViewer := lastSender != "" && lastSender == viewer.ID

	return &domain.InboxDetailResponse{
		ID:             inbox.ID,
		Title:          inbox.DisplayTitle(viewer.ID, names),
		Status:         inbox.Status,
		StatusLabel:    inbox.Status.Label(),
		StatusColor:    inbox.Status.Color(),
		Tab:            domain.ClassifyTab(inbox.Status, inbox.CreatorID, lastSender, viewer.ID),
		DisplayLabel:   inbox.Status.DisplayLabel(isCreator, lastFromViewer),
		DisplayColor:   inbox.Status.DisplayColor(isCreator, lastFromViewer),
		CreatorID:      inbox.CreatorID,
		RecipientID:    inbox.RecipientID,
		CounterpartID:  inbox.CounterpartID(viewer.ID),
		Actions:        s.inboxes.AvailableActions(ctx, viewer, inbox.Status),
		Messages:       s.present(ctx, viewer.ID, window.Messages(), names),
		ForwardCursor:  window.ForwardCursor().ID,
		BackwardCursor: window.BackwardCursor().Encode(),
		HasMore:        window.HasMore(),
		PollInterval:   s.cfg.PollInterval.Milliseconds(),
		MarkedRead:     marked,
	}, nil
}

// PollResult is the forward sync delta
type PollResult struct {
	Messages      []domain.MessageResponse `json:"messages"` // newest first, to insert at the head
	ForwardCursor uint64                   `json:"forward_cursor"`
	MarkedRead    int64                    `json:"marked_read"`
}

// Poll fetches messages newer than the forward cursor and marks the conversation read.
// Missing or foreign conversations yield an empty result.
func (s *SyncService) Poll(ctx context.Context, viewer domain.Viewer, inboxID uint64, window *domain.MessageWindow) (*PollResult, error) {
	result := &PollResult{Messages: []domain.MessageResponse{}, ForwardCursor: window.ForwardCursor().ID}

	inbox, err := s.visibleInbox(ctx, viewer.ID, inboxID)
	if err != nil {
		return nil, common.WrapPersistence("poll", err)
	}
	if inbox == nil {
		return result, nil
	}

	marked, err := s.reader.MarkRead(ctx, inboxID, viewer.ID, s.now())
	if err != nil {
		return nil, common.WrapPersistence("mark read", err)
	}
	result.MarkedRead = marked

	fetched, err := s.messageRepo.FindAfter(ctx, inboxID, window.ForwardCursor().ID, maxPollBatch)
	if err != nil {
		return nil, common.WrapPersistence("poll", err)
	}
	added := window.Prepend(fetched)
	if len(added) == 0 {
		return result, nil
	}

	names, err := s.users.Names(ctx, senders(added))
	if err != nil {
		return nil, common.WrapPersistence("load user names", err)
	}
	result.Messages = s.present(ctx, viewer.ID, added, names)
	result.ForwardCursor = window.ForwardCursor().ID
	return result, nil
}

// HistoryResult is one backward page
type HistoryResult struct {
	Messages       []domain.MessageResponse `json:"messages"` // newest first, to append at the tail
	BackwardCursor string                   `json:"backward_cursor,omitempty"`
	HasMore        bool                     `json:"has_more"`
}

// LoadOlder fetches the page before the backward cursor. Exhaustion is hasMore=false.
func (s *SyncService) LoadOlder(ctx context.Context, viewer domain.Viewer, inboxID uint64, window *domain.MessageWindow, limit int) (*HistoryResult, error) {
	result := &HistoryResult{Messages: []domain.MessageResponse{}, BackwardCursor: window.BackwardCursor().Encode()}

	inbox, err := s.visibleInbox(ctx, viewer.ID, inboxID)
	if err != nil {
		return nil, common.WrapPersistence("load older", err)
	}
	if inbox == nil {
		return result, nil
	}

	msgs, hasMore, err := s.fetchOlder(ctx, inboxID, window.BackwardCursor(), s.pageSize(limit))
	if err != nil {
		return nil, common.WrapPersistence("load older", err)
	}
	added := window.Append(msgs, hasMore)
	result.HasMore = window.HasMore()
	result.BackwardCursor = window.BackwardCursor().Encode()
	if len(added) == 0 {
		return result, nil
	}

	names, err := s.users.Names(ctx, senders(added))
	if err != nil {
		return nil, common.WrapPersistence("load user names", err)
	}
	result.Messages = s.present(ctx, viewer.ID, added, names)
	return result, nil
}

// MarkRead marks a conversation read for the viewer (no-op when absent)
func (s *SyncService) MarkRead(ctx context.Context, viewer domain.Viewer, inboxID uint64) (int64, error) {
	marked, err := s.reader.MarkRead(ctx, inboxID, viewer.ID, s.now())
	if err != nil {
		return 0, common.WrapPersistence("mark read", err)
	}
	return marked, nil
}

func (s *SyncService) present(ctx context.Context, viewerID string, msgs []*domain.Message, names map[string]string) []domain.MessageResponse {
	out := make([]domain.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *s.inboxes.presentMessage(ctx, viewerID, m, names))
	}
	return out
}

func senders(msgs []*domain.Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
	}
	return ids
}
