package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/events"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const recipientLookupLimit = 10

// InboxService owns conversation lifecycle: create, send, status actions, listing
type InboxService struct {
	db          *gorm.DB
	inboxRepo   *repository.InboxRepository
	messageRepo *repository.MessageRepository
	users       *UserDirectory
	permission  StatusPermission
	attachments AttachmentResolver
	bus         *events.Bus
	cfg         config.MessengerConfig
	policy      domain.TransitionPolicy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewInboxService creates a new InboxService
func NewInboxService(
	db *gorm.DB,
	inboxRepo *repository.InboxRepository,
	messageRepo *repository.MessageRepository,
	users *UserDirectory,
	permission StatusPermission,
	bus *events.Bus,
	cfg config.MessengerConfig,
	logger zerolog.Logger,
) *InboxService {
	return &InboxService{
		db:          db,
		inboxRepo:   inboxRepo,
		messageRepo: messageRepo,
		users:       users,
		permission:  permission,
		bus:         bus,
		cfg:         cfg,
		policy:      domain.TransitionPolicy{AllowDirectTreat: cfg.AllowDirectTreat},
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source
func (s *InboxService) SetClock(now func() time.Time) {
	s.now = now
}

// SetAttachmentResolver enables download URLs on attachments
func (s *InboxService) SetAttachmentResolver(r AttachmentResolver) {
	s.attachments = r
}

// newMessage builds a message already read by and notified to its sender
func newMessage(inboxID uint64, senderID, body string, attachments []domain.Attachment, at time.Time) *domain.Message {
	msg := &domain.Message{
		InboxID:       inboxID,
		SenderID:      senderID,
		Attachments:   attachments,
		CreatedAt:     at,
		UpdatedAt:     at,
		ReadReceipts:  []domain.ReadReceipt{{ReaderID: senderID, ReadAt: at}},
		Notifications: []domain.MessageNotification{{UserID: senderID, NotifiedAt: at}},
	}
	if body != "" {
		msg.Body = &body
	}
	return msg
}

// CreateInbox starts a conversation with its first message as one atomic unit
func (s *InboxService) CreateInbox(ctx context.Context, viewer domain.Viewer, req *domain.CreateInboxRequest) (*domain.Inbox, *domain.Message, error) {
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Message)
	recipientID := strings.TrimSpace(req.RecipientID)

	if title == "" || recipientID == "" {
		return nil, nil, fmt.Errorf("title and recipient are required: %w", common.ErrInvalidInput)
	}
	if body == "" && len(req.Attachments) == 0 {
		return nil, nil, common.ErrEmptyMessage
	}
	if recipientID == viewer.ID {
		return nil, nil, common.ErrSelfConversation
	}
	exists, err := s.users.Exists(ctx, recipientID)
	if err != nil {
		return nil, nil, common.WrapPersistence("lookup recipient", err)
	}
	if !exists {
		return nil, nil, common.ErrUserNotFound
	}

	now := s.now()
	inbox := &domain.Inbox{
		Title:       &title,
		CreatorID:   viewer.ID,
		RecipientID: &recipientID,
		Status:      domain.StatusMessage,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var msg *domain.Message

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.inboxRepo.WithTx(tx).Create(ctx, inbox); err != nil {
			return err
		}
		msg = newMessage(inbox.ID, viewer.ID, body, req.Attachments, now)
		return s.messageRepo.WithTx(tx).Create(ctx, msg)
	})
	if err != nil {
		inboxWriteFailures.WithLabelValues("create").Inc()
		s.logger.Error().Err(err).Str("creator_id", viewer.ID).Msg("failed to create conversation")
		return nil, nil, common.WrapPersistence("create conversation", err)
	}

	inboxConversationsCreated.Inc()
	inboxMessagesSent.Inc()

	participants := inbox.ParticipantIDs()
	s.bus.Publish(events.Event{Topic: events.TopicInboxCreated, InboxID: inbox.ID, ActorID: viewer.ID, Participants: participants, Timestamp: now})
	s.bus.Publish(events.Event{Topic: events.TopicMessageSent, InboxID: inbox.ID, ActorID: viewer.ID, Participants: participants, MessageID: msg.ID, Timestamp: now})
	s.bus.Publish(events.Event{Topic: events.TopicTabChanged, InboxID: inbox.ID, ActorID: viewer.ID, Participants: participants, ToStatus: string(inbox.Status), Timestamp: now})

	return inbox, msg, nil
}

// SendResult is the outcome of SendMessage
type SendResult struct {
	Inbox         *domain.Inbox
	Message       *domain.Message
	PrevStatus    domain.InboxStatus
	StatusChanged bool
}

// SendMessage appends a message, applies the send transition and bumps updated_at
// atomically. The conversation row is locked for the duration of the unit.
func (s *InboxService) SendMessage(ctx context.Context, viewer domain.Viewer, inboxID uint64, req *domain.SendMessageRequest) (*SendResult, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" && len(req.Attachments) == 0 {
		return nil, common.ErrEmptyMessage
	}

	now := s.now()
	result := &SendResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inboxes := s.inboxRepo.WithTx(tx)

		inbox, err := inboxes.FindForUpdate(ctx, inboxID)
		if err != nil {
			return err
		}
		if inbox == nil || !inbox.IsParticipant(viewer.ID) {
			return &common.NotFoundError{Resource: "conversation", ID: inboxID}
		}

		msg := newMessage(inbox.ID, viewer.ID, body, req.Attachments, now)
		if err := s.messageRepo.WithTx(tx).Create(ctx, msg); err != nil {
			return err
		}

		prev := inbox.Status
		next, changed := domain.NextStatusOnSend(prev, inbox.IsCreator(viewer.ID))
		if changed {
			ok, err := inboxes.UpdateStatus(ctx, inbox.ID, prev, next, now)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("conversation %d status changed concurrently", inbox.ID)
			}
		} else if err := inboxes.Touch(ctx, inbox.ID, now); err != nil {
			return err
		}

		inbox.Status = next
		inbox.UpdatedAt = now
		result.Inbox = inbox
		result.Message = msg
		result.PrevStatus = prev
		result.StatusChanged = changed
		return nil
	})
	if err != nil {
		inboxWriteFailures.WithLabelValues("send").Inc()
		s.logger.Warn().Err(err).Uint64("inbox_id", inboxID).Str("sender_id", viewer.ID).Msg("send message rolled back")
		return nil, common.WrapPersistence("send message", err)
	}

	inboxMessagesSent.Inc()
	participants := result.Inbox.ParticipantIDs()
	s.bus.Publish(events.Event{
		Topic:        events.TopicMessageSent,
		InboxID:      inboxID,
		ActorID:      viewer.ID,
		Participants: participants,
		MessageID:    result.Message.ID,
		Timestamp:    now,
	})
	// 마지막 작성자가 바뀌면 상태가 같아도 탭이 달라질 수 있다
	s.bus.Publish(events.Event{
		Topic:        events.TopicTabChanged,
		InboxID:      inboxID,
		ActorID:      viewer.ID,
		Participants: participants,
		FromStatus:   string(result.PrevStatus),
		ToStatus:     string(result.Inbox.Status),
		Timestamp:    now,
	})
	if result.StatusChanged {
		inboxStatusTransitions.WithLabelValues(string(result.PrevStatus), string(result.Inbox.Status), "send").Inc()
	}
	return result, nil
}

// ChangeStatus applies an explicit status action (canManageStatus gated)
func (s *InboxService) ChangeStatus(ctx context.Context, viewer domain.Viewer, inboxID uint64, to domain.InboxStatus) (*domain.Inbox, error) {
	if !s.permission.CanManageStatus(ctx, viewer) {
		return nil, &common.PermissionDeniedError{UserID: viewer.ID, Action: "change conversation status"}
	}

	now := s.now()
	var inbox *domain.Inbox
	var from domain.InboxStatus

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inboxes := s.inboxRepo.WithTx(tx)

		found, err := inboxes.FindForUpdate(ctx, inboxID)
		if err != nil {
			return err
		}
		if found == nil {
			return &common.NotFoundError{Resource: "conversation", ID: inboxID}
		}
		from = found.Status
		if !s.policy.CanTransition(from, to) {
			return &common.InvalidTransitionError{From: string(from), To: string(to)}
		}

		ok, err := inboxes.UpdateStatus(ctx, found.ID, from, to, now)
		if err != nil {
			return err
		}
		if !ok {
			return &common.InvalidTransitionError{From: string(from), To: string(to)}
		}
		found.Status = to
		found.UpdatedAt = now
		inbox = found
		return nil
	})
	if err != nil {
		return nil, common.WrapPersistence("change status", err)
	}

	inboxStatusTransitions.WithLabelValues(string(from), string(to), "action").Inc()
	s.logger.Info().
		Uint64("inbox_id", inboxID).
		Str("actor_id", viewer.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("conversation status changed")
	s.bus.Publish(events.Event{
		Topic:        events.TopicTabChanged,
		InboxID:      inboxID,
		ActorID:      viewer.ID,
		Participants: inbox.ParticipantIDs(),
		FromStatus:   string(from),
		ToStatus:     string(to),
		Timestamp:    now,
	})
	return inbox, nil
}

// AvailableActions lists the status targets the viewer may pick for a conversation
func (s *InboxService) AvailableActions(ctx context.Context, viewer domain.Viewer, status domain.InboxStatus) []domain.InboxStatus {
	if !s.permission.CanManageStatus(ctx, viewer) {
		return []domain.InboxStatus{}
	}
	return s.policy.AvailableTransitions(status)
}

// FindRecipients looks up users by name for a new conversation, never the viewer
func (s *InboxService) FindRecipients(ctx context.Context, viewer domain.Viewer, query string) ([]domain.UserSummary, error) {
	users, err := s.users.Search(ctx, query, viewer.ID, recipientLookupLimit)
	if err != nil {
		return nil, common.WrapPersistence("search users", err)
	}
	return users, nil
}

// DeleteInbox hides a conversation for everyone (soft delete). Participants only.
func (s *InboxService) DeleteInbox(ctx context.Context, viewer domain.Viewer, inboxID uint64) error {
	inbox, err := s.inboxRepo.FindByID(ctx, inboxID)
	if err != nil {
		return common.WrapPersistence("find conversation", err)
	}
	if inbox == nil || !inbox.IsParticipant(viewer.ID) {
		return &common.NotFoundError{Resource: "conversation", ID: inboxID}
	}
	if err := s.inboxRepo.SoftDelete(ctx, inboxID); err != nil {
		return common.WrapPersistence("delete conversation", err)
	}

	s.bus.Publish(events.Event{
		Topic:        events.TopicInboxDeleted,
		InboxID:      inboxID,
		ActorID:      viewer.ID,
		Participants: inbox.ParticipantIDs(),
		Timestamp:    s.now(),
	})
	return nil
}

// GetParticipantInbox loads a conversation visible to the viewer or returns NotFoundError
func (s *InboxService) GetParticipantInbox(ctx context.Context, viewer domain.Viewer, inboxID uint64) (*domain.Inbox, error) {
	inbox, err := s.inboxRepo.FindByID(ctx, inboxID)
	if err != nil {
		return nil, common.WrapPersistence("find conversation", err)
	}
	if inbox == nil || !inbox.IsParticipant(viewer.ID) {
		return nil, &common.NotFoundError{Resource: "conversation", ID: inboxID}
	}
	return inbox, nil
}

// ListInboxes returns one page of a tab ordered by updated_at desc
func (s *InboxService) ListInboxes(ctx context.Context, viewer domain.Viewer, tab domain.Tab, page int) (*domain.InboxListResponse, error) {
	if page < 1 {
		page = 1
	}
	perPage := s.cfg.PerPage
	if perPage < 1 || perPage > 50 {
		perPage = 20
	}

	inboxes, total, err := s.inboxRepo.ListByTab(ctx, viewer.ID, tab, page, perPage)
	if err != nil {
		return nil, common.WrapPersistence("list conversations", err)
	}

	ids := make([]uint64, 0, len(inboxes))
	userIDs := make([]string, 0, len(inboxes)*2)
	for _, inbox := range inboxes {
		ids = append(ids, inbox.ID)
		userIDs = append(userIDs, inbox.ParticipantIDs()...)
	}

	latest, err := s.messageRepo.LatestByInbox(ctx, ids)
	if err != nil {
		return nil, common.WrapPersistence("load latest messages", err)
	}
	unread, err := s.inboxRepo.UnreadInboxIDs(ctx, ids, viewer.ID)
	if err != nil {
		return nil, common.WrapPersistence("load unread flags", err)
	}
	names, err := s.users.Names(ctx, userIDs)
	if err != nil {
		return nil, common.WrapPersistence("load user names", err)
	}

	items := make([]domain.InboxItem, 0, len(inboxes))
	for _, inbox := range inboxes {
		lastSender := ""
		var last *domain.MessageResponse
		if m, ok := latest[inbox.ID]; ok {
			lastSender = m.SenderID
			last = s.presentMessage(ctx, viewer.ID, m, names)
		}
		isCreator := inbox.IsCreator(viewer.ID)
		lastFromViewer := lastSender != "" && lastSender == viewer.ID

		items = append(items, domain.InboxItem{
			ID:            inbox.ID,
			Title:         inbox.DisplayTitle(viewer.ID, names),
			Status:        inbox.Status,
			Tab:           domain.ClassifyTab(inbox.Status, inbox.CreatorID, lastSender, viewer.ID),
			DisplayLabel:  inbox.Status.DisplayLabel(isCreator, lastFromViewer),
			DisplayColor:  inbox.Status.DisplayColor(isCreator, lastFromViewer),
			CounterpartID: inbox.CounterpartID(viewer.ID),
			HasUnread:     unread[inbox.ID],
			LastMessage:   last,
			UpdatedAt:     inbox.UpdatedAt.Format(domain.DateTimeFormat),
		})
	}

	return &domain.InboxListResponse{
		Items:   items,
		Tab:     tab,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasMore: int64(page*perPage) < total,
	}, nil
}

// presentMessage converts a message for the viewer, resolving sender name and attachment URLs
func (s *InboxService) presentMessage(ctx context.Context, viewerID string, m *domain.Message, names map[string]string) *domain.MessageResponse {
	resp := m.ToResponse(viewerID)
	resp.SenderName = names[m.SenderID]
	resolveAttachmentURLs(ctx, s.attachments, resp, s.logger)
	return resp
}
